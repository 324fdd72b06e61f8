package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dashboard-go/internal/table"
)

// Mongo reads a collection with an optional filter. Top-level document
// fields become columns in first-seen order; nested values are kept as
// Extended JSON text.
type Mongo struct {
	URI        string
	Database   string
	Collection string
	Filter     map[string]any
	Limit      int
}

func newMongo(cfg Config) (Source, error) {
	m := &Mongo{
		URI:        cfg.String("uri"),
		Database:   cfg.String("database"),
		Collection: cfg.String("collection"),
		Filter:     cfg.Map("filter"),
		Limit:      cfg.Int("limit", 0),
	}
	if m.URI == "" {
		host := cfg.String("host")
		if host == "" {
			return nil, fmt.Errorf("uri or host is required")
		}
		m.URI = fmt.Sprintf("mongodb://%s:%d", host, cfg.Int("port", 27017))
	}
	if !strings.HasPrefix(m.URI, "mongodb://") && !strings.HasPrefix(m.URI, "mongodb+srv://") {
		return nil, fmt.Errorf("invalid mongo uri %q", m.URI)
	}
	if m.Database == "" || m.Collection == "" {
		return nil, fmt.Errorf("database and collection are required")
	}
	return m, nil
}

func (m *Mongo) Name() string { return "mongo:" + m.Database + "." + m.Collection }

func (m *Mongo) Load(ctx context.Context) (*table.Table, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(m.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("[Mongo] disconnect: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	filter := bson.M{}
	for k, v := range m.Filter {
		filter[k] = v
	}
	opts := options.Find()
	if m.Limit > 0 {
		opts.SetLimit(int64(m.Limit))
	}

	coll := m.collection(client)
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	log.Printf("[Mongo] %s: read %d documents", m.Name(), len(docs))
	return documentsToTable(docs), nil
}

func (m *Mongo) collection(c *mongo.Client) *mongo.Collection {
	return c.Database(m.Database).Collection(m.Collection)
}

// documentsToTable lays documents out as rows over the union of their
// top-level keys.
func documentsToTable(docs []bson.D) *table.Table {
	index := map[string]int{}
	var columns []string
	for _, doc := range docs {
		for _, elem := range doc {
			if _, ok := index[elem.Key]; !ok {
				index[elem.Key] = len(columns)
				columns = append(columns, elem.Key)
			}
		}
	}

	rows := make([][]table.Value, len(docs))
	for i, doc := range docs {
		row := make([]table.Value, len(columns))
		for _, elem := range doc {
			row[index[elem.Key]] = bsonValue(elem.Value)
		}
		rows[i] = row
	}
	return table.New(columns, rows)
}

func bsonValue(v any) table.Value {
	switch x := v.(type) {
	case bson.ObjectID:
		return table.String(x.Hex())
	case bson.DateTime:
		return table.Time(x.Time().UTC())
	case bson.Decimal128:
		return table.FromText(x.String())
	case bson.D, bson.A, bson.M:
		raw, err := json.Marshal(plain(x))
		if err != nil {
			return table.FromText(fmt.Sprint(x))
		}
		return table.String(string(raw))
	}
	return table.FromAny(v)
}

// plain converts nested BSON into values encoding/json renders naturally.
func plain(v any) any {
	switch x := v.(type) {
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = plain(e)
		}
		return m
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	case bson.ObjectID:
		return x.Hex()
	case bson.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	}
	return v
}
