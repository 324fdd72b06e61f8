package datasource_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-go/internal/datasource"
	"dashboard-go/internal/table"
)

const leadsCSV = "Stage,Source,Responsible,Date of creation\n" +
	"New,Web,Ann,01.01.2024\n" +
	"Won,Call,Bob,02.01.2024\n"

func TestRegistry(t *testing.T) {
	r := datasource.NewRegistry()
	assert.Equal(t, []string{"file", "http", "mongo", "mysql", "postgres", "sqlite"}, r.Types())

	_, err := r.Open("ftp", nil)
	assert.ErrorContains(t, err, "unknown source type")

	_, err = r.Open("file", datasource.Config{})
	assert.ErrorContains(t, err, "path is required")

	_, err = r.Open("http", datasource.Config{"url": "not a url"})
	assert.Error(t, err)

	_, err = r.Open("sqlite", datasource.Config{"host": "x.db", "table": "leads; DROP TABLE leads"})
	assert.Error(t, err)

	_, err = r.Open("mongo", datasource.Config{"uri": "mongodb://localhost", "database": "crm"})
	assert.ErrorContains(t, err, "collection")

	src, err := r.Open("postgres", datasource.Config{"host": "db", "user": "u", "database": "crm", "table": "public.leads"})
	require.NoError(t, err)
	assert.Equal(t, "postgres:SELECT * FROM public.leads", src.Name())
}

func TestDBConfigDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     datasource.DBConfig
		want    string
		wantErr bool
	}{
		{
			name: "postgres defaults",
			cfg:  datasource.DBConfig{Driver: "postgres", Host: "db", User: "u", Password: "p", DBName: "crm"},
			want: "host=db port=5432 user=u password=p dbname=crm sslmode=disable",
		},
		{
			name: "postgres quoted values",
			cfg:  datasource.DBConfig{Driver: "postgres", Host: "db", User: "u", Password: `s3 cr'et\`, DBName: "crm"},
			want: `host=db port=5432 user=u password='s3 cr\'et\\' dbname=crm sslmode=disable`,
		},
		{
			name: "postgres empty password",
			cfg:  datasource.DBConfig{Driver: "postgres", Host: "db", User: "u", DBName: "crm"},
			want: "host=db port=5432 user=u password='' dbname=crm sslmode=disable",
		},
		{
			name: "mysql tls",
			cfg:  datasource.DBConfig{Driver: "mysql", Host: "db", User: "u", Password: "p", DBName: "crm", SSLMode: "require"},
			want: "u:p@tcp(db:3306)/crm?parseTime=true&charset=utf8mb4&tls=true",
		},
		{
			name: "sqlite",
			cfg:  datasource.DBConfig{Driver: "sqlite", Host: "/tmp/crm.db"},
			want: "/tmp/crm.db?_pragma=busy_timeout(5000)",
		},
		{name: "sqlite without path", cfg: datasource.DBConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown driver", cfg: datasource.DBConfig{Driver: "oracle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.cfg.Driver == datasource.DriverPostgres {
				_, err = pq.NewConnector(got)
				assert.NoError(t, err, "lib/pq parses the DSN")
			}
		})
	}
}

func TestFile_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(leadsCSV), 0o644))

	src, err := datasource.NewRegistry().Open("file", datasource.Config{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "file:leads.csv", src.Name())

	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Bob", tbl.Value(1, "Responsible").Text())

	_, err = (&datasource.File{Path: filepath.Join(t.TempDir(), "missing.csv")}).Load(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHTTP_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export.csv" {
			http.Error(w, "no such export", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(leadsCSV))
	}))
	defer srv.Close()

	tbl, err := (&datasource.HTTP{URL: srv.URL + "/export.csv"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"Stage", "Source", "Responsible", "Date of creation"}, tbl.Columns())

	_, err = (&datasource.HTTP{URL: srv.URL + "/other.csv"}).Load(context.Background())
	assert.ErrorContains(t, err, "http 404")
}

func TestSQL_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE leads (stage TEXT, source TEXT, amount INTEGER, note TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO leads VALUES ('New', 'Web', 100, NULL), ('Won', 'Call', 250, 'vip')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := datasource.NewRegistry().Open("sqlite", datasource.Config{"host": path, "table": "leads"})
	require.NoError(t, err)

	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"stage", "source", "amount", "note"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, table.KindNumber, tbl.Value(1, "amount").Kind())
	assert.Equal(t, "250", tbl.Value(1, "amount").Text())
	assert.True(t, tbl.Value(0, "note").IsNull())

	tables, err := src.(*datasource.SQL).Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"leads"}, tables)

	limited, err := datasource.NewRegistry().Open("sqlite", datasource.Config{
		"host":  path,
		"query": "SELECT stage FROM leads ORDER BY stage DESC",
		"limit": 1.0,
	})
	require.NoError(t, err)
	tbl, err = limited.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "Won", tbl.Value(0, "stage").Text())
}

func TestSQL_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE leads (stage TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO leads VALUES ('New'), ('Won')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := datasource.NewRegistry().Open("sqlite", datasource.Config{"host": path, "query": "DELETE FROM leads"})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.Error(t, err)

	tbl, err := (&datasource.SQL{Driver: datasource.DriverSQLite, DSN: path, Query: "SELECT * FROM leads"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len(), "rows survive a write attempt")
}

func TestRegistry_Restricted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "leads.csv"), []byte(leadsCSV), 0o644))
	r := datasource.NewRegistry(datasource.WithRoot(root), datasource.WithTablesOnly())

	src, err := r.Open("file", datasource.Config{"path": "leads.csv"})
	require.NoError(t, err)
	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	_, err = r.Open("file", datasource.Config{"path": filepath.Join(root, "..", "leads.csv")})
	assert.ErrorContains(t, err, "outside")

	_, err = r.Open("sqlite", datasource.Config{"host": "/tmp/other.db", "table": "leads"})
	assert.ErrorContains(t, err, "outside")

	_, err = r.Open("sqlite", datasource.Config{"dsn": "file:/tmp/other.db", "table": "leads"})
	assert.ErrorContains(t, err, "dsn")

	_, err = r.Open("sqlite", datasource.Config{"host": "crm.db", "query": "SELECT 1"})
	assert.ErrorContains(t, err, "raw queries")

	src, err = r.Open("sqlite", datasource.Config{"host": "crm.db", "table": "leads"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:SELECT * FROM leads", src.Name())

	_, err = datasource.NewRegistry(datasource.WithRoot("")).Open("file", datasource.Config{"path": "leads.csv"})
	assert.ErrorContains(t, err, "disabled")
}

type countingSource struct {
	loads atomic.Int32
	fail  atomic.Bool
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Load(ctx context.Context) (*table.Table, error) {
	if s.fail.Load() {
		return nil, errors.New("upstream down")
	}
	n := s.loads.Add(1)
	return table.FromStrings([]string{"n"}, [][]string{{string(rune('0' + n))}}), nil
}

func TestCache_GetInvalidateRefresh(t *testing.T) {
	src := &countingSource{}
	c := datasource.NewCache(src)
	ctx := context.Background()

	assert.True(t, c.LoadedAt().IsZero())

	first, err := c.Get(ctx)
	require.NoError(t, err)
	again, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.EqualValues(t, 1, src.loads.Load())
	assert.False(t, c.LoadedAt().IsZero())

	c.Invalidate()
	second, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", second.Value(0, "n").Text())

	src.fail.Store(true)
	assert.Error(t, c.Refresh(ctx))
	kept, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, second, kept, "failed refresh keeps the previous table")
}

func TestCache_Schedule(t *testing.T) {
	c := datasource.NewCache(&countingSource{})
	defer c.Stop()

	assert.Error(t, c.Schedule(context.Background(), "every now and then"))
	assert.NoError(t, c.Schedule(context.Background(), "@every 1h"))
}

func TestCache_WatchInvalidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(leadsCSV), 0o644))

	c := datasource.NewCache(&datasource.File{Path: path})
	defer c.Stop()

	tbl, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	require.NoError(t, c.Watch(path, 20*time.Millisecond))
	require.NoError(t, os.WriteFile(path, []byte(leadsCSV+"Lost,Web,Ann,03.01.2024\n"), 0o644))

	require.Eventually(t, func() bool { return c.LoadedAt().IsZero() }, 5*time.Second, 20*time.Millisecond)

	tbl, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
}
