package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"dashboard-go/internal/table"
)

// Driver names as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// DBConfig holds connection details for a SQL source.
type DBConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require"
}

// DSN builds the driver-specific connection string. For SQLite, Host is
// the database file path.
func (c DBConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		port := c.Port
		if port == 0 {
			port = 5432
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pqQuote(c.Host), port, pqQuote(c.User), pqQuote(c.Password), pqQuote(c.DBName), pqQuote(sslMode)), nil
	case DriverMySQL:
		port := c.Port
		if port == 0 {
			port = 3306
		}
		// Format: user:password@tcp(host:port)/dbname?parseTime=true
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			c.User, c.Password, c.Host, port, c.DBName)
		if c.SSLMode == "require" {
			dsn += "&tls=true"
		}
		return dsn, nil
	case DriverSQLite:
		if c.Host == "" {
			return "", fmt.Errorf("sqlite needs a database path")
		}
		return c.Host + "?_pragma=busy_timeout(5000)", nil
	}
	return "", fmt.Errorf("unsupported driver: %s", c.Driver)
}

var pqEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pqQuote single-quotes a key=value connection parameter when it is empty
// or contains spaces, quotes or backslashes.
func pqQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t'\\") {
		return v
	}
	return "'" + pqEscaper.Replace(v) + "'"
}

// identifier matches a plain or schema-qualified table name.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQL runs one read-only query and turns the result set into a table.
type SQL struct {
	Driver string
	DSN    string
	Query  string
	Limit  int
}

func sqlFactory(driver string) Factory {
	return func(cfg Config) (Source, error) {
		dsn := cfg.String("dsn")
		if dsn == "" {
			var err error
			dsn, err = DBConfig{
				Driver:   driver,
				Host:     cfg.String("host"),
				Port:     cfg.Int("port", 0),
				User:     cfg.String("user"),
				Password: cfg.String("password"),
				DBName:   cfg.String("database"),
				SSLMode:  cfg.String("sslmode"),
			}.DSN()
			if err != nil {
				return nil, err
			}
		}

		query := cfg.String("query")
		if query == "" {
			name := cfg.String("table")
			if !identifier.MatchString(name) {
				return nil, fmt.Errorf("query or a valid table name is required, got %q", name)
			}
			query = "SELECT * FROM " + name
		}
		return &SQL{Driver: driver, DSN: dsn, Query: query, Limit: cfg.Int("limit", 0)}, nil
	}
}

func (s *SQL) Name() string { return s.Driver + ":" + s.Query }

func (s *SQL) open() (*sql.DB, error) {
	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Driver, err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	return db, nil
}

func (s *SQL) Load(ctx context.Context) (*table.Table, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// The query runs in a read-only transaction and is never committed
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if s.Driver == DriverSQLite {
		// SQLite ignores the read-only flag on BEGIN
		if _, err := tx.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return nil, fmt.Errorf("query_only: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out [][]table.Value
	for rows.Next() {
		if s.Limit > 0 && len(out) >= s.Limit {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make([]table.Value, len(columns))
		for i, v := range values {
			row[i] = table.FromAny(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return table.New(columns, out), nil
}

// Tables lists the tables visible to the connection.
func (s *SQL) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch s.Driver {
	case DriverPostgres:
		query = `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = 'public'
			ORDER BY table_name;
		`
	case DriverMySQL:
		query = `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = DATABASE()
			ORDER BY table_name;
		`
	case DriverSQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		return nil, fmt.Errorf("unsupported driver: %s", s.Driver)
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
