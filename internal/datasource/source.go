package datasource

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"dashboard-go/internal/table"
)

// ── Source ──────────────────────────────────────────────────
// A Source produces one rectangular table per Load. Implementations live
// one per file: file.go, http.go, sql.go, mongo.go.

// Source loads a table from an external system.
type Source interface {
	// Name identifies the source in logs and session metadata.
	Name() string
	// Load reads the whole table. Each call reads afresh.
	Load(ctx context.Context) (*table.Table, error)
}

// Config is the loosely typed configuration of a source, as decoded from
// JSON request bodies or tool arguments.
type Config map[string]any

// String returns the string at key, or "".
func (c Config) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer at key, or def when absent or malformed.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Duration parses the value at key ("30s") or returns def.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	if s := c.String(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

// Map returns the nested object at key.
func (c Config) Map(key string) map[string]any {
	m, _ := c[key].(map[string]any)
	return m
}

// ── Registry ───────────────────────────────────────────────

// Factory builds a Source from its configuration.
type Factory func(cfg Config) (Source, error)

// Registry maps source type names to factories. Each server owns its own
// registry; there is no package-level one.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory

	confined   bool
	root       string
	tablesOnly bool
}

// RegistryOption restricts what a Registry will open.
type RegistryOption func(*Registry)

// WithRoot confines file and sqlite paths to dir. Relative paths resolve
// against dir. An empty dir rejects local paths altogether.
func WithRoot(dir string) RegistryOption {
	return func(r *Registry) {
		r.confined = true
		r.root = dir
	}
}

// WithTablesOnly rejects raw SQL. Database sources must name a table.
func WithTablesOnly() RegistryOption {
	return func(r *Registry) { r.tablesOnly = true }
}

// NewRegistry returns a registry with every built-in source type.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register("file", newFile)
	r.Register("http", newHTTP)
	r.Register("postgres", sqlFactory(DriverPostgres))
	r.Register("mysql", sqlFactory(DriverMySQL))
	r.Register("sqlite", sqlFactory(DriverSQLite))
	r.Register("mongo", newMongo)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a source type.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Open builds a Source of the given type.
func (r *Registry) Open(typ string, cfg Config) (Source, error) {
	r.mu.RLock()
	f, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	if cfg == nil {
		cfg = Config{}
	}
	cfg, err := r.restrict(typ, cfg)
	if err != nil {
		return nil, err
	}
	return f(cfg)
}

// pathKeys names the config key holding a local path, per source type.
var pathKeys = map[string]string{
	"file":   "path",
	"sqlite": "host",
}

// restrict applies the registry options to cfg. Confined paths are
// rewritten to their absolute form under the root.
func (r *Registry) restrict(typ string, cfg Config) (Config, error) {
	switch typ {
	case DriverPostgres, DriverMySQL, DriverSQLite:
		if r.tablesOnly && cfg.String("query") != "" {
			return nil, fmt.Errorf("%s: raw queries are disabled, name a table instead", typ)
		}
	}

	key, local := pathKeys[typ]
	if !local || !r.confined {
		return cfg, nil
	}
	if cfg.String("dsn") != "" {
		return nil, fmt.Errorf("%s: dsn is disabled, give a path", typ)
	}
	p := cfg.String(key)
	if p == "" {
		return cfg, nil
	}
	p, err := confine(r.root, p)
	if err != nil {
		return nil, err
	}

	out := make(Config, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	out[key] = p
	return out, nil
}

// confine resolves p against root and rejects anything outside it.
func confine(root, p string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("local paths are disabled")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	// Resolve symlinks that exist so a link cannot point out of root
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the allowed directory", p)
	}
	return p, nil
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
