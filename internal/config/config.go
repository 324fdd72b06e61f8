package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/datasource"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

// Config is read once at startup from the environment
type Config struct {
	Port           string
	CORSOrigins    []string
	UploadMaxBytes int64

	// Remote dataset shared by all sessions; URL wins over Path
	DatasetURL     string
	DatasetPath    string
	DatasetRefresh string // cron expression, empty disables

	SessionIdle time.Duration

	// Ad-hoc sources (file, http, database) are off unless enabled.
	// Local paths must live under SourceRoot.
	SourcesEnabled bool
	SourceRoot     string

	SchemaMode schema.Mode
	DateOrder  table.DateOrder
	NullPolicy filter.NullPolicy
}

const (
	DefaultPort           = "8001"
	DefaultUploadMaxBytes = 100 * 1024 * 1024 // 100MB
	DefaultSessionIdle    = 2 * time.Hour
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
}

// Load reads the process environment
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:           DefaultPort,
		CORSOrigins:    DefaultCORSOrigins,
		UploadMaxBytes: DefaultUploadMaxBytes,
		DatasetURL:     strings.TrimSpace(getenv("DATASET_URL")),
		DatasetPath:    strings.TrimSpace(getenv("DATASET_PATH")),
		DatasetRefresh: strings.TrimSpace(getenv("DATASET_REFRESH")),
		SessionIdle:    DefaultSessionIdle,
		SourceRoot:     strings.TrimSpace(getenv("SOURCE_ROOT")),
		DateOrder:      table.ParseDateOrder(getenv("DATE_ORDER")),
	}

	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if origins := getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if v := getenv("UPLOAD_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("UPLOAD_MAX_BYTES: invalid value %q", v)
		}
		cfg.UploadMaxBytes = n
	}

	if v := getenv("SESSION_IDLE"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("SESSION_IDLE: invalid duration %q", v)
		}
		cfg.SessionIdle = d
	}

	if v := getenv("SOURCES_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("SOURCES_ENABLED: invalid value %q", v)
		}
		cfg.SourcesEnabled = enabled
	}

	if cfg.DatasetRefresh != "" {
		if _, err := cron.ParseStandard(cfg.DatasetRefresh); err != nil {
			return Config{}, fmt.Errorf("DATASET_REFRESH: %w", err)
		}
	}

	mode, err := schema.ParseMode(getenv("SCHEMA_MODE"))
	if err != nil {
		return Config{}, fmt.Errorf("SCHEMA_MODE: %w", err)
	}
	cfg.SchemaMode = mode

	nulls, err := filter.ParseNullPolicy(getenv("NULL_POLICY"))
	if err != nil {
		return Config{}, fmt.Errorf("NULL_POLICY: %w", err)
	}
	cfg.NullPolicy = nulls

	return cfg, nil
}

// HasDataset reports whether a remote dataset is configured
func (c Config) HasDataset() bool {
	return c.DatasetURL != "" || c.DatasetPath != ""
}

// Sources builds the registry for ad-hoc sources opened over HTTP: local
// paths confined to SourceRoot and database sources limited to named tables.
func (c Config) Sources() *datasource.Registry {
	return datasource.NewRegistry(datasource.WithRoot(c.SourceRoot), datasource.WithTablesOnly())
}

// Engine builds a dashboard engine with the configured load settings
func (c Config) Engine() *dashboard.Engine {
	e := dashboard.NewEngine()
	e.Mode = c.SchemaMode
	e.Parser = table.NewDateParser(c.DateOrder)
	e.NullPolicy = c.NullPolicy
	return e
}
