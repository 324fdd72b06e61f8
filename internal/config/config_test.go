package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-go/internal/datasource"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultCORSOrigins, cfg.CORSOrigins)
	assert.Equal(t, int64(DefaultUploadMaxBytes), cfg.UploadMaxBytes)
	assert.Equal(t, DefaultSessionIdle, cfg.SessionIdle)
	assert.Equal(t, schema.ModeAlias, cfg.SchemaMode)
	assert.Equal(t, table.DayFirst, cfg.DateOrder)
	assert.Equal(t, filter.NullStrict, cfg.NullPolicy)
	assert.False(t, cfg.HasDataset())
	assert.False(t, cfg.SourcesEnabled)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":             "9090",
		"CORS_ORIGINS":     "https://a.example, https://b.example,",
		"UPLOAD_MAX_BYTES": "1024",
		"DATASET_URL":      "https://example.com/leads.csv",
		"DATASET_REFRESH":  "*/15 * * * *",
		"SESSION_IDLE":     "45m",
		"SCHEMA_MODE":      "fallback",
		"DATE_ORDER":       "month",
		"NULL_POLICY":      "passthrough",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, int64(1024), cfg.UploadMaxBytes)
	assert.True(t, cfg.HasDataset())
	assert.Equal(t, 45*time.Minute, cfg.SessionIdle)
	assert.Equal(t, schema.ModeFallback, cfg.SchemaMode)
	assert.Equal(t, table.MonthFirst, cfg.DateOrder)
	assert.Equal(t, filter.NullPassthrough, cfg.NullPolicy)

	e := cfg.Engine()
	assert.Equal(t, schema.ModeFallback, e.Mode)
	assert.Equal(t, filter.NullPassthrough, e.NullPolicy)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"UPLOAD_MAX_BYTES": "lots",
		"SESSION_IDLE":     "soon",
		"DATASET_REFRESH":  "every day",
		"SCHEMA_MODE":      "guess",
		"NULL_POLICY":      "maybe",
		"SOURCES_ENABLED":  "sometimes",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := FromEnv(env(map[string]string{key: val}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestSources_ConfinedToRoot(t *testing.T) {
	root := t.TempDir()
	cfg, err := FromEnv(env(map[string]string{"SOURCES_ENABLED": "true", "SOURCE_ROOT": root}))
	require.NoError(t, err)
	assert.True(t, cfg.SourcesEnabled)

	sources := cfg.Sources()
	_, err = sources.Open("file", datasource.Config{"path": "leads.csv"})
	assert.NoError(t, err)
	_, err = sources.Open("file", datasource.Config{"path": "/etc/passwd"})
	assert.ErrorContains(t, err, "outside")
	_, err = sources.Open("postgres", datasource.Config{"host": "db", "query": "SELECT 1"})
	assert.ErrorContains(t, err, "raw queries")

	// no root means no local files at all
	cfg, err = FromEnv(env(map[string]string{"SOURCES_ENABLED": "1"}))
	require.NoError(t, err)
	_, err = cfg.Sources().Open("file", datasource.Config{"path": "leads.csv"})
	assert.ErrorContains(t, err, "disabled")
}
