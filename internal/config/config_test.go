package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/ict-watcher/internal/extract"
	"github.com/mvp-joe/ict-watcher/internal/storage"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load uses defaults when no config file exists
// - Load reads .ictwatch/config.yml and merges it with defaults
// - Environment variables override config file values and defaults
// - Comma separated env values become pattern lists
// - An explicit config file must exist
// - Load returns error for malformed YAML and invalid values
// - Validate() reports every invalid field and keeps sentinels reachable
// - Location() and Extractor() honor the schema section

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, ".ictwatch")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yml"), []byte(content), 0644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "ict_logs", cfg.Paths.ICTLogs)
	assert.Equal(t, []string{"*"}, cfg.Paths.Patterns)
	assert.Equal(t, storage.DefaultResultsTable, cfg.Database.ResultsTable)
	assert.Equal(t, 3*time.Second, cfg.Ingest.SettleDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.Debounce)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, time.Minute, cfg.Ingest.DedupeWindow)
	assert.Equal(t, 5*time.Minute, cfg.Ingest.ReconnectInterval)
	assert.Equal(t, extract.SchemaV1.Version, cfg.Schema.Version)
	assert.Equal(t, "UTC", cfg.Schema.Timezone)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	// Note: Cannot use t.Parallel() alongside tests that use t.Setenv()
	tempDir := t.TempDir()

	cfg, err := NewLoader(tempDir).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MergesConfigFileWithDefaults(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
paths:
  ict_logs: /data/ict
  patterns:
    - "*.log"
database:
  path: /data/results.db
ingest:
  settle_delay: 10s
  workers: 2
schema:
  timezone: Asia/Ho_Chi_Minh
`)

	cfg, err := NewLoader(tempDir).Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/ict", cfg.Paths.ICTLogs)
	assert.Equal(t, []string{"*.log"}, cfg.Paths.Patterns)
	assert.Equal(t, "/data/results.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Ingest.SettleDelay)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Schema.Timezone)

	// Not in the file, should come from defaults
	assert.Equal(t, storage.DefaultResultsTable, cfg.Database.ResultsTable)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.Debounce)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentVariablesOverrideConfigFile(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
database:
  path: /file/results.db
  results_table: file_results
log:
  level: warn
`)

	t.Setenv("ICTWATCH_DATABASE_PATH", "/env/results.db")
	t.Setenv("ICTWATCH_INGEST_SETTLE_DELAY", "250ms")
	t.Setenv("ICTWATCH_PATHS_PATTERNS", "*.log,*.txt")

	cfg, err := NewLoader(tempDir).Load()
	require.NoError(t, err)

	// Environment variables should win
	assert.Equal(t, "/env/results.db", cfg.Database.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.SettleDelay)
	assert.Equal(t, []string{"*.log", "*.txt"}, cfg.Paths.Patterns)

	// Not overridden, should come from config file
	assert.Equal(t, "file_results", cfg.Database.ResultsTable)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigFile_ExplicitPath(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "station.yml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  ict_logs: /station/logs\n"), 0644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/station/logs", cfg.Paths.ICTLogs)

	_, err = LoadConfigFile(filepath.Join(tempDir, "missing.yml"))
	assert.Error(t, err)
}

func TestLoad_ReturnsErrorForMalformedYaml(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "paths:\n  ict_logs: [unterminated\n")

	_, err := NewLoader(tempDir).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_ReturnsErrorForInvalidValues(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
database:
  results_table: "results; DROP TABLE x"
`)

	_, err := NewLoader(tempDir).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestValidate_RejectsInvalidFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty watch dir", func(c *Config) { c.Paths.ICTLogs = " " }, ErrEmptyWatchDir},
		{"no patterns", func(c *Config) { c.Paths.Patterns = nil }, ErrInvalidPattern},
		{"bad pattern", func(c *Config) { c.Paths.Patterns = []string{"[a-"} }, ErrInvalidPattern},
		{"bad ignore", func(c *Config) { c.Paths.Ignore = []string{"{a,"} }, ErrInvalidPattern},
		{"empty database", func(c *Config) { c.Database.Path = "" }, ErrEmptyDatabase},
		{"bad table", func(c *Config) { c.Database.ResultsTable = "1results" }, ErrInvalidTable},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }, ErrInvalidIngest},
		{"zero max size", func(c *Config) { c.Ingest.MaxFileSize = 0 }, ErrInvalidIngest},
		{"zero depth", func(c *Config) { c.Ingest.MaxDepth = 0 }, ErrInvalidIngest},
		{"negative settle", func(c *Config) { c.Ingest.SettleDelay = -time.Second }, ErrInvalidIngest},
		{"zero reconnect", func(c *Config) { c.Ingest.ReconnectInterval = 0 }, ErrInvalidIngest},
		{"unknown schema", func(c *Config) { c.Schema.Version = "v9" }, ErrUnknownSchema},
		{"bad timezone", func(c *Config) { c.Schema.Timezone = "Mars/Olympus" }, ErrInvalidTimezone},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_ReturnsMultipleErrorsForMultipleInvalidFields(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Paths.ICTLogs = ""
	cfg.Database.Path = ""
	cfg.Ingest.Workers = 0
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	for _, want := range []error{ErrEmptyWatchDir, ErrEmptyDatabase, ErrInvalidIngest, ErrInvalidLogLevel} {
		assert.True(t, errors.Is(err, want), "missing %v", want)
	}
}

func TestConfig_LocationAndExtractor(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Schema.Timezone = "Asia/Ho_Chi_Minh"

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Ho_Chi_Minh", loc.String())

	ex, err := cfg.Extractor()
	require.NoError(t, err)
	assert.Equal(t, extract.SchemaV1, ex.Schema())

	cfg.Schema.Version = "v0"
	_, err = cfg.Extractor()
	assert.Error(t, err)
}
