// Package config loads ictwatch configuration.
//
// Priority (highest to lowest):
//  1. Environment variables (ICTWATCH_*, nested keys joined with '_')
//  2. Config file (.ictwatch/config.yml in the root directory, or an
//     explicit file given with --config)
//  3. Default values
package config

import (
	"fmt"
	"time"

	"github.com/mvp-joe/ict-watcher/internal/extract"
	"github.com/mvp-joe/ict-watcher/internal/parser"
	"github.com/mvp-joe/ict-watcher/internal/storage"
)

// Config represents the complete ictwatch configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Schema   SchemaConfig   `yaml:"schema" mapstructure:"schema"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig defines which directory is watched and which files in it are
// treated as ICT logs.
type PathsConfig struct {
	ICTLogs  string   `yaml:"ict_logs" mapstructure:"ict_logs"` // directory the tester writes logs to
	Patterns []string `yaml:"patterns" mapstructure:"patterns"` // glob patterns matched against file names
	Ignore   []string `yaml:"ignore" mapstructure:"ignore"`     // glob patterns to skip
}

// DatabaseConfig locates the result sink.
type DatabaseConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`                   // SQLite file
	ResultsTable string `yaml:"results_table" mapstructure:"results_table"` // table records are inserted into
}

// IngestConfig tunes the ingest pipeline.
type IngestConfig struct {
	SettleDelay       time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"`             // wait after an event before reading
	Debounce          time.Duration `yaml:"debounce" mapstructure:"debounce"`                     // quiet period that coalesces events
	Workers           int           `yaml:"workers" mapstructure:"workers"`                       // files processed concurrently
	MaxFileSize       int64         `yaml:"max_file_size" mapstructure:"max_file_size"`           // bytes
	DedupeWindow      time.Duration `yaml:"dedupe_window" mapstructure:"dedupe_window"`           // 0 disables duplicate suppression
	ReconnectInterval time.Duration `yaml:"reconnect_interval" mapstructure:"reconnect_interval"` // wait between sink readiness checks
	MaxDepth          int           `yaml:"max_depth" mapstructure:"max_depth"`                   // deepest accepted brace nesting
}

// SchemaConfig selects the positional field schema.
type SchemaConfig struct {
	Version  string `yaml:"version" mapstructure:"version"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"` // IANA name timestamps are interpreted in
}

// LogConfig configures the process logger.
type LogConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"` // daily log files; empty disables
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ICTLogs:  "ict_logs",
			Patterns: []string{"*"},
			Ignore: []string{
				".*",
				"*.tmp",
				"*.part",
				"*~",
			},
		},
		Database: DatabaseConfig{
			Path:         "ictwatch.db",
			ResultsTable: storage.DefaultResultsTable,
		},
		Ingest: IngestConfig{
			SettleDelay:       3 * time.Second,
			Debounce:          500 * time.Millisecond,
			Workers:           4,
			MaxFileSize:       parser.DefaultMaxFileSize,
			DedupeWindow:      time.Minute,
			ReconnectInterval: 5 * time.Minute,
			MaxDepth:          parser.DefaultMaxDepth,
		},
		Schema: SchemaConfig{
			Version:  extract.SchemaV1.Version,
			Timezone: "UTC",
		},
		Log: LogConfig{
			Dir:   "logs",
			Level: "info",
		},
	}
}

// Location returns the time zone configured for timestamps.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schema.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Schema.Timezone, err)
	}
	return loc, nil
}

// Extractor builds the extractor described by the schema section.
func (c *Config) Extractor() (*extract.Extractor, error) {
	schema, err := extract.LookupSchema(c.Schema.Version)
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return extract.New(schema, extract.WithLocation(loc))
}

// Parser builds the parser described by the ingest limits.
func (c *Config) Parser() *parser.Parser {
	return parser.New(
		parser.WithMaxDepth(c.Ingest.MaxDepth),
		parser.WithMaxFileSize(c.Ingest.MaxFileSize),
	)
}
