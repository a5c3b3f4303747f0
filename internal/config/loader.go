package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ICTWATCH_DATABASE_PATH.
const EnvPrefix = "ICTWATCH"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a loader that looks for .ictwatch/config.yml under
// rootDir. A missing file is not an error.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewFileLoader creates a loader for an explicit config file, which must
// exist.
func NewFileLoader(path string) Loader {
	return &loader{configFile: path}
}

// Load loads the configuration and validates it.
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".ictwatch"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., ICTWATCH_INGEST_SETTLE_DELAY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// bindEnvVars binds every key so AutomaticEnv also applies during Unmarshal.
func bindEnvVars(v *viper.Viper) {
	for _, key := range []string{
		"paths.ict_logs",
		"paths.patterns",
		"paths.ignore",

		"database.path",
		"database.results_table",

		"ingest.settle_delay",
		"ingest.debounce",
		"ingest.workers",
		"ingest.max_file_size",
		"ingest.dedupe_window",
		"ingest.reconnect_interval",
		"ingest.max_depth",

		"schema.version",
		"schema.timezone",

		"log.dir",
		"log.level",
	} {
		v.BindEnv(key)
	}
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.ict_logs", defaults.Paths.ICTLogs)
	v.SetDefault("paths.patterns", defaults.Paths.Patterns)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("database.results_table", defaults.Database.ResultsTable)

	v.SetDefault("ingest.settle_delay", defaults.Ingest.SettleDelay)
	v.SetDefault("ingest.debounce", defaults.Ingest.Debounce)
	v.SetDefault("ingest.workers", defaults.Ingest.Workers)
	v.SetDefault("ingest.max_file_size", defaults.Ingest.MaxFileSize)
	v.SetDefault("ingest.dedupe_window", defaults.Ingest.DedupeWindow)
	v.SetDefault("ingest.reconnect_interval", defaults.Ingest.ReconnectInterval)
	v.SetDefault("ingest.max_depth", defaults.Ingest.MaxDepth)

	v.SetDefault("schema.version", defaults.Schema.Version)
	v.SetDefault("schema.timezone", defaults.Schema.Timezone)

	v.SetDefault("log.dir", defaults.Log.Dir)
	v.SetDefault("log.level", defaults.Log.Level)
}

// LoadConfig loads configuration using the current working directory as
// the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

// LoadConfigFile loads configuration from an explicit file.
func LoadConfigFile(path string) (*Config, error) {
	return NewFileLoader(path).Load()
}
