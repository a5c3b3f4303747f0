package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/ict-watcher/internal/extract"
	"github.com/mvp-joe/ict-watcher/internal/logging"
	"github.com/mvp-joe/ict-watcher/internal/storage"
)

var (
	// ErrEmptyWatchDir indicates paths.ict_logs is not set
	ErrEmptyWatchDir = errors.New("empty ICT log directory")

	// ErrInvalidPattern indicates a glob that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrEmptyDatabase indicates database.path is not set
	ErrEmptyDatabase = errors.New("empty database path")

	// ErrInvalidTable indicates a results table name that is not a plain identifier
	ErrInvalidTable = errors.New("invalid results table")

	// ErrInvalidIngest indicates out-of-range ingest tuning
	ErrInvalidIngest = errors.New("invalid ingest settings")

	// ErrUnknownSchema indicates a schema version with no field table
	ErrUnknownSchema = errors.New("unknown schema version")

	// ErrInvalidTimezone indicates a timezone time.LoadLocation rejects
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		errs = append(errs, err)
	}
	if err := validateIngest(&cfg.Ingest); err != nil {
		errs = append(errs, err)
	}
	if err := validateSchema(&cfg.Schema); err != nil {
		errs = append(errs, err)
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level))
	}

	return joinErrors(errs)
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.ICTLogs) == "" {
		errs = append(errs, ErrEmptyWatchDir)
	}
	if len(cfg.Patterns) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one pattern is required", ErrInvalidPattern))
	}
	for _, p := range append(append([]string{}, cfg.Patterns...), cfg.Ignore...) {
		if _, err := glob.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err))
		}
	}

	return joinErrors(errs)
}

func validateDatabase(cfg *DatabaseConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, ErrEmptyDatabase)
	}
	if err := storage.ValidateIdentifier(cfg.ResultsTable); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidTable, err))
	}

	return joinErrors(errs)
}

func validateIngest(cfg *IngestConfig) error {
	var errs []error

	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidIngest, cfg.Workers))
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_size must be positive, got %d", ErrInvalidIngest, cfg.MaxFileSize))
	}
	if cfg.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("%w: max_depth must be at least 1, got %d", ErrInvalidIngest, cfg.MaxDepth))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"settle_delay", cfg.SettleDelay},
		{"debounce", cfg.Debounce},
		{"dedupe_window", cfg.DedupeWindow},
	}
	for _, d := range durations {
		if d.d < 0 {
			errs = append(errs, fmt.Errorf("%w: %s cannot be negative, got %s", ErrInvalidIngest, d.name, d.d))
		}
	}
	if cfg.ReconnectInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: reconnect_interval must be positive, got %s", ErrInvalidIngest, cfg.ReconnectInterval))
	}

	return joinErrors(errs)
}

func validateSchema(cfg *SchemaConfig) error {
	var errs []error

	if _, err := extract.LookupSchema(cfg.Version); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSchema, cfg.Version))
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTimezone, cfg.Timezone))
	}

	return joinErrors(errs)
}

// validationError keeps every underlying error reachable through errors.Is.
type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error { return e.errs }

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	// Flatten nested section errors so the message stays one list.
	var flat []error
	for _, err := range errs {
		var ve *validationError
		if errors.As(err, &ve) {
			flat = append(flat, ve.errs...)
			continue
		}
		flat = append(flat, err)
	}
	return &validationError{errs: flat}
}
