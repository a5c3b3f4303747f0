package cli

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mvp-joe/ict-watcher/internal/config"
	"github.com/mvp-joe/ict-watcher/internal/ingest"
	"github.com/mvp-joe/ict-watcher/internal/logging"
	"github.com/mvp-joe/ict-watcher/internal/storage"
)

// loadConfig loads --config when given, otherwise .ictwatch/config.yml in
// the working directory.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadConfigFile(cfgFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. consoleLevel overrides the console
// threshold when non-empty; --verbose forces debug everywhere.
func newLogger(cfg *config.Config, consoleLevel string, stderr io.Writer) (*zap.Logger, func(), error) {
	lc := logging.Config{
		Level:        cfg.Log.Level,
		ConsoleLevel: consoleLevel,
		Dir:          cfg.Log.Dir,
		Out:          stderr,
	}
	if verbose {
		lc.Level, lc.ConsoleLevel = "debug", "debug"
	}
	return logging.New(lc)
}

// openStore opens the results database and creates the schema.
func openStore(cfg *config.Config) (*storage.DB, error) {
	db, err := storage.Open(cfg.Database.Path, cfg.Database.ResultsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newPipeline wires the ingest pipeline to db.
func newPipeline(cfg *config.Config, db *storage.DB, logger *zap.Logger, settleDelay bool) (*ingest.Pipeline, error) {
	ex, err := cfg.Extractor()
	if err != nil {
		return nil, err
	}
	pc := ingest.Config{
		Parser:            cfg.Parser(),
		Extractor:         ex,
		Sink:              db,
		Events:            db,
		Table:             cfg.Database.ResultsTable,
		DedupeWindow:      cfg.Ingest.DedupeWindow,
		ReconnectInterval: cfg.Ingest.ReconnectInterval,
		Workers:           cfg.Ingest.Workers,
		Logger:            logger,
	}
	if settleDelay {
		pc.SettleDelay = cfg.Ingest.SettleDelay
	}
	return ingest.New(pc)
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
