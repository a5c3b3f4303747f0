package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvp-joe/ict-watcher/internal/config"
	"github.com/mvp-joe/ict-watcher/internal/daemon"
	"github.com/mvp-joe/ict-watcher/internal/watcher"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the ICT log directory and ingest new logs",
	Long: `Watch monitors paths.ict_logs for created or rewritten files matching
paths.patterns, waits ingest.settle_delay for the tester to finish writing,
then parses each file and stores its result.

Only one watcher may run per directory. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runWatch(ctx, cfg, "", cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch blocks until ctx ends. lockDir overrides the default lock
// location when non-empty.
func runWatch(ctx context.Context, cfg *config.Config, lockDir string, stderr io.Writer) error {
	logger, cleanup, err := newLogger(cfg, "", stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(cfg.Paths.ICTLogs, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.Paths.ICTLogs, err)
	}

	singleton, err := daemon.NewSingletonDaemon(cfg.Paths.ICTLogs, lockDir)
	if err != nil {
		return err
	}
	won, err := singleton.EnforceSingleton()
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("another ictwatch (pid %d) is already watching %s", singleton.HolderPID(), cfg.Paths.ICTLogs)
	}
	defer singleton.Release()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := newPipeline(cfg, db, logger, true)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	files, err := watcher.NewFileWatcher(cfg.Paths.ICTLogs, watcher.Options{
		Patterns: cfg.Paths.Patterns,
		Ignore:   cfg.Paths.Ignore,
		Debounce: cfg.Ingest.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting watcher",
		zap.String("dir", cfg.Paths.ICTLogs),
		zap.Strings("patterns", cfg.Paths.Patterns),
		zap.String("database", cfg.Database.Path),
		zap.String("table", cfg.Database.ResultsTable),
		zap.String("schema", cfg.Schema.Version))

	coord := watcher.NewWatchCoordinator(files, pipeline, db, cfg.Ingest.ReconnectInterval, logger)
	if err := coord.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("watcher stopped")
	return nil
}
