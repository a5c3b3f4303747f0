package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/ict-watcher/internal/config"
	"github.com/mvp-joe/ict-watcher/internal/ingest"
)

var ingestQuiet bool

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest ICT log files once",
	Long: `Ingest parses the given log files, extracts one result per file and stores
it in the results database, exactly as the watcher would but without the
settle delay.

Examples:
  # Backfill a day of logs
  ictwatch ingest /data/ict/2025-06-01/*

  # Without the progress bar
  ictwatch ingest --quiet uut.log
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		stats, err := runIngest(ctx, cfg, args, ingestQuiet, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Files)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVarP(&ingestQuiet, "quiet", "q", false, "Disable progress bar and summary")
}

func runIngest(ctx context.Context, cfg *config.Config, paths []string, quiet bool, out, stderr io.Writer) (ingest.Stats, error) {
	// Per-file lines go to the daily log; the console only shows problems.
	logger, cleanup, err := newLogger(cfg, "warn", stderr)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer cleanup()

	db, err := openStore(cfg)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer db.Close()

	pipeline, err := newPipeline(cfg, db, logger, false)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer pipeline.Close()

	progress := NewCLIProgressReporter(quiet, out)
	return pipeline.IngestFiles(ctx, paths, progress)
}
