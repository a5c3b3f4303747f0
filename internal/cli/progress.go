package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/ict-watcher/internal/ingest"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet     bool
	out       io.Writer
	fileBar   *progressbar.ProgressBar
	startTime time.Time

	mu     sync.Mutex
	failed []ingest.Result
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to out.
func NewCLIProgressReporter(quiet bool, out io.Writer) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		out:       out,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) OnStart(totalFiles int) {
	if c.quiet {
		return
	}
	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Ingesting logs"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(result ingest.Result) {
	if result.Err != nil {
		c.mu.Lock()
		c.failed = append(c.failed, result)
		c.mu.Unlock()
	}
	if c.quiet || c.fileBar == nil {
		return
	}
	c.fileBar.Add(1)
}

func (c *CLIProgressReporter) OnComplete(stats ingest.Stats) {
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Ingest complete: %s files in %.1fs\n",
		formatNumber(stats.Files), time.Since(c.startTime).Seconds())
	fmt.Fprintf(c.out, "  Inserted:   %s\n", formatNumber(stats.Inserted))
	fmt.Fprintf(c.out, "  No data:    %s\n", formatNumber(stats.NoData))
	fmt.Fprintf(c.out, "  Duplicates: %s\n", formatNumber(stats.Duplicates))
	fmt.Fprintf(c.out, "  Failed:     %s\n", formatNumber(stats.Failed))

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.failed {
		fmt.Fprintf(c.out, "  ✗ %s [%s] %v\n", r.Path, ingest.Classify(r.Err), r.Err)
	}
}
