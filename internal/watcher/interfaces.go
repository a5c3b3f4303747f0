package watcher

import (
	"context"

	"github.com/mvp-joe/ict-watcher/internal/ingest"
)

// FileWatcher monitors a log directory for new or rewritten files with
// debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// Ingester processes a batch of changed log files.
type Ingester interface {
	IngestFiles(ctx context.Context, paths []string, progress ingest.ProgressReporter) (ingest.Stats, error)
}

// SinkProbe reports whether the result store can accept writes.
type SinkProbe interface {
	Ping(ctx context.Context) error
}
