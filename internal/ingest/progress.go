package ingest

// ProgressReporter provides callbacks for reporting ingest progress.
// Implementations can display progress bars, log messages, or remain silent.
// OnFileProcessed may be called from several goroutines at once.
type ProgressReporter interface {
	// OnStart is called before any file is processed.
	OnStart(totalFiles int)

	// OnFileProcessed is called after each file is processed.
	OnFileProcessed(result Result)

	// OnComplete is called when every file has been processed.
	OnComplete(stats Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnStart(totalFiles int)        {}
func (NoOpProgressReporter) OnFileProcessed(result Result) {}
func (NoOpProgressReporter) OnComplete(stats Stats)        {}
