package watcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WatchCoordinator routes file watcher events to the ingest pipeline and
// holds events back while the sink is unreachable.
type WatchCoordinator struct {
	files         FileWatcher
	ingester      Ingester
	sink          SinkProbe
	probeInterval time.Duration
	logger        *zap.Logger

	ctx context.Context
}

// NewWatchCoordinator creates a new watch coordinator. sink may be nil, in
// which case events are never held back. probeInterval is how often the
// sink is checked.
func NewWatchCoordinator(
	files FileWatcher,
	ingester Ingester,
	sink SinkProbe,
	probeInterval time.Duration,
	logger *zap.Logger,
) *WatchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if probeInterval <= 0 {
		probeInterval = time.Minute
	}
	return &WatchCoordinator{
		files:         files,
		ingester:      ingester,
		sink:          sink,
		probeInterval: probeInterval,
		logger:        logger.Named("coordinator"),
	}
}

// Start begins routing events. Blocks until ctx is cancelled.
func (c *WatchCoordinator) Start(ctx context.Context) error {
	c.ctx = ctx

	if err := c.files.Start(ctx, c.handleFileChange); err != nil {
		c.cleanup()
		return err
	}

	var wg sync.WaitGroup
	if c.sink != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.monitorSink(ctx)
		}()
	}

	c.logger.Info("watching for ICT logs")
	<-ctx.Done()

	c.cleanup()
	wg.Wait()
	return ctx.Err()
}

// cleanup stops the file watcher.
func (c *WatchCoordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		c.logger.Warn("file watcher stop failed", zap.Error(err))
	}
}

// monitorSink pauses the file watcher while the sink does not answer and
// resumes it, flushing held events, once it does.
func (c *WatchCoordinator) monitorSink(ctx context.Context) {
	ticker := time.NewTicker(c.probeInterval)
	defer ticker.Stop()

	paused := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := c.sink.Ping(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil && !paused:
			c.logger.Warn("sink unreachable, holding file events", zap.Error(err))
			c.files.Pause()
			paused = true
		case err == nil && paused:
			c.logger.Info("sink reachable again, resuming")
			paused = false
			c.files.Resume()
		}
	}
}

// handleFileChange processes file change events from the file watcher.
func (c *WatchCoordinator) handleFileChange(files []string) {
	if len(files) == 0 {
		return
	}

	c.logger.Info("processing file changes", zap.Int("files", len(files)))

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	stats, err := c.ingester.IngestFiles(ctx, files, nil)
	if err != nil {
		c.logger.Warn("ingest interrupted", zap.Error(err))
		return
	}

	c.logger.Info("file changes processed",
		zap.Int("inserted", stats.Inserted),
		zap.Int("no_data", stats.NoData),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed))
}
