// Package ingest turns ICT log files into stored result records.
//
// Each file goes through: settle delay → read → parse → extract → wait for
// the sink → insert → audit. Files are independent and processed by a
// bounded worker pool; a failure in one file never affects another.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/maypok86/otter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/ict-watcher/internal/extract"
	"github.com/mvp-joe/ict-watcher/internal/parser"
	"github.com/mvp-joe/ict-watcher/internal/storage"
)

// dedupeCapacity bounds the number of content hashes remembered.
const dedupeCapacity = 10_000

// Sink is where extracted records go.
type Sink interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, table string, values []any) error
}

// EventRecorder keeps an audit trail of processed files.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev storage.IngestEvent) error
}

// Config wires a Pipeline.
type Config struct {
	Parser    *parser.Parser
	Extractor *extract.Extractor
	Sink      Sink
	Events    EventRecorder // optional

	Table             string
	SettleDelay       time.Duration
	DedupeWindow      time.Duration // 0 disables duplicate suppression
	ReconnectInterval time.Duration
	Workers           int

	Logger *zap.Logger
}

// Result describes what happened to one file.
type Result struct {
	Path   string
	SHA256 string
	Status string // one of the storage.Status* values
	Record extract.Record
	Err    error
}

// Stats counts results by status.
type Stats struct {
	Files      int
	Inserted   int
	NoData     int
	Duplicates int
	Failed     int
}

func (s *Stats) add(r Result) {
	s.Files++
	switch r.Status {
	case storage.StatusInserted:
		s.Inserted++
	case storage.StatusNoData:
		s.NoData++
	case storage.StatusDuplicate:
		s.Duplicates++
	default:
		s.Failed++
	}
}

// Pipeline ingests files into a Sink. Safe for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
	seen   *otter.Cache[string, struct{}]
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Parser == nil {
		cfg.Parser = parser.New()
	}
	if cfg.Extractor == nil {
		return nil, errors.New("ingest: extractor is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("ingest: sink is required")
	}
	if cfg.Table == "" {
		cfg.Table = storage.DefaultResultsTable
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{cfg: cfg, logger: logger.Named("ingest")}
	if cfg.DedupeWindow > 0 {
		cache, err := otter.MustBuilder[string, struct{}](dedupeCapacity).
			WithTTL(cfg.DedupeWindow).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build dedupe cache: %w", err)
		}
		p.seen = &cache
	}
	return p, nil
}

// Close releases the dedupe cache.
func (p *Pipeline) Close() {
	if p.seen != nil {
		p.seen.Close()
	}
}

// IngestFiles processes paths with at most Workers files in flight.
// progress may be nil. The returned error is only set when ctx ended
// before every file was processed; per-file failures are in the stats.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, progress ProgressReporter) (Stats, error) {
	if progress == nil {
		progress = NoOpProgressReporter{}
	}
	progress.OnStart(len(paths))

	results := make([]Result, len(paths))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.IngestFile(ctx, path)
			progress.OnFileProcessed(results[i])
			return nil
		})
	}
	_ = g.Wait()

	var stats Stats
	for _, r := range results {
		if r.Path == "" {
			continue
		}
		stats.add(r)
	}
	progress.OnComplete(stats)
	return stats, ctx.Err()
}

// IngestFile runs one file through the pipeline and audits the outcome.
func (p *Pipeline) IngestFile(ctx context.Context, path string) Result {
	log := p.logger.With(zap.String("path", path))

	res := p.process(ctx, path, log)
	if res.Err != nil && ctx.Err() != nil {
		// Shutting down, the file will be picked up again by a later event.
		log.Debug("ingest interrupted", zap.Error(res.Err))
		return res
	}

	switch res.Status {
	case storage.StatusInserted:
		log.Info("record stored",
			zap.String("product", res.Record.ProductName),
			zap.String("part_number", res.Record.PartNumber),
			zap.Bool("pass", res.Record.IsPass()))
	case storage.StatusNoData:
		log.Info("no test data in file")
	case storage.StatusDuplicate:
		log.Info("skipping duplicate content", zap.String("sha256", res.SHA256))
	default:
		log.Error("ingest failed", zap.String("kind", Classify(res.Err)), zap.Error(res.Err))
	}

	p.audit(ctx, res, log)
	return res
}

func (p *Pipeline) process(ctx context.Context, path string, log *zap.Logger) Result {
	res := Result{Path: path, Status: storage.StatusFailed}

	if err := sleep(ctx, p.cfg.SettleDelay); err != nil {
		res.Err = err
		return res
	}

	text, err := p.cfg.Parser.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	sum := sha256.Sum256([]byte(text))
	res.SHA256 = hex.EncodeToString(sum[:])

	if !p.claim(res.SHA256) {
		res.Status = storage.StatusDuplicate
		return res
	}

	record, ok, err := p.extract(path, text, log)
	if err != nil || !ok {
		p.release(res.SHA256)
		res.Err = err
		if err == nil {
			res.Status = storage.StatusNoData
		}
		return res
	}
	res.Record = record

	if err := p.waitForSink(ctx, log); err != nil {
		p.release(res.SHA256)
		res.Err = err
		return res
	}
	if err := p.cfg.Sink.Insert(ctx, p.cfg.Table, record.Values()); err != nil {
		p.release(res.SHA256)
		res.Err = fmt.Errorf("%w: %w", ErrSink, err)
		return res
	}

	res.Status = storage.StatusInserted
	return res
}

func (p *Pipeline) extract(path, text string, log *zap.Logger) (extract.Record, bool, error) {
	root, err := p.cfg.Parser.Parse(text)
	if err != nil {
		return extract.Record{}, false, fmt.Errorf("%s: %w", path, err)
	}
	if suspect := root.SuspectNames(); len(suspect) > 0 {
		log.Warn("node names contain braces, log may be malformed", zap.Strings("nodes", suspect))
	}
	return p.cfg.Extractor.Extract(root)
}

// waitForSink blocks until the sink answers Ping, retrying every
// ReconnectInterval.
func (p *Pipeline) waitForSink(ctx context.Context, log *zap.Logger) error {
	for {
		err := p.cfg.Sink.Ping(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("sink not ready, waiting",
			zap.Duration("retry_in", p.cfg.ReconnectInterval),
			zap.Error(err))
		if err := sleep(ctx, p.cfg.ReconnectInterval); err != nil {
			return err
		}
	}
}

func (p *Pipeline) audit(ctx context.Context, res Result, log *zap.Logger) {
	if p.cfg.Events == nil {
		return
	}
	ev := storage.IngestEvent{
		Path:      res.Path,
		SHA256:    res.SHA256,
		Status:    res.Status,
		ErrorKind: Classify(res.Err),
	}
	if res.Err != nil {
		ev.Message = res.Err.Error()
	}
	if err := p.cfg.Events.RecordEvent(ctx, ev); err != nil {
		log.Warn("failed to record ingest event", zap.Error(err))
	}
}

// claim marks content as in flight. It reports false when the same content
// was claimed inside the dedupe window.
func (p *Pipeline) claim(sum string) bool {
	if p.seen == nil {
		return true
	}
	return p.seen.SetIfAbsent(sum, struct{}{})
}

// release forgets content that did not make it into the sink so a later
// event can retry it.
func (p *Pipeline) release(sum string) {
	if p.seen != nil {
		p.seen.Delete(sum)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
