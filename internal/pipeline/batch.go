package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/byteforge/internal/model"
)

// Collector is an in-memory Stager for scans that are not persisted.
type Collector struct {
	mu       sync.Mutex
	findings []model.Finding
	evidence map[int][]model.Evidence
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{evidence: make(map[int][]model.Evidence)}
}

// StageFinding records a finding and its evidence.
func (c *Collector) StageFinding(f model.Finding, evidence ...model.Evidence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, f)
	if len(evidence) > 0 {
		c.evidence[len(c.findings)-1] = evidence
	}
}

// Findings returns a copy of the collected findings.
func (c *Collector) Findings() []model.Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Finding, len(c.findings))
	copy(out, c.findings)
	return out
}

// Evidence returns the evidence staged with the i-th finding.
func (c *Collector) Evidence(i int) []model.Evidence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evidence[i]
}

// BatchResult is the outcome of one direct scan in a batch.
type BatchResult struct {
	Target   *model.Target
	Result   *model.ScanResult
	Findings []model.Finding
	Err      error
}

// BatchProcessor runs one job kind against many targets concurrently.
// Results are not persisted.
type BatchProcessor struct {
	orchestrator *Orchestrator
	concurrency  int
	logger       *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(orchestrator *Orchestrator, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		orchestrator: orchestrator,
		concurrency:  4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans every target with the given kind. Results keep the
// order of targets. A failed scan is reported in its BatchResult and does
// not stop the others; the returned error is non-nil only on cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, kind model.JobKind, targets []*model.Target) ([]*BatchResult, error) {
	results := make([]*BatchResult, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, kind, targets, func(r *BatchResult, i int) {
		results[i] = r
	})
	return results, err
}

// ProcessBatchWithCallback scans every target and calls callback as each
// scan completes. callback runs on the scanning goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	kind model.JobKind,
	targets []*model.Target,
	callback func(result *BatchResult, index int),
) error {
	bp.logger.Info("starting batch processing",
		"kind", kind,
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			collector := NewCollector()
			job := &model.Job{ID: int64(i + 1), TargetID: target.ID, Kind: kind, Status: model.JobStatusRunning}
			result, err := bp.orchestrator.Run(ctx, job, target, collector)
			if err != nil {
				bp.logger.Warn("scan failed",
					"target", target.Descriptor(),
					"error", err,
				)
			}

			callback(&BatchResult{
				Target:   target,
				Result:   result,
				Findings: collector.Findings(),
				Err:      err,
			}, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
