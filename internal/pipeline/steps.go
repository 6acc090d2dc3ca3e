package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/byteforge/internal/materializer"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/report"
)

// ReconRunner enumerates subdomains. *recon.Scanner implements it.
type ReconRunner interface {
	Run(ctx context.Context, jobID int64, target string) *model.ScanResult
}

// CrawlRunner discovers URLs. *crawler.Crawler implements it.
type CrawlRunner interface {
	Run(ctx context.Context, jobID int64, targetURL string, depth int, scope []string) *model.ScanResult
}

// VulnScanRunner matches vulnerability templates. *vulnscan.Scanner implements it.
type VulnScanRunner interface {
	Run(ctx context.Context, jobID int64, target, tags string) *model.ScanResult
}

// ProbeRunner sends attack payloads. *probe.Prober implements it.
type ProbeRunner interface {
	Run(ctx context.Context, jobID int64, target string, endpoints []string) *model.ScanResult
}

// FindingLister loads stored findings. *store.Store implements it.
type FindingLister interface {
	ListFindings(ctx context.Context, targetID int64) ([]model.Finding, error)
}

// materialize stages the matches of result and records the phase.
func materialize(exec *Execution, result *model.ScanResult) error {
	n, err := materializer.Materialize(exec.Session, exec.Target.ID, exec.Job.ID, result)
	if err != nil {
		return fmt.Errorf("materialize %s findings: %w", result.Kind, err)
	}
	exec.record(result, n)
	return nil
}

// ReconStep enumerates subdomains of the target.
type ReconStep struct {
	runner ReconRunner
}

// NewReconStep creates a recon step.
func NewReconStep(runner ReconRunner) *ReconStep {
	return &ReconStep{runner: runner}
}

// Name returns the step name.
func (s *ReconStep) Name() string {
	return string(model.JobKindRecon)
}

// Do executes the recon step.
func (s *ReconStep) Do(ctx context.Context, exec *Execution) error {
	return materialize(exec, s.runner.Run(ctx, exec.Job.ID, exec.Descriptor))
}

// DefaultCrawlDepth is the crawl depth used by jobs.
const DefaultCrawlDepth = 3

// CrawlStep discovers and categorizes URLs on the target.
type CrawlStep struct {
	runner CrawlRunner
	depth  int
}

// NewCrawlStep creates a crawl step. A depth below 1 uses DefaultCrawlDepth.
func NewCrawlStep(runner CrawlRunner, depth int) *CrawlStep {
	if depth < 1 {
		depth = DefaultCrawlDepth
	}
	return &CrawlStep{runner: runner, depth: depth}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return string(model.JobKindCrawl)
}

// Do executes the crawl step. Discovered URLs are kept within the
// target's scope.
func (s *CrawlStep) Do(ctx context.Context, exec *Execution) error {
	return materialize(exec, s.runner.Run(ctx, exec.Job.ID, exec.Descriptor, s.depth, exec.Target.ScopeEntries()))
}

// VulnScanStep matches vulnerability templates against the target.
type VulnScanStep struct {
	runner VulnScanRunner
	tags   string
}

// NewVulnScanStep creates a vulnerability scan step. Empty tags use the
// scanner's defaults.
func NewVulnScanStep(runner VulnScanRunner, tags string) *VulnScanStep {
	return &VulnScanStep{runner: runner, tags: tags}
}

// Name returns the step name.
func (s *VulnScanStep) Name() string {
	return string(model.JobKindVulnerabilityScan)
}

// Do executes the vulnerability scan step.
func (s *VulnScanStep) Do(ctx context.Context, exec *Execution) error {
	return materialize(exec, s.runner.Run(ctx, exec.Job.ID, exec.Descriptor, s.tags))
}

// ProbeFactory builds an active prober paced at rps requests per second
// that sends headers with every request.
type ProbeFactory func(rps int, headers map[string]string) ProbeRunner

// ProbeStep sends active payloads to the target.
type ProbeStep struct {
	factory   ProbeFactory
	headers   map[string]string
	endpoints []string
}

// NewProbeStep creates an active probe step. factory builds a runner
// paced at the target's rate limit. endpoints are probed in addition to
// the target itself.
func NewProbeStep(factory ProbeFactory, headers map[string]string, endpoints []string) *ProbeStep {
	return &ProbeStep{factory: factory, headers: headers, endpoints: endpoints}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return string(model.JobKindActiveProbe)
}

// Do executes the probe step. Crawl output is not used; only the target
// and configured endpoints are probed.
func (s *ProbeStep) Do(ctx context.Context, exec *Execution) error {
	var endpoints []string
	if len(s.endpoints) > 0 {
		endpoints = append([]string{exec.Descriptor}, s.endpoints...)
	}
	runner := s.factory(exec.Target.EffectiveRateLimit(), s.headers)
	return materialize(exec, runner.Run(ctx, exec.Job.ID, exec.Descriptor, endpoints))
}

// ReportStep renders a report from the target's stored findings.
// It creates no findings.
type ReportStep struct {
	findings FindingLister
	now      func() time.Time
	logger   *slog.Logger
}

// NewReportStep creates a report step.
func NewReportStep(findings FindingLister, now func() time.Time, logger *slog.Logger) *ReportStep {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportStep{findings: findings, now: now, logger: logger}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return string(model.JobKindReport)
}

// Do executes the report step.
func (s *ReportStep) Do(ctx context.Context, exec *Execution) error {
	findings, err := s.findings.ListFindings(ctx, exec.Target.ID)
	if err != nil {
		return fmt.Errorf("load findings of target %d: %w", exec.Target.ID, err)
	}

	r := report.Generate(exec.Job.ID, findings, exec.Target.Name, s.now())

	s.logger.Info("report generated",
		"job_id", exec.Job.ID,
		"report_id", r.ReportID,
		"findings", r.TotalFindings(),
		"risk_score", r.RiskScore,
	)

	exec.record(&model.ScanResult{
		JobID:   exec.Job.ID,
		Kind:    model.JobKindReport,
		Status:  model.ResultCompleted,
		Tool:    "report",
		Details: r.Details(),
	}, 0)
	return nil
}
