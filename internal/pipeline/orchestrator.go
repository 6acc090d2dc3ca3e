package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/materializer"
	"github.com/nao1215/byteforge/internal/model"
)

var (
	// ErrPhaseTimeout is returned when the only phase of a job timed out.
	ErrPhaseTimeout = errors.New("scan phase timed out")

	// ErrPhaseFailed is returned when the only phase of a job failed.
	ErrPhaseFailed = errors.New("scan phase failed")

	// ErrUnknownKind is returned for a job kind with no pipeline.
	ErrUnknownKind = errors.New("unknown job kind")
)

// compositeTool is the tool label of a composite result.
const compositeTool = "composite"

// compositePhases are the kinds a composite job runs, in order.
var compositePhases = []model.JobKind{
	model.JobKindRecon,
	model.JobKindCrawl,
	model.JobKindVulnerabilityScan,
}

// Adapters are the scan modules the orchestrator drives.
type Adapters struct {
	Recon    ReconRunner
	Crawl    CrawlRunner
	VulnScan VulnScanRunner

	// Probe builds active probers for active-probe jobs.
	Probe ProbeFactory

	// Findings loads stored findings for report jobs.
	Findings FindingLister
}

// Orchestrator builds and runs the step list of a job kind.
type Orchestrator struct {
	adapters   Adapters
	crawlDepth int
	vulnTags   string
	profiles   *config.Profiles
	now        func() time.Time
	logger     *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCrawlDepth sets the crawl depth of crawl and composite jobs.
func WithCrawlDepth(depth int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.crawlDepth = depth
	}
}

// WithVulnTags sets the template tags of vulnerability scans.
func WithVulnTags(tags string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.vulnTags = tags
	}
}

// WithProfiles sets the per-host scan overrides.
func WithProfiles(p *config.Profiles) OrchestratorOption {
	return func(o *Orchestrator) {
		o.profiles = p
	}
}

// WithClock sets the clock used for report generation.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithOrchestratorLogger sets a custom logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator over the given adapters.
func NewOrchestrator(adapters Adapters, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		adapters:   adapters,
		crawlDepth: DefaultCrawlDepth,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Steps returns the steps of a job kind in execution order. profile
// overrides the orchestrator's crawl depth and template tags and supplies
// the probe's extra endpoints and headers.
func (o *Orchestrator) Steps(kind model.JobKind, profile config.ScanProfile) ([]Step, error) {
	depth := o.crawlDepth
	if profile.CrawlDepth != 0 {
		depth = profile.CrawlDepth
	}
	tags := o.vulnTags
	if profile.Templates != "" {
		tags = profile.Templates
	}

	switch kind {
	case model.JobKindRecon:
		return []Step{NewReconStep(o.adapters.Recon)}, nil
	case model.JobKindCrawl:
		return []Step{NewCrawlStep(o.adapters.Crawl, depth)}, nil
	case model.JobKindVulnerabilityScan:
		return []Step{NewVulnScanStep(o.adapters.VulnScan, tags)}, nil
	case model.JobKindActiveProbe:
		return []Step{NewProbeStep(o.adapters.Probe, profile.Headers, profile.Endpoints)}, nil
	case model.JobKindReport:
		return []Step{NewReportStep(o.adapters.Findings, o.now, o.logger)}, nil
	case model.JobKindComposite:
		steps := make([]Step, 0, len(compositePhases))
		for _, k := range compositePhases {
			sub, err := o.Steps(k, profile)
			if err != nil {
				return nil, err
			}
			steps = append(steps, sub...)
		}
		return steps, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Run executes job against target, staging findings on session.
//
// A single-phase job whose adapter reports timeout or error returns
// ErrPhaseTimeout or ErrPhaseFailed. Inside a composite job the failed
// phase is recorded and the next phase runs. A step error stops the run;
// findings staged by earlier steps stay on the session.
func (o *Orchestrator) Run(ctx context.Context, job *model.Job, target *model.Target, session materializer.Stager) (*model.ScanResult, error) {
	exec := NewExecution(job, target, session)

	steps, err := o.Steps(job.Kind, o.profiles.Get(Host(exec.Descriptor)))
	if err != nil {
		return nil, err
	}

	p := New(WithLogger(o.logger))
	p.AddSteps(steps...)

	if err := p.Execute(ctx, exec); err != nil {
		return nil, err
	}

	if job.Kind == model.JobKindComposite {
		return composite(job.ID, exec), nil
	}

	result := exec.Results[job.Kind]
	if result == nil {
		return nil, fmt.Errorf("%w: %s produced no result", ErrPhaseFailed, job.Kind)
	}
	return result, phaseError(result)
}

// Host returns the host name of a target descriptor, which may be a bare
// domain or a URL.
func Host(descriptor string) string {
	d := strings.TrimSpace(descriptor)
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil {
			return strings.ToLower(u.Hostname())
		}
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if h, _, err := net.SplitHostPort(d); err == nil {
		d = h
	}
	return strings.ToLower(d)
}

// phaseError converts an adapter failure into an orchestrator error.
func phaseError(result *model.ScanResult) error {
	switch result.Status {
	case model.ResultTimeout:
		return fmt.Errorf("%w: %s: %s", ErrPhaseTimeout, result.Kind, result.Error)
	case model.ResultError, model.ResultToolNotFound:
		return fmt.Errorf("%w: %s: %s", ErrPhaseFailed, result.Kind, result.Error)
	default:
		return nil
	}
}

// composite aggregates the phases of a composite job.
func composite(jobID int64, exec *Execution) *model.ScanResult {
	total := 0
	for _, ph := range exec.Phases {
		total += ph.FindingsCount
	}

	vulns := 0
	if r, ok := exec.Results[model.JobKindVulnerabilityScan]; ok {
		vulns = len(r.Matches)
	}
	subdomains := 0
	if r, ok := exec.Results[model.JobKindRecon]; ok {
		if d, ok := r.Details.(*model.ReconDetails); ok {
			subdomains = d.FoundCount
		}
	}

	return &model.ScanResult{
		JobID:  jobID,
		Kind:   model.JobKindComposite,
		Status: model.ResultCompleted,
		Tool:   compositeTool,
		Details: &model.CompositeDetails{
			Phases:        exec.Phases,
			Results:       exec.Results,
			Summary:       fmt.Sprintf("Full scan completed. Found %d vulnerabilities and %d subdomains.", vulns, subdomains),
			FindingsCount: total,
		},
	}
}
