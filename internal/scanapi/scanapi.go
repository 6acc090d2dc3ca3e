package scanapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/crawler"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/pipeline"
	"github.com/nao1215/byteforge/internal/probe"
	"github.com/nao1215/byteforge/internal/recon"
	"github.com/nao1215/byteforge/internal/report"
	"github.com/nao1215/byteforge/internal/toolexec"
	"github.com/nao1215/byteforge/internal/vulnscan"
)

// Executor runs external scanner binaries. *toolexec.Runner implements it.
type Executor interface {
	recon.Executor
	crawler.Executor
	vulnscan.Executor
}

// API holds configured scan modules.
type API struct {
	recon    *recon.Scanner
	crawler  *crawler.Crawler
	vulnscan *vulnscan.Scanner

	probeTimeout time.Duration
	probeClient  *http.Client
	crawlDepth   int
	templates    string
	profiles     *config.Profiles
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures an API.
type Option func(*apiOptions)

type apiOptions struct {
	exec       Executor
	httpClient *http.Client
	now        func() time.Time
}

// WithExecutor replaces the external tool runner.
func WithExecutor(exec Executor) Option {
	return func(o *apiOptions) {
		o.exec = exec
	}
}

// WithHTTPClient sets the client used by the native crawler and the prober.
func WithHTTPClient(c *http.Client) Option {
	return func(o *apiOptions) {
		o.httpClient = c
	}
}

// WithClock sets the clock used for reports.
func WithClock(now func() time.Time) Option {
	return func(o *apiOptions) {
		o.now = now
	}
}

// New builds the scan modules from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *API {
	if logger == nil {
		logger = slog.Default()
	}
	o := apiOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exec == nil {
		o.exec = toolexec.NewRunner(
			toolexec.WithToolDir(cfg.ToolDir),
			toolexec.WithLogger(logger),
		)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.ProbeTimeout}
	}

	reconOpts := []recon.Option{
		recon.WithTimeout(cfg.ReconTimeout),
		recon.WithLogger(logger),
	}
	if cfg.DNSResolver != "" {
		reconOpts = append(reconOpts, recon.WithResolver(recon.NewResolver(cfg.DNSResolver, 0)))
	}

	crawlOpts := []crawler.Option{
		crawler.WithTimeout(cfg.CrawlTimeout),
		crawler.WithLogger(logger),
	}
	if cfg.NativeCrawl {
		crawlOpts = append(crawlOpts, crawler.WithSpider(crawler.NewSpider(o.httpClient)))
	}

	return &API{
		recon:   recon.NewScanner(o.exec, reconOpts...),
		crawler: crawler.New(o.exec, crawlOpts...),
		vulnscan: vulnscan.NewScanner(o.exec,
			vulnscan.WithTimeout(cfg.VulnScanTimeout),
			vulnscan.WithSeverities(cfg.Severities),
			vulnscan.WithRateLimit(cfg.ScannerRateLimit),
			vulnscan.WithLogger(logger),
		),
		probeTimeout: cfg.ProbeTimeout,
		probeClient:  o.httpClient,
		crawlDepth:   cfg.CrawlDepth,
		templates:    cfg.Templates,
		profiles:     cfg.Profiles,
		now:          o.now,
		logger:       logger,
	}
}

// RunRecon enumerates subdomains of domain.
func (a *API) RunRecon(ctx context.Context, jobID int64, domain string) *model.ScanResult {
	return a.recon.Run(ctx, jobID, domain)
}

// RunCrawl crawls url to depth, keeping URLs within scope. A depth below
// 1 uses the configured depth.
func (a *API) RunCrawl(ctx context.Context, jobID int64, url string, depth int, scope []string) *model.ScanResult {
	if depth < 1 {
		depth = a.crawlDepth
	}
	return a.crawler.Run(ctx, jobID, url, depth, scope)
}

// RunVulnerabilityScan matches templates selected by tags against url.
// Empty tags use the configured templates.
func (a *API) RunVulnerabilityScan(ctx context.Context, jobID int64, url, tags string) *model.ScanResult {
	if tags == "" {
		tags = a.templates
	}
	return a.vulnscan.Run(ctx, jobID, url, tags)
}

// RunActiveProbe probes endpoints, or url alone when endpoints is empty,
// at the default target rate limit.
func (a *API) RunActiveProbe(ctx context.Context, jobID int64, url string, endpoints []string) *model.ScanResult {
	return a.prober(model.DefaultRateLimitRPS, nil).Run(ctx, jobID, url, endpoints)
}

// RunReport builds a report of findings.
func (a *API) RunReport(jobID int64, findings []model.Finding, targetName string) *report.Report {
	return report.Generate(jobID, findings, targetName, a.now())
}

// prober builds a prober paced at rps that sends headers.
func (a *API) prober(rps int, headers map[string]string) pipeline.ProbeRunner {
	return probe.New(
		probe.WithHTTPClient(a.probeClient),
		probe.WithRateLimit(rps),
		probe.WithRequestTimeout(a.probeTimeout),
		probe.WithHeaders(headers),
		probe.WithLogger(a.logger),
	)
}

// Adapters returns the scan modules in the form the orchestrator drives.
func (a *API) Adapters(findings pipeline.FindingLister) pipeline.Adapters {
	return pipeline.Adapters{
		Recon:    a.recon,
		Crawl:    a.crawler,
		VulnScan: a.vulnscan,
		Probe:    a.prober,
		Findings: findings,
	}
}

// Orchestrator assembles the job orchestrator over the scan modules.
func (a *API) Orchestrator(findings pipeline.FindingLister) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(a.Adapters(findings),
		pipeline.WithCrawlDepth(a.crawlDepth),
		pipeline.WithVulnTags(a.templates),
		pipeline.WithProfiles(a.profiles),
		pipeline.WithClock(a.now),
		pipeline.WithOrchestratorLogger(a.logger),
	)
}
