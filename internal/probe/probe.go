package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/byteforge/internal/model"
)

const (
	// toolName labels active probe results.
	toolName = "active_scanner"

	// MaxEndpoints is how many endpoints one run tests.
	MaxEndpoints = 10

	// DefaultRequestTimeout bounds every probe request.
	DefaultRequestTimeout = 5 * time.Second

	// maxBody caps how much of a response body is inspected.
	maxBody = 1 << 20

	// snippetLen caps the response excerpt attached to a match.
	snippetLen = 500
)

// module is one class of active test.
type module struct {
	name string
	scan func(ctx context.Context, p *Prober, endpoints []string) []model.Match
}

// modules run in this order.
var modules = []module{
	{"XSS Detection", scanXSS},
	{"SQL Injection Detection", scanSQLi},
	{"Path Traversal Detection", scanPathTraversal},
	{"SSRF Detection", scanSSRF},
	{"Open Redirect Detection", scanOpenRedirect},
	{"Header Injection Detection", scanHeaderInjection},
}

// ModuleNames lists the active test classes in execution order.
func ModuleNames() []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.name
	}
	return names
}

// Prober sends attack payloads to the query parameters of endpoints and
// reports the ones that respond like vulnerable code.
type Prober struct {
	client   *http.Client
	noFollow *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	headers  map[string]string
	logger   *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient sets the client used for probe requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) {
		p.client = c
	}
}

// WithRateLimit paces requests to rps per second. rps <= 0 disables pacing.
func WithRateLimit(rps int) Option {
	return func(p *Prober) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithHeaders sets extra request headers, such as credentials from a scan
// profile.
func WithHeaders(headers map[string]string) Option {
	return func(p *Prober) {
		p.headers = headers
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// New creates a Prober. Requests are paced at model.DefaultRateLimitRPS
// unless WithRateLimit says otherwise.
func New(opts ...Option) *Prober {
	p := &Prober{
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(model.DefaultRateLimitRPS), 1),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	nf := *p.client
	nf.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	p.noFollow = &nf

	return p
}

// Run tests endpoints (target alone when endpoints is empty), capped to the
// first MaxEndpoints. A panic inside one module skips that module only.
func (p *Prober) Run(ctx context.Context, jobID int64, target string, endpoints []string) *model.ScanResult {
	if len(endpoints) == 0 && target != "" {
		endpoints = []string{target}
	}
	if len(endpoints) > MaxEndpoints {
		endpoints = endpoints[:MaxEndpoints]
	}

	matches := make([]model.Match, 0)
	for _, m := range modules {
		if ctx.Err() != nil {
			break
		}
		found, err := p.runModule(ctx, m, endpoints)
		if err != nil {
			p.logger.Warn("probe module failed", "module", m.name, "error", err)
			continue
		}
		matches = append(matches, found...)
	}

	p.logger.Debug("active probe finished", "target", target, "endpoints", len(endpoints), "matches", len(matches))

	return &model.ScanResult{
		JobID:   jobID,
		Kind:    model.JobKindActiveProbe,
		Status:  model.ResultCompleted,
		Tool:    toolName,
		Matches: matches,
		Details: &model.ProbeDetails{
			Target:          target,
			EndpointsTested: len(endpoints),
			Modules:         ModuleNames(),
			FindingsCount:   len(matches),
		},
	}
}

func (p *Prober) runModule(ctx context.Context, m module, endpoints []string) (found []model.Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("panic in %s: %v", m.name, r)
		}
	}()
	return m.scan(ctx, p, endpoints), nil
}
