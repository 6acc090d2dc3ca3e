package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/toolexec"
)

const (
	katanaTool   = "katana"
	gospiderTool = "gospider"

	// nativeTool labels results produced by the in-process Spider.
	nativeTool = "spider"

	// simulatedTool labels crawl results generated without any crawler.
	simulatedTool = "simulated"

	installHint = "No crawler installed. Install katana: go install github.com/projectdiscovery/katana/cmd/katana@latest"

	// simulatedEndpointSample is how many simulated endpoints are reported.
	simulatedEndpointSample = 5
)

// Executor runs an external tool. *toolexec.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*toolexec.Result, error)
}

// Crawler discovers the URLs of a web application.
// It prefers katana, falls back to gospider, then to the in-process Spider
// when one is configured, and finally to a simulated result.
type Crawler struct {
	exec    Executor
	timeout time.Duration
	spider  *Spider
	rnd     *rand.Rand
	tempDir string
	logger  *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithTimeout sets the deadline of each external crawler.
func WithTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.timeout = d
	}
}

// WithSpider enables the in-process Spider as a fallback when neither
// katana nor gospider is installed.
func WithSpider(s *Spider) Option {
	return func(c *Crawler) {
		c.spider = s
	}
}

// WithRand sets the random source used to sample simulated endpoints.
func WithRand(r *rand.Rand) Option {
	return func(c *Crawler) {
		c.rnd = r
	}
}

// WithTempDir sets the directory for katana output files.
func WithTempDir(dir string) Option {
	return func(c *Crawler) {
		c.tempDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler.
func New(exec Executor, opts ...Option) *Crawler {
	c := &Crawler{
		exec:    exec,
		timeout: 300 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // sampling demo data
	}
	return c
}

// Run crawls targetURL up to depth. When scope is non-empty, only URLs whose
// host matches one of its entries are reported. Crawl results carry no
// matches.
func (c *Crawler) Run(ctx context.Context, jobID int64, targetURL string, depth int, scope []string) *model.ScanResult {
	urls, tool, err := c.katana(ctx, targetURL, depth)
	if errors.Is(err, toolexec.ErrToolNotFound) {
		urls, tool, err = c.gospider(ctx, targetURL, depth)
	}
	if errors.Is(err, toolexec.ErrToolNotFound) && c.spider != nil {
		urls, tool, err = c.native(ctx, targetURL, depth)
	}

	switch {
	case errors.Is(err, toolexec.ErrToolNotFound):
		c.logger.Info("no crawler installed, using simulated crawl", "url", targetURL)
		return c.simulated(jobID, targetURL, depth)
	case errors.Is(err, toolexec.ErrToolTimeout):
		return failed(jobID, tool, model.ResultTimeout, err, targetURL, depth)
	case err != nil:
		return failed(jobID, tool, model.ResultError, err, targetURL, depth)
	}

	urls = FilterScope(Dedupe(urls), scope)
	cat := CategorizeURLs(urls)
	c.logger.Debug("crawl finished", "url", targetURL, "tool", tool, "urls", len(urls))

	return &model.ScanResult{
		JobID:  jobID,
		Kind:   model.JobKindCrawl,
		Status: model.ResultCompleted,
		Tool:   tool,
		Details: &model.CrawlDetails{
			URL:          targetURL,
			Depth:        depth,
			TotalURLs:    len(urls),
			Endpoints:    cat.Endpoints,
			JSFiles:      cat.JSFiles,
			APIEndpoints: cat.APIEndpoints,
			Forms:        cat.Forms,
			Parameters:   cat.Parameters,
		},
	}
}

// katana runs katana, which writes one URL per line to an output file.
func (c *Crawler) katana(ctx context.Context, targetURL string, depth int) ([]string, string, error) {
	f, err := os.CreateTemp(c.tempDir, "byteforge-katana-*.txt")
	if err != nil {
		return nil, katanaTool, fmt.Errorf("failed to create katana output file: %w", err)
	}
	out := f.Name()
	_ = f.Close()
	defer os.Remove(out) //nolint:errcheck // best-effort cleanup

	_, err = c.exec.Run(ctx, c.timeout, katanaTool,
		"-u", targetURL,
		"-d", strconv.Itoa(depth),
		"-silent",
		"-jc",
		"-kf", "all",
		"-o", out,
		"-timeout", "10",
	)
	if err != nil {
		return nil, katanaTool, err
	}

	data, err := os.ReadFile(out) //nolint:gosec // path created above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, katanaTool, nil
		}
		return nil, katanaTool, fmt.Errorf("failed to read katana output: %w", err)
	}
	return toolexec.Lines(data), katanaTool, nil
}

// gospider runs gospider and extracts every http token from its output.
func (c *Crawler) gospider(ctx context.Context, targetURL string, depth int) ([]string, string, error) {
	res, err := c.exec.Run(ctx, c.timeout, gospiderTool,
		"-s", targetURL,
		"-d", strconv.Itoa(depth),
		"--js",
		"-q",
	)
	if err != nil {
		return nil, gospiderTool, err
	}
	return ParseGospiderOutput(res.Stdout), gospiderTool, nil
}

// native crawls with the in-process Spider under the same deadline as the
// external tools.
func (c *Crawler) native(ctx context.Context, targetURL string, depth int) ([]string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	urls, err := c.spider.Crawl(ctx, targetURL, depth)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, nativeTool, fmt.Errorf("%w: spider after %s", toolexec.ErrToolTimeout, c.timeout)
	}
	if err != nil {
		return nil, nativeTool, err
	}
	return urls, nativeTool, nil
}

func (c *Crawler) simulated(jobID int64, targetURL string, depth int) *model.ScanResult {
	base := baseURL(targetURL)

	endpoints := []string{
		base + "/",
		base + "/about",
		base + "/contact",
		base + "/login",
		base + "/dashboard",
		base + "/api/users",
		base + "/api/v1/products",
	}
	jsFiles := []string{
		base + "/assets/js/main.js",
		base + "/assets/js/app.bundle.js",
	}
	apiEndpoints := []string{
		base + "/api/v1/auth",
		base + "/api/v1/users",
		base + "/graphql",
	}
	params := []string{
		base + "/search?q=test",
		base + "/products?id=1",
	}
	total := len(endpoints) + len(jsFiles) + len(apiEndpoints) + len(params)

	sampled := make([]string, 0, simulatedEndpointSample)
	for _, i := range c.rnd.Perm(len(endpoints))[:simulatedEndpointSample] {
		sampled = append(sampled, endpoints[i])
	}

	return &model.ScanResult{
		JobID:  jobID,
		Kind:   model.JobKindCrawl,
		Status: model.ResultCompleted,
		Tool:   simulatedTool,
		Note:   installHint,
		Details: &model.CrawlDetails{
			URL:          targetURL,
			Depth:        depth,
			TotalURLs:    total,
			Endpoints:    sampled,
			JSFiles:      jsFiles,
			APIEndpoints: apiEndpoints,
			Forms:        []string{},
			Parameters:   params,
		},
	}
}

func failed(jobID int64, tool string, status model.ResultStatus, err error, targetURL string, depth int) *model.ScanResult {
	return &model.ScanResult{
		JobID:  jobID,
		Kind:   model.JobKindCrawl,
		Status: status,
		Tool:   tool,
		Error:  err.Error(),
		Details: &model.CrawlDetails{
			URL:          targetURL,
			Depth:        depth,
			Endpoints:    []string{},
			JSFiles:      []string{},
			APIEndpoints: []string{},
			Forms:        []string{},
			Parameters:   []string{},
		},
	}
}

// baseURL returns scheme://host of target, defaulting to the demo target
// when target does not parse to an absolute URL.
func baseURL(target string) string {
	if target == "" {
		target = model.DefaultTargetURL
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u, _ = url.Parse(model.DefaultTargetURL) //nolint:errcheck // constant URL
	}
	return u.Scheme + "://" + u.Host
}

// ParseGospiderOutput extracts URL tokens from gospider output lines such as
// "[url] - [code-200] - https://example.com/a".
func ParseGospiderOutput(out []byte) []string {
	urls := make([]string, 0)
	for _, line := range toolexec.Lines(out) {
		if !strings.Contains(line, "http") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if strings.HasPrefix(field, "http") {
				urls = append(urls, field)
			}
		}
	}
	return urls
}
