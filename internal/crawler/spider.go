package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Spider is an in-process breadth-first crawler used when no external
// crawler binary is installed. It stays on the start host and reports every
// page, script and GET form it discovers.
type Spider struct {
	client *http.Client

	// maxPages limits the total number of pages fetched.
	maxPages int

	// limiter paces requests. nil means no pacing.
	limiter *rate.Limiter

	userAgent   string
	maxBodySize int64

	// ignorePatterns are URL path globs to skip (e.g. "/logout*", "*.pdf").
	ignorePatterns []string

	// followPatterns, when set, restrict crawling to matching paths.
	followPatterns []string

	// headers are sent with every request.
	headers map[string]string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of pages to fetch.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithRateLimit paces requests to rps per second. rps <= 0 disables pacing.
func WithRateLimit(rps int) SpiderOption {
	return func(s *Spider) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithSpiderUserAgent sets a custom User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithSpiderMaxBodySize sets the maximum response body size.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// Empty means all URLs are allowed (subject to ignorePatterns).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithHeaders sets extra request headers, such as an auth cookie from a scan
// profile.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = headers
	}
}

// NewSpider creates a new Spider. A nil client uses a client with a 10s
// timeout.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	s := &Spider{
		client:      client,
		maxPages:    100,
		limiter:     rate.NewLimiter(rate.Limit(5), 1),
		userAgent:   "Mozilla/5.0 (compatible; byteforge/1.0)",
		maxBodySize: 5 * 1024 * 1024,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// Crawl fetches startURL and follows same-host links up to depth levels.
// It returns every discovered URL in discovery order: fetched pages, script
// sources, and GET form submissions. Fetch errors skip the page; context
// cancellation returns what was found so far together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string, depth int) ([]string, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		start.Scheme = "http"
	}

	visited := make(map[string]bool)
	found := make([]string, 0)
	seen := make(map[string]bool)
	report := func(u string) {
		if !seen[u] {
			seen[u] = true
			found = append(found, u)
		}
	}

	queue := []queueItem{{url: start.String(), depth: 0}}
	pages := 0

	for len(queue) > 0 && pages < s.maxPages {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		item := queue[0]
		queue = queue[1:]

		key := normalizeURL(item.url)
		if visited[key] {
			continue
		}
		visited[key] = true

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return found, err
			}
		}

		result, err := s.fetch(ctx, item.url)
		if err != nil {
			continue
		}
		pages++
		report(item.url)

		if result == nil {
			continue
		}
		for _, script := range result.Scripts {
			if isSameHost(start.Host, script) {
				report(script)
			}
		}
		for _, form := range result.Forms {
			if form.Method == http.MethodGet && isSameHost(start.Host, form.Action) {
				report(form.QueryURL())
			}
		}

		if item.depth >= depth {
			continue
		}
		for _, link := range result.InternalLinks {
			if !visited[normalizeURL(link)] && isSameHost(start.Host, link) && s.shouldCrawl(link) {
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}
	}

	return found, nil
}

// fetch retrieves one page. Non-HTML responses return a nil result.
func (s *Spider) fetch(ctx context.Context, pageURL string) (*ParseResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBodySize))
		return nil, nil
	}

	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	return parser.Parse(io.LimitReader(resp.Body, s.maxBodySize))
}

// normalizeURL normalizes a URL for deduplication: no fragment, lower-case
// scheme and host, and "/" for an empty path.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// isSameHost checks if a URL is on the crawl's start host.
func isSameHost(baseHost, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, baseHost)
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
// Ignore patterns win; when follow patterns are set a URL must match one.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// "/admin/*" matches "/admin" and anything below it, "*.pdf" matches any
// path with that extension, and other patterns use filepath.Match.
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
