package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/byteforge/internal/log"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/toolexec"
)

// fakeExecutor emulates installed or missing crawler binaries.
type fakeExecutor struct {
	// outputs maps tool name to the lines it produces. Tools not listed are
	// reported as not installed.
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeExecutor) Run(_ context.Context, _ time.Duration, name string, args ...string) (*toolexec.Result, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	out, ok := f.outputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", toolexec.ErrToolNotFound, name)
	}
	if i := slices.Index(args, "-o"); i >= 0 {
		if err := os.WriteFile(args[i+1], []byte(out), 0o600); err != nil {
			return nil, err
		}
		return &toolexec.Result{}, nil
	}
	return &toolexec.Result{Stdout: []byte(out)}, nil
}

func newTestCrawler(exec Executor, opts ...Option) *Crawler {
	opts = append([]Option{WithLogger(log.Discard()), WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return New(exec, opts...)
}

// TestCrawlerRun tests tool selection and result shaping.
func TestCrawlerRun(t *testing.T) {
	t.Parallel()

	t.Run("katana output is categorized", func(t *testing.T) {
		t.Parallel()

		exec := &fakeExecutor{outputs: map[string]string{
			"katana": strings.Join([]string{
				"https://example.com/",
				"https://example.com/app.js",
				"https://example.com/api/users",
				"https://example.com/login",
				"https://example.com/items?id=1",
				"https://example.com/",
				"https://cdn.other.net/lib.js",
			}, "\n"),
		}}
		c := newTestCrawler(exec, WithTempDir(t.TempDir()))

		result := c.Run(context.Background(), 7, "https://example.com", 2, []string{"example.com"})

		if result.Status != model.ResultCompleted || result.Tool != "katana" {
			t.Fatalf("unexpected result %s / %s", result.Status, result.Tool)
		}
		if len(result.Matches) != 0 {
			t.Error("crawl must not produce matches")
		}
		d := result.Details.(*model.CrawlDetails)
		if d.TotalURLs != 5 {
			t.Errorf("expected 5 URLs after dedupe and scope, got %d", d.TotalURLs)
		}
		if !slices.Equal(d.JSFiles, []string{"https://example.com/app.js"}) {
			t.Errorf("js files: %v", d.JSFiles)
		}
		if len(d.APIEndpoints) != 1 || len(d.Forms) != 1 || len(d.Parameters) != 1 || len(d.Endpoints) != 1 {
			t.Errorf("unexpected categories: %+v", d)
		}
		if !slices.Equal(exec.calls, []string{"katana"}) {
			t.Errorf("expected only katana to run, got %v", exec.calls)
		}
	})

	t.Run("gospider is used when katana is missing", func(t *testing.T) {
		t.Parallel()

		exec := &fakeExecutor{outputs: map[string]string{
			"gospider": "[url] - [code-200] - https://example.com/about\n[javascript] - https://example.com/main.js\nnoise line\n",
		}}
		result := newTestCrawler(exec).Run(context.Background(), 1, "https://example.com", 3, nil)

		if result.Tool != "gospider" {
			t.Fatalf("expected gospider, got %q", result.Tool)
		}
		d := result.Details.(*model.CrawlDetails)
		if d.TotalURLs != 2 || len(d.JSFiles) != 1 {
			t.Errorf("unexpected details %+v", d)
		}
	})

	t.Run("simulated when no crawler is installed", func(t *testing.T) {
		t.Parallel()

		result := newTestCrawler(&fakeExecutor{}).Run(context.Background(), 1, "http://shop.example.com:8080/path", 3, nil)

		if result.Tool != "simulated" || !result.Simulated() {
			t.Fatalf("expected simulated label, got %q", result.Tool)
		}
		if result.Note == "" {
			t.Error("expected install note")
		}
		d := result.Details.(*model.CrawlDetails)
		if d.TotalURLs != 14 {
			t.Errorf("expected 14 total URLs, got %d", d.TotalURLs)
		}
		if len(d.Endpoints) != 5 {
			t.Errorf("expected 5 sampled endpoints, got %d", len(d.Endpoints))
		}
		for _, e := range append(d.Endpoints, d.JSFiles...) {
			if !strings.HasPrefix(e, "http://shop.example.com:8080/") {
				t.Errorf("unexpected base in %s", e)
			}
		}
		if len(d.APIEndpoints) != 3 || len(d.Parameters) != 2 || len(d.JSFiles) != 2 {
			t.Errorf("unexpected simulated details %+v", d)
		}
	})

	t.Run("simulated crawl of empty target uses demo host", func(t *testing.T) {
		t.Parallel()

		result := newTestCrawler(&fakeExecutor{}).Run(context.Background(), 1, "", 3, nil)
		d := result.Details.(*model.CrawlDetails)
		if !strings.HasPrefix(d.JSFiles[0], "https://example.com/") {
			t.Errorf("unexpected base %s", d.JSFiles[0])
		}
	})

	t.Run("spider fallback", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<a href="/api/v1/ping">ping</a>`)) //nolint:errcheck // test handler
		}))
		t.Cleanup(server.Close)

		c := newTestCrawler(&fakeExecutor{}, WithSpider(NewSpider(server.Client(), WithRateLimit(0))))
		result := c.Run(context.Background(), 1, server.URL, 1, nil)

		if result.Tool != "spider" {
			t.Fatalf("expected spider, got %q", result.Tool)
		}
		d := result.Details.(*model.CrawlDetails)
		if !slices.Equal(d.APIEndpoints, []string{server.URL + "/api/v1/ping"}) {
			t.Errorf("api endpoints: %v", d.APIEndpoints)
		}
	})

	t.Run("timeout is reported", func(t *testing.T) {
		t.Parallel()

		exec := &fakeExecutor{errs: map[string]error{"katana": fmt.Errorf("%w: katana", toolexec.ErrToolTimeout)}}
		result := newTestCrawler(exec).Run(context.Background(), 1, "https://example.com", 3, nil)
		if result.Status != model.ResultTimeout || result.Tool != "katana" {
			t.Errorf("expected katana timeout, got %s / %s", result.Status, result.Tool)
		}
	})

	t.Run("tool error is reported without fallback", func(t *testing.T) {
		t.Parallel()

		exec := &fakeExecutor{
			errs:    map[string]error{"katana": errors.New("boom")},
			outputs: map[string]string{"gospider": "https://example.com/"},
		}
		result := newTestCrawler(exec).Run(context.Background(), 1, "https://example.com", 3, nil)
		if result.Status != model.ResultError || result.Error != "boom" {
			t.Errorf("expected error status, got %s %q", result.Status, result.Error)
		}
		if slices.Contains(exec.calls, "gospider") {
			t.Error("gospider must not run after a katana failure")
		}
	})
}

// TestCategorizeURLs tests the categorization rule order.
func TestCategorizeURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/static/App.JS", "js"},
		{"https://example.com/api/login.js", "js"},
		{"https://example.com/api/login", "api"},
		{"https://example.com/v2/items?x=1", "api"},
		{"https://example.com/graphql", "api"},
		{"https://example.com/signup?ref=a", "form"},
		{"https://example.com/upload", "form"},
		{"https://example.com/items?id=1", "param"},
		{"https://example.com/about", "endpoint"},
		{"https://example.com/", "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			c := CategorizeURLs([]string{tt.url})
			var got string
			switch {
			case len(c.JSFiles) == 1:
				got = "js"
			case len(c.APIEndpoints) == 1:
				got = "api"
			case len(c.Forms) == 1:
				got = "form"
			case len(c.Parameters) == 1:
				got = "param"
			case len(c.Endpoints) == 1:
				got = "endpoint"
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

// TestFilterScope tests host-based scope filtering.
func TestFilterScope(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com/a",
		"https://api.example.com/b",
		"https://notexample.com/c",
		"https://other.org/d",
	}

	tests := []struct {
		name  string
		scope []string
		want  int
	}{
		{"empty scope keeps all", nil, 4},
		{"bare host includes subdomains", []string{"example.com"}, 2},
		{"wildcard entry", []string{"*.example.com"}, 2},
		{"url entry", []string{"https://other.org/path"}, 1},
		{"blank entries keep all", []string{" "}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FilterScope(urls, tt.scope); len(got) != tt.want {
				t.Errorf("got %v, want %d entries", got, tt.want)
			}
		})
	}
}

// TestParseGospiderOutput tests URL token extraction.
func TestParseGospiderOutput(t *testing.T) {
	t.Parallel()

	out := []byte("[url] - [code-200] - https://a.example/x\n\n[linkfinder] - https://a.example/y https://a.example/z\n[form] - nothing\n")
	got := ParseGospiderOutput(out)
	want := []string{"https://a.example/x", "https://a.example/y", "https://a.example/z"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
