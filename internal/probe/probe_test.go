package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/byteforge/internal/log"
	"github.com/nao1215/byteforge/internal/model"
)

// vulnerableApp emulates a web application with one flaw per path.
func vulnerableApp(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>You searched for %s</body></html>", r.URL.Query().Get("q"))
	})
	mux.HandleFunc("/escaped", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<p>%s</p>", strings.NewReplacer("<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;").Replace(r.URL.Query().Get("q")))
	})
	mux.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("id"), "'") {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "You have an error in your SQL syntax; check the manual")
			return
		}
		fmt.Fprint(w, "item")
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("file"), "etc/passwd") {
			fmt.Fprint(w, "root:x:0:0:root:/root:/bin/bash\n")
			return
		}
		fmt.Fprint(w, "page")
	})
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Query().Get("next"), http.StatusFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProber(server *httptest.Server) *Prober {
	return New(WithHTTPClient(server.Client()), WithRateLimit(0), WithLogger(log.Discard()))
}

// TestProberRun tests detection of each implemented class.
func TestProberRun(t *testing.T) {
	t.Parallel()

	server := vulnerableApp(t)

	tests := []struct {
		name      string
		endpoint  string
		wantTitle string
		wantParam string
		wantSev   model.Severity
	}{
		{"reflected xss", "/echo?q=test", "Reflected XSS Vulnerability", "q", model.SeverityHigh},
		{"sql injection", "/item?id=1", "SQL Injection Vulnerability", "id", model.SeverityCritical},
		{"path traversal", "/view?file=index.html", "Path Traversal Vulnerability", "file", model.SeverityCritical},
		{"open redirect", "/go?next=/home", "Open Redirect Vulnerability", "next", model.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			endpoint := server.URL + tt.endpoint
			result := newTestProber(server).Run(context.Background(), 1, server.URL, []string{endpoint})

			if result.Status != model.ResultCompleted || result.Tool != "active_scanner" {
				t.Fatalf("unexpected result %s / %s", result.Status, result.Tool)
			}
			var found *model.Match
			for i := range result.Matches {
				if result.Matches[i].Title == tt.wantTitle {
					found = &result.Matches[i]
				}
			}
			if found == nil {
				t.Fatalf("expected %q in %+v", tt.wantTitle, result.Matches)
			}
			if found.Parameter != tt.wantParam || found.Severity != tt.wantSev || found.MatchedAt != endpoint {
				t.Errorf("unexpected match %+v", found)
			}
			if found.Payload == "" || !strings.HasPrefix(found.Request, "GET "+server.URL) {
				t.Errorf("missing payload or request: %+v", found)
			}
		})
	}

	t.Run("xss reflection yields exactly one match per parameter", func(t *testing.T) {
		t.Parallel()

		endpoint := server.URL + "/echo?q=test"
		result := newTestProber(server).Run(context.Background(), 1, "", []string{endpoint})

		var xss []model.Match
		for _, m := range result.Matches {
			if m.CWE == "CWE-79" {
				xss = append(xss, m)
			}
		}
		if len(xss) != 1 {
			t.Fatalf("expected 1 XSS match, got %d", len(xss))
		}
		if xss[0].Payload != xssPayloads[0] {
			t.Errorf("expected first payload to be reported, got %q", xss[0].Payload)
		}
		if len(xss[0].Response) > snippetLen || !strings.Contains(xss[0].Response, "<script>") {
			t.Errorf("unexpected response snippet %q", xss[0].Response)
		}
	})

	t.Run("encoded output is not reported", func(t *testing.T) {
		t.Parallel()

		result := newTestProber(server).Run(context.Background(), 1, "", []string{server.URL + "/escaped?q=x"})
		if len(result.Matches) != 0 {
			t.Errorf("expected no matches, got %+v", result.Matches)
		}
	})

	t.Run("target without parameters yields nothing", func(t *testing.T) {
		t.Parallel()

		result := newTestProber(server).Run(context.Background(), 1, server.URL+"/echo", nil)
		d := result.Details.(*model.ProbeDetails)
		if d.EndpointsTested != 1 || len(result.Matches) != 0 {
			t.Errorf("unexpected details %+v", d)
		}
		if len(d.Modules) != 6 {
			t.Errorf("expected 6 modules, got %v", d.Modules)
		}
	})
}

// TestProberBounding tests that only the first MaxEndpoints endpoints are probed.
func TestProberBounding(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = true
		mu.Unlock()
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(server.Close)

	endpoints := make([]string, 0, 15)
	for i := range 15 {
		endpoints = append(endpoints, fmt.Sprintf("%s/e%d?q=1", server.URL, i))
	}

	result := newTestProber(server).Run(context.Background(), 1, server.URL, endpoints)

	if d := result.Details.(*model.ProbeDetails); d.EndpointsTested != MaxEndpoints {
		t.Errorf("expected %d endpoints tested, got %d", MaxEndpoints, d.EndpointsTested)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != MaxEndpoints {
		t.Errorf("expected %d distinct paths requested, got %d", MaxEndpoints, len(seen))
	}
	for i := MaxEndpoints; i < 15; i++ {
		if seen[fmt.Sprintf("/e%d", i)] {
			t.Errorf("endpoint %d should not be probed", i)
		}
	}
}

// TestProberTransportErrors tests that unreachable endpoints are skipped.
func TestProberTransportErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	p := New(WithRateLimit(0), WithLogger(log.Discard()))
	result := p.Run(context.Background(), 1, addr, []string{addr + "/?q=1&file=x&url=y"})
	if result.Status != model.ResultCompleted || len(result.Matches) != 0 {
		t.Errorf("unexpected result %s with %d matches", result.Status, len(result.Matches))
	}
}

// TestRunModuleRecoversPanic tests that a panicking module is isolated.
func TestRunModuleRecoversPanic(t *testing.T) {
	t.Parallel()

	p := New(WithLogger(log.Discard()))
	bad := module{name: "broken", scan: func(context.Context, *Prober, []string) []model.Match {
		panic("boom")
	}}

	found, err := p.runModule(context.Background(), bad, []string{"http://example.invalid/?a=1"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected recovered panic error, got %v", err)
	}
	if found != nil {
		t.Errorf("expected no matches, got %v", found)
	}
}

// TestCases tests parameter selection by name hints.
func TestCases(t *testing.T) {
	t.Parallel()

	endpoints := []string{"https://example.com/a?Path=1&q=2&returnTo=3", "://bad"}

	if got := cases(endpoints, nil); len(got) != 3 {
		t.Errorf("expected 3 cases, got %d", len(got))
	}
	if got := cases(endpoints, fileParamHints); len(got) != 1 || got[0].name != "Path" {
		t.Errorf("unexpected file cases %+v", got)
	}
	if got := cases(endpoints, redirectParamHints); len(got) != 1 || got[0].name != "returnTo" {
		t.Errorf("unexpected redirect cases %+v", got)
	}

	c := cases([]string{"https://example.com/a?x=1&y=2"}, nil)[0]
	if got := c.withPayload("<p>"); got != "https://example.com/a?x=%3Cp%3E&y=2" {
		t.Errorf("withPayload() = %q", got)
	}
}
