package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/byteforge/internal/model"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()

	c, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

// TestCollectorJobs tests job counters and the in-flight gauge.
func TestCollectorJobs(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)

	c.JobStarted()
	c.JobStarted()
	if got := testutil.ToFloat64(c.jobsInFlight); got != 2 {
		t.Errorf("jobs_in_flight = %v, want 2", got)
	}

	c.JobFinished(model.JobKindRecon, model.JobStatusCompleted, 3*time.Second)
	c.JobFinished(model.JobKindRecon, model.JobStatusFailed, time.Second)

	if got := testutil.ToFloat64(c.jobsInFlight); got != 0 {
		t.Errorf("jobs_in_flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.jobsTotal.WithLabelValues("recon", "completed")); got != 1 {
		t.Errorf("jobs_total{completed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.jobsTotal.WithLabelValues("recon", "failed")); got != 1 {
		t.Errorf("jobs_total{failed} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.jobDuration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

// TestCollectorFindings tests severity and adapter counters.
func TestCollectorFindings(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)

	c.FindingsPersisted([]model.Finding{
		{Severity: model.SeverityHigh},
		{Severity: model.SeverityHigh},
		{Severity: model.SeverityInfo},
	})
	c.PhaseFinished("nuclei (simulated)", model.ResultCompleted)

	if got := testutil.ToFloat64(c.findingsTotal.WithLabelValues("high")); got != 2 {
		t.Errorf("findings_total{high} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.adapterResults.WithLabelValues("nuclei (simulated)", "completed")); got != 1 {
		t.Errorf("adapter_results_total = %v, want 1", got)
	}
}

// TestCollectorHandler tests the scrape endpoint.
func TestCollectorHandler(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.JobStarted()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "byteforge_jobs_in_flight 1") {
		t.Errorf("metrics output missing gauge:\n%s", body)
	}
}

// TestCollectorsAreIndependent tests that registries are private.
func TestCollectorsAreIndependent(t *testing.T) {
	t.Parallel()

	a := newTestCollector(t)
	b := newTestCollector(t)
	a.JobStarted()

	if got := testutil.ToFloat64(b.jobsInFlight); got != 0 {
		t.Errorf("second collector saw %v in-flight jobs", got)
	}
}
