package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/byteforge/internal/model"
)

type fakeRecon struct {
	result *model.ScanResult
	target string
}

func (f *fakeRecon) Run(_ context.Context, jobID int64, target string) *model.ScanResult {
	f.target = target
	r := *f.result
	r.JobID = jobID
	return &r
}

type fakeCrawl struct {
	result *model.ScanResult
	depth  int
	scope  []string
}

func (f *fakeCrawl) Run(_ context.Context, jobID int64, _ string, depth int, scope []string) *model.ScanResult {
	f.depth = depth
	f.scope = scope
	r := *f.result
	r.JobID = jobID
	return &r
}

type fakeVulnScan struct {
	result *model.ScanResult
	tags   string
}

func (f *fakeVulnScan) Run(_ context.Context, jobID int64, _, tags string) *model.ScanResult {
	f.tags = tags
	r := *f.result
	r.JobID = jobID
	return &r
}

type fakeProbe struct {
	result    *model.ScanResult
	endpoints []string
}

func (f *fakeProbe) Run(_ context.Context, jobID int64, _ string, endpoints []string) *model.ScanResult {
	f.endpoints = endpoints
	r := *f.result
	r.JobID = jobID
	return &r
}

type fakeFindings struct {
	findings []model.Finding
	err      error
}

func (f *fakeFindings) ListFindings(_ context.Context, _ int64) ([]model.Finding, error) {
	return f.findings, f.err
}

func reconResult() *model.ScanResult {
	return &model.ScanResult{
		Kind:   model.JobKindRecon,
		Status: model.ResultCompleted,
		Tool:   "subfinder",
		Matches: []model.Match{
			{Title: "Subdomain discovered: api.acme.test", Severity: model.SeverityInfo},
			{Title: "Subdomain discovered: www.acme.test", Severity: model.SeverityInfo},
		},
		Details: &model.ReconDetails{Domain: "acme.test", FoundCount: 2, Subdomains: []string{"api.acme.test", "www.acme.test"}},
	}
}

func crawlResult() *model.ScanResult {
	return &model.ScanResult{
		Kind:    model.JobKindCrawl,
		Status:  model.ResultCompleted,
		Tool:    "katana",
		Details: &model.CrawlDetails{URL: "https://acme.test", Depth: 3, TotalURLs: 4},
	}
}

func vulnResult() *model.ScanResult {
	return &model.ScanResult{
		Kind:   model.JobKindVulnerabilityScan,
		Status: model.ResultCompleted,
		Tool:   "nuclei",
		Matches: []model.Match{
			{Title: "Exposed Git Repository", Severity: model.SeverityMedium, CWE: "CWE-200", MatchedAt: "https://acme.test/.git/config"},
		},
		Details: &model.VulnScanDetails{Target: "https://acme.test", FindingsCount: 1},
	}
}

// TestReconStep tests that the recon step stages discovered subdomains.
func TestReconStep(t *testing.T) {
	t.Parallel()

	runner := &fakeRecon{result: reconResult()}
	exec := newTestExecution()

	step := NewReconStep(runner)
	if err := step.Do(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.target != "acme.test" {
		t.Errorf("recon target = %q", runner.target)
	}
	if got := exec.Results[model.JobKindRecon]; got == nil || got.JobID != 7 {
		t.Fatalf("recon result not recorded: %+v", got)
	}
	if len(exec.Phases) != 1 || exec.Phases[0].FindingsCount != 2 {
		t.Errorf("unexpected phases %+v", exec.Phases)
	}
	collected := exec.Session.(*Collector).Findings()
	if len(collected) != 2 || collected[0].TargetID != 1 || collected[0].JobID != 7 {
		t.Errorf("unexpected staged findings %+v", collected)
	}
}

// TestCrawlStep tests depth defaults and scope propagation.
func TestCrawlStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{name: "explicit depth", depth: 5, want: 5},
		{name: "zero uses default", depth: 0, want: DefaultCrawlDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeCrawl{result: crawlResult()}
			exec := newTestExecution()
			exec.Target.Scope = "acme.test, shop.acme.test"

			if err := NewCrawlStep(runner, tt.depth).Do(context.Background(), exec); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if runner.depth != tt.want {
				t.Errorf("depth = %d, want %d", runner.depth, tt.want)
			}
			if len(runner.scope) != 2 || runner.scope[1] != "shop.acme.test" {
				t.Errorf("scope = %v", runner.scope)
			}
		})
	}
}

// TestVulnScanStep tests that tags reach the scanner.
func TestVulnScanStep(t *testing.T) {
	t.Parallel()

	runner := &fakeVulnScan{result: vulnResult()}
	exec := newTestExecution()

	if err := NewVulnScanStep(runner, "cve,exposure").Do(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.tags != "cve,exposure" {
		t.Errorf("tags = %q", runner.tags)
	}
	if exec.Phases[0].FindingsCount != 1 {
		t.Errorf("unexpected phases %+v", exec.Phases)
	}
}

// TestProbeStep tests that the prober is paced at the target's rate limit.
func TestProbeStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rps     int
		wantRPS int
	}{
		{name: "target rate limit", rps: 12, wantRPS: 12},
		{name: "unset uses default", rps: 0, wantRPS: model.DefaultRateLimitRPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotRPS int
			runner := &fakeProbe{result: &model.ScanResult{Kind: model.JobKindActiveProbe, Status: model.ResultCompleted, Tool: "active_scanner"}}
			step := NewProbeStep(func(rps int, _ map[string]string) ProbeRunner {
				gotRPS = rps
				return runner
			}, nil, nil)

			exec := newTestExecution()
			exec.Target.RateLimitRPS = tt.rps
			if err := step.Do(context.Background(), exec); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotRPS != tt.wantRPS {
				t.Errorf("rps = %d, want %d", gotRPS, tt.wantRPS)
			}
			if runner.endpoints != nil {
				t.Errorf("expected no extra endpoints, got %v", runner.endpoints)
			}
		})
	}
}

// TestReportStep tests report generation from stored findings.
func TestReportStep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("summarizes findings", func(t *testing.T) {
		t.Parallel()

		lister := &fakeFindings{findings: []model.Finding{
			{ID: 1, Title: "SQL Injection", Severity: model.SeverityCritical},
			{ID: 2, Title: "Missing Header", Severity: model.SeverityLow},
		}}
		exec := newTestExecution()
		exec.Job.Kind = model.JobKindReport

		step := NewReportStep(lister, func() time.Time { return now }, testLogger())
		if err := step.Do(context.Background(), exec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result := exec.Results[model.JobKindReport]
		d, ok := result.Details.(*model.ReportDetails)
		if !ok {
			t.Fatalf("unexpected details %T", result.Details)
		}
		if d.ReportID != "BF-7-20260314" || d.TargetName != "Acme" {
			t.Errorf("unexpected details %+v", d)
		}
		if d.RiskScore != 28 || d.TotalFindings != 2 {
			t.Errorf("RiskScore = %d, TotalFindings = %d", d.RiskScore, d.TotalFindings)
		}
		if n := len(exec.Session.(*Collector).Findings()); n != 0 {
			t.Errorf("report step staged %d findings", n)
		}
	})

	t.Run("propagates load errors", func(t *testing.T) {
		t.Parallel()

		loadErr := errors.New("database is locked")
		step := NewReportStep(&fakeFindings{err: loadErr}, nil, testLogger())

		err := step.Do(context.Background(), newTestExecution())
		if !errors.Is(err, loadErr) || !strings.Contains(err.Error(), "target 1") {
			t.Errorf("unexpected error %v", err)
		}
	})
}
