package vulnscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/toolexec"
)

const (
	toolName = "nuclei"

	installHint = "Nuclei not installed. Install via: go install -v github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest"

	// DefaultTemplates are the nuclei template tags used when none are given.
	DefaultTemplates = "cves,vulnerabilities,exposures"

	// DefaultSeverities is the nuclei severity filter.
	DefaultSeverities = "info,low,medium,high,critical"

	// DefaultRateLimit is nuclei's requests-per-second cap.
	DefaultRateLimit = 50

	minSimulated = 2
	maxSimulated = 5
)

// Executor runs an external tool. *toolexec.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*toolexec.Result, error)
}

// Scanner runs nuclei templates against a target.
type Scanner struct {
	exec       Executor
	timeout    time.Duration
	severities string
	rateLimit  int
	rnd        *rand.Rand
	tempDir    string
	logger     *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTimeout sets the nuclei deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithSeverities sets the nuclei severity filter.
func WithSeverities(severities string) Option {
	return func(s *Scanner) {
		if severities != "" {
			s.severities = severities
		}
	}
}

// WithRateLimit sets the nuclei requests-per-second cap.
func WithRateLimit(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.rateLimit = n
		}
	}
}

// WithRand sets the random source used to pick simulated findings.
func WithRand(r *rand.Rand) Option {
	return func(s *Scanner) {
		s.rnd = r
	}
}

// WithTempDir sets the directory for nuclei output files.
func WithTempDir(dir string) Option {
	return func(s *Scanner) {
		s.tempDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a vulnerability-template Scanner.
func NewScanner(exec Executor, opts ...Option) *Scanner {
	s := &Scanner{
		exec:       exec,
		timeout:    600 * time.Second,
		severities: DefaultSeverities,
		rateLimit:  DefaultRateLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // sampling demo data
	}
	return s
}

// Run scans target with the nuclei templates selected by tags
// (DefaultTemplates when empty). When nuclei is not installed a labelled
// simulated result is returned.
func (s *Scanner) Run(ctx context.Context, jobID int64, target, tags string) *model.ScanResult {
	if tags == "" {
		tags = DefaultTemplates
	}

	matches, err := s.nuclei(ctx, target, tags)
	switch {
	case errors.Is(err, toolexec.ErrToolNotFound):
		s.logger.Info("nuclei not installed, using simulated scan", "target", target)
		return s.simulated(jobID, target, tags)
	case errors.Is(err, toolexec.ErrToolTimeout):
		return s.failed(jobID, model.ResultTimeout, target, tags, err)
	case err != nil:
		return s.failed(jobID, model.ResultError, target, tags, err)
	}

	s.logger.Debug("nuclei finished", "target", target, "matches", len(matches))
	return &model.ScanResult{
		JobID:   jobID,
		Kind:    model.JobKindVulnerabilityScan,
		Status:  model.ResultCompleted,
		Tool:    toolName,
		Matches: matches,
		Details: &model.VulnScanDetails{
			Target:        target,
			Templates:     tags,
			FindingsCount: len(matches),
		},
	}
}

func (s *Scanner) nuclei(ctx context.Context, target, tags string) ([]model.Match, error) {
	f, err := os.CreateTemp(s.tempDir, "byteforge-nuclei-*.jsonl")
	if err != nil {
		return nil, fmt.Errorf("failed to create nuclei output file: %w", err)
	}
	out := f.Name()
	_ = f.Close()
	defer os.Remove(out) //nolint:errcheck // best-effort cleanup

	res, err := s.exec.Run(ctx, s.timeout, toolName,
		"-u", target,
		"-tags", tags,
		"-silent",
		"-jsonl",
		"-o", out,
		"-severity", s.severities,
		"-rate-limit", strconv.Itoa(s.rateLimit),
		"-timeout", "10",
	)
	if err != nil {
		return nil, err
	}
	if res != nil && len(res.Stderr) > 0 {
		s.logger.Debug("nuclei stderr", "stderr", model.Truncate(string(res.Stderr), 500))
	}

	data, err := os.ReadFile(out) //nolint:gosec // path created above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Match{}, nil
		}
		return nil, fmt.Errorf("failed to read nuclei output: %w", err)
	}
	return ParseOutput(data, target), nil
}

func (s *Scanner) simulated(jobID int64, target, tags string) *model.ScanResult {
	n := minSimulated + s.rnd.IntN(maxSimulated-minSimulated+1)

	matches := make([]model.Match, 0, n)
	for _, i := range s.rnd.Perm(len(catalog))[:n] {
		entry := catalog[i]
		matches = append(matches, model.Match{
			Title:       entry.title,
			Severity:    entry.severity,
			CWE:         entry.cwe,
			OWASP:       model.OWASPForCWE(entry.cwe),
			TemplateID:  entry.templateID,
			MatchedAt:   target,
			Description: fmt.Sprintf("Detected %s on %s", entry.title, target),
		})
	}

	return &model.ScanResult{
		JobID:   jobID,
		Kind:    model.JobKindVulnerabilityScan,
		Status:  model.ResultCompleted,
		Tool:    model.SimulatedTool(toolName),
		Note:    installHint,
		Matches: matches,
		Details: &model.VulnScanDetails{
			Target:        target,
			Templates:     tags,
			FindingsCount: len(matches),
		},
	}
}

func (s *Scanner) failed(jobID int64, status model.ResultStatus, target, tags string, err error) *model.ScanResult {
	return &model.ScanResult{
		JobID:   jobID,
		Kind:    model.JobKindVulnerabilityScan,
		Status:  status,
		Tool:    toolName,
		Error:   err.Error(),
		Details: &model.VulnScanDetails{Target: target, Templates: tags},
	}
}

// catalogEntry is one canned finding reported by a simulated scan.
type catalogEntry struct {
	title      string
	severity   model.Severity
	cwe        string
	templateID string
}

var catalog = []catalogEntry{
	{"Exposed Git Repository", model.SeverityHigh, "CWE-200", "git-config"},
	{"Apache Version Disclosure", model.SeverityMedium, "CWE-937", "apache-detect"},
	{"Cross-Site Scripting (XSS)", model.SeverityHigh, "CWE-79", "xss-reflected"},
	{"Open Redirect Vulnerability", model.SeverityLow, "CWE-601", "open-redirect"},
	{"Information Disclosure in Headers", model.SeverityInfo, "CWE-200", "security-headers"},
	{"SQL Injection", model.SeverityCritical, "CWE-89", "sqli-detection"},
	{"Sensitive Data Exposure", model.SeverityHigh, "CWE-312", "sensitive-data"},
}
