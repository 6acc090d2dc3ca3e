package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/toolexec"
)

const (
	// toolName is the subdomain enumeration binary.
	toolName = "subfinder"

	// installHint is attached to simulated results.
	installHint = "Install subfinder: go install -v github.com/projectdiscovery/subfinder/v2/cmd/subfinder@latest"

	// resolveConcurrency bounds parallel DNS lookups.
	resolveConcurrency = 8
)

// simulatedPrefixes are the labels returned when subfinder is unavailable.
var simulatedPrefixes = []string{"api", "dev", "auth", "mail", "admin"}

// Executor runs an external tool. *toolexec.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*toolexec.Result, error)
}

// Scanner enumerates subdomains of a domain.
type Scanner struct {
	exec     Executor
	timeout  time.Duration
	resolver *Resolver
	logger   *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTimeout sets the subfinder deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithResolver enables A-record resolution of discovered subdomains.
func WithResolver(r *Resolver) Option {
	return func(s *Scanner) {
		s.resolver = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a recon Scanner.
func NewScanner(exec Executor, opts ...Option) *Scanner {
	s := &Scanner{
		exec:    exec,
		timeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run enumerates subdomains of target, which may be a bare domain or a URL.
//
// A missing or failing subfinder yields a labelled simulated result; only a
// timeout is reported as a failed run.
func (s *Scanner) Run(ctx context.Context, jobID int64, target string) *model.ScanResult {
	domain := NormalizeDomain(target)

	res, err := s.exec.Run(ctx, s.timeout, toolName, "-d", domain, "-silent", "-json")
	switch {
	case errors.Is(err, toolexec.ErrToolTimeout):
		return &model.ScanResult{
			JobID:   jobID,
			Kind:    model.JobKindRecon,
			Status:  model.ResultTimeout,
			Tool:    toolName,
			Error:   err.Error(),
			Details: &model.ReconDetails{Domain: domain, Subdomains: []string{}},
		}
	case err != nil:
		s.logger.Info("subfinder unavailable, using simulated recon", "domain", domain, "error", err)
		return s.simulated(ctx, jobID, domain)
	}

	subdomains := ParseSubfinderOutput(res.Stdout)
	s.logger.Debug("recon finished", "domain", domain, "found", len(subdomains))

	return s.result(ctx, jobID, domain, toolName, subdomains, "")
}

func (s *Scanner) simulated(ctx context.Context, jobID int64, domain string) *model.ScanResult {
	subdomains := make([]string, len(simulatedPrefixes))
	for i, p := range simulatedPrefixes {
		subdomains[i] = p + "." + domain
	}
	return s.result(ctx, jobID, domain, model.SimulatedTool(toolName), subdomains, installHint)
}

func (s *Scanner) result(ctx context.Context, jobID int64, domain, tool string, subdomains []string, note string) *model.ScanResult {
	details := &model.ReconDetails{
		Domain:     domain,
		Apex:       Apex(domain),
		Subdomains: subdomains,
		FoundCount: len(subdomains),
	}
	if s.resolver != nil && !model.IsSimulated(tool) {
		details.Resolved = s.resolve(ctx, subdomains)
	}

	matches := make([]model.Match, 0, len(subdomains))
	for _, sub := range subdomains {
		matches = append(matches, model.Match{
			Title:       "Subdomain discovered: " + sub,
			Severity:    model.SeverityInfo,
			MatchedAt:   sub,
			Description: fmt.Sprintf("Subdomain %s of %s was discovered by %s.", sub, domain, tool),
			Evidence:    sub,
		})
	}

	return &model.ScanResult{
		JobID:   jobID,
		Kind:    model.JobKindRecon,
		Status:  model.ResultCompleted,
		Tool:    tool,
		Note:    note,
		Matches: matches,
		Details: details,
	}
}

// resolve looks up every subdomain concurrently. Lookup failures are logged
// and leave the host out of the map.
func (s *Scanner) resolve(ctx context.Context, hosts []string) map[string][]string {
	var mu sync.Mutex
	resolved := make(map[string][]string, len(hosts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for _, host := range hosts {
		g.Go(func() error {
			addrs, err := s.resolver.LookupA(gctx, host)
			if err != nil {
				s.logger.Debug("dns lookup failed", "host", host, "error", err)
				return nil
			}
			mu.Lock()
			resolved[host] = addrs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return resolved
}

// ParseSubfinderOutput extracts hosts from subfinder JSON lines.
// Malformed lines and lines without a host are skipped. Order is preserved
// and duplicates removed.
func ParseSubfinderOutput(out []byte) []string {
	seen := make(map[string]bool)
	hosts := make([]string, 0)

	for _, line := range toolexec.Lines(out) {
		var rec struct {
			Host string `json:"host"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		host := strings.ToLower(strings.TrimSpace(rec.Host))
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}

// NormalizeDomain reduces a URL or host[:port] to a lower-case host name.
func NormalizeDomain(target string) string {
	t := strings.TrimSpace(target)
	if strings.Contains(t, "://") {
		if u, err := url.Parse(t); err == nil && u.Host != "" {
			t = u.Host
		}
	}
	if i := strings.IndexAny(t, "/?#"); i >= 0 {
		t = t[:i]
	}
	if host, _, err := net.SplitHostPort(t); err == nil {
		t = host
	}
	return strings.TrimSuffix(strings.ToLower(t), ".")
}

// Apex returns the registrable domain (eTLD+1) of domain, or domain itself
// when it has none (an IP address or a bare public suffix).
func Apex(domain string) string {
	apex, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return apex
}
