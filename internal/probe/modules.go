package probe

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/byteforge/internal/model"
)

var xssPayloads = []string{
	`<script>alert(1)</script>`,
	`"><img src=x onerror=alert(1)>`,
	`'-alert(1)-'`,
	`<svg onload=alert(1)>`,
}

var sqliPayloads = []string{
	`' OR '1'='1`,
	`1' AND '1'='1`,
	`1; DROP TABLE users--`,
	`' UNION SELECT NULL--`,
}

// sqlErrorPatterns are database error messages leaked by injectable code.
var sqlErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SQL syntax`),
	regexp.MustCompile(`(?i)mysql_fetch`),
	regexp.MustCompile(`(?i)ORA-\d{5}`),
	regexp.MustCompile(`(?i)PostgreSQL.*ERROR`),
	regexp.MustCompile(`(?i)SQLite3::SQLException`),
	regexp.MustCompile(`(?i)ODBC SQL Server Driver`),
	regexp.MustCompile(`(?i)unclosed quotation mark`),
}

var traversalPayloads = []string{
	"../../../etc/passwd",
	"....//....//....//etc/passwd",
	`..\..\..\windows\win.ini`,
}

// traversalSentinels match the contents of the files targeted above.
var traversalSentinels = []*regexp.Regexp{
	regexp.MustCompile(`root:.*:0:0:`),
	regexp.MustCompile(`\[extensions\]`),
	regexp.MustCompile(`\[fonts\]`),
}

var redirectPayloads = []string{
	"https://evil.com",
	"//evil.com",
	`/\evil.com`,
}

var (
	fileParamHints     = []string{"file", "path", "doc", "page", "include"}
	redirectParamHints = []string{"url", "redirect", "next", "return", "goto", "dest"}
)

// probeCase is one endpoint parameter under test.
type probeCase struct {
	endpoint string
	base     *url.URL
	params   url.Values
	name     string
}

// withPayload returns the endpoint URL with the parameter replaced by payload.
func (c probeCase) withPayload(payload string) string {
	q := maps.Clone(c.params)
	q[c.name] = []string{payload}
	u := *c.base
	u.RawQuery = q.Encode()
	return u.String()
}

// cases yields every query parameter of every endpoint whose lower-cased name
// contains one of hints. No hints selects every parameter.
func cases(endpoints []string, hints []string) []probeCase {
	out := make([]probeCase, 0)
	for _, ep := range endpoints {
		u, err := url.Parse(ep)
		if err != nil {
			continue
		}
		params := u.Query()
		for _, name := range slices.Sorted(maps.Keys(params)) {
			if len(hints) > 0 && !containsAny(strings.ToLower(name), hints) {
				continue
			}
			out = append(out, probeCase{endpoint: ep, base: u, params: params, name: name})
		}
	}
	return out
}

func scanXSS(ctx context.Context, p *Prober, endpoints []string) []model.Match {
	matches := make([]model.Match, 0)
	for _, c := range cases(endpoints, nil) {
		for _, payload := range xssPayloads[:2] {
			testURL := c.withPayload(payload)
			resp, err := p.get(ctx, testURL, true)
			if err != nil {
				p.logger.Debug("probe request failed", "url", testURL, "error", err)
				continue
			}
			if strings.Contains(resp.body, payload) {
				matches = append(matches, model.Match{
					Title:     "Reflected XSS Vulnerability",
					Severity:  model.SeverityHigh,
					CWE:       "CWE-79",
					OWASP:     model.OWASPForCWE("CWE-79"),
					Parameter: c.name,
					Payload:   payload,
					MatchedAt: c.endpoint,
					Evidence:  "Payload reflected in response at " + c.endpoint,
					Request:   "GET " + testURL,
					Response:  model.Truncate(resp.body, snippetLen),
				})
				break
			}
		}
	}
	return matches
}

func scanSQLi(ctx context.Context, p *Prober, endpoints []string) []model.Match {
	matches := make([]model.Match, 0)
	for _, c := range cases(endpoints, nil) {
	payloads:
		for _, payload := range sqliPayloads[:2] {
			testURL := c.withPayload(payload)
			resp, err := p.get(ctx, testURL, true)
			if err != nil {
				p.logger.Debug("probe request failed", "url", testURL, "error", err)
				continue
			}
			for _, re := range sqlErrorPatterns {
				if re.MatchString(resp.body) {
					matches = append(matches, model.Match{
						Title:     "SQL Injection Vulnerability",
						Severity:  model.SeverityCritical,
						CWE:       "CWE-89",
						OWASP:     model.OWASPForCWE("CWE-89"),
						Parameter: c.name,
						Payload:   payload,
						MatchedAt: c.endpoint,
						Evidence:  "SQL error triggered: " + re.String(),
						Request:   "GET " + testURL,
						Response:  model.Truncate(resp.body, snippetLen),
					})
					break payloads
				}
			}
		}
	}
	return matches
}

func scanPathTraversal(ctx context.Context, p *Prober, endpoints []string) []model.Match {
	matches := make([]model.Match, 0)
	for _, c := range cases(endpoints, fileParamHints) {
	payloads:
		for _, payload := range traversalPayloads {
			testURL := c.withPayload(payload)
			resp, err := p.get(ctx, testURL, true)
			if err != nil {
				p.logger.Debug("probe request failed", "url", testURL, "error", err)
				continue
			}
			for _, re := range traversalSentinels {
				if re.MatchString(resp.body) {
					matches = append(matches, model.Match{
						Title:     "Path Traversal Vulnerability",
						Severity:  model.SeverityCritical,
						CWE:       "CWE-22",
						OWASP:     model.OWASPForCWE("CWE-22"),
						Parameter: c.name,
						Payload:   payload,
						MatchedAt: c.endpoint,
						Evidence:  "Sensitive file content detected",
						Request:   "GET " + testURL,
						Response:  model.Truncate(resp.body, snippetLen),
					})
					break payloads
				}
			}
		}
	}
	return matches
}

// scanSSRF needs an out-of-band callback server and reports nothing.
func scanSSRF(context.Context, *Prober, []string) []model.Match {
	return []model.Match{}
}

func scanOpenRedirect(ctx context.Context, p *Prober, endpoints []string) []model.Match {
	matches := make([]model.Match, 0)
	for _, c := range cases(endpoints, redirectParamHints) {
		for _, payload := range redirectPayloads {
			testURL := c.withPayload(payload)
			resp, err := p.get(ctx, testURL, false)
			if err != nil {
				p.logger.Debug("probe request failed", "url", testURL, "error", err)
				continue
			}
			location := resp.header.Get("Location")
			if strings.Contains(location, "evil.com") {
				matches = append(matches, model.Match{
					Title:     "Open Redirect Vulnerability",
					Severity:  model.SeverityMedium,
					CWE:       "CWE-601",
					OWASP:     model.OWASPForCWE("CWE-601"),
					Parameter: c.name,
					Payload:   payload,
					MatchedAt: c.endpoint,
					Evidence:  "Redirects to: " + location,
					Request:   "GET " + testURL,
					Response:  fmt.Sprintf("HTTP %d\nLocation: %s", resp.status, location),
				})
				break
			}
		}
	}
	return matches
}

// scanHeaderInjection is not implemented and reports nothing.
func scanHeaderInjection(context.Context, *Prober, []string) []model.Match {
	return []model.Match{}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
