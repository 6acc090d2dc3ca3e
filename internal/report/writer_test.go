package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/byteforge/internal/model"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// createTestReport creates a report with sample data for testing.
func createTestReport() *Report {
	findings := []model.Finding{
		{ID: 3, Title: "Apache Version Disclosure", Severity: model.SeverityInfo, Description: "Server banner leaks version"},
		{ID: 1, Title: "SQL Injection Vulnerability", Severity: model.SeverityCritical, CWE: "CWE-89",
			OWASP: "A03:2021 - Injection", CVSS: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", CVSSScore: 9.8,
			Description: "Active scan detected: SQL error", Remediation: "Parameter: id"},
		{ID: 2, Title: "Reflected XSS Vulnerability", Severity: model.SeverityHigh, CWE: "CWE-79",
			Description: "Payload <script>alert(1)</script> reflected", Remediation: "Parameter: q"},
	}
	return Generate(42, findings, "Acme Shop", testNow)
}

// TestGenerate tests report derivation from findings.
func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("computes counts, score and id", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		if r.ReportID != "BF-42-20260314" {
			t.Errorf("ReportID = %q", r.ReportID)
		}
		if r.RiskScore != 25+15+1 {
			t.Errorf("RiskScore = %d, want 41", r.RiskScore)
		}
		if r.Counts.Critical != 1 || r.Counts.High != 1 || r.Counts.Info != 1 || r.TotalFindings() != 3 {
			t.Errorf("unexpected counts %+v", r.Counts)
		}
		if r.Findings[0].ID != 1 || r.Findings[1].ID != 2 || r.Findings[2].ID != 3 {
			t.Errorf("findings not ordered by severity: %+v", r.Findings)
		}
		if r.RiskLevel() != "medium" {
			t.Errorf("RiskLevel() = %q", r.RiskLevel())
		}
	})

	t.Run("empty findings", func(t *testing.T) {
		t.Parallel()

		r := Generate(7, nil, "", testNow)
		if r.TargetName != DefaultTargetName || r.RiskScore != 0 || r.HasFindings() {
			t.Errorf("unexpected report %+v", r)
		}
		if r.Findings == nil {
			t.Error("findings should be an empty slice, not nil")
		}
		if r.RiskLevel() != "none" {
			t.Errorf("RiskLevel() = %q", r.RiskLevel())
		}
	})

	t.Run("does not reorder the input", func(t *testing.T) {
		t.Parallel()

		in := []model.Finding{{ID: 1, Severity: model.SeverityLow}, {ID: 2, Severity: model.SeverityCritical}}
		Generate(1, in, "x", testNow)
		if in[0].ID != 1 {
			t.Error("input slice was modified")
		}
	})

	t.Run("details", func(t *testing.T) {
		t.Parallel()

		d := createTestReport().Details()
		if d.ReportID != "BF-42-20260314" || d.TotalFindings != 3 || d.RiskScore != 41 || d.TargetName != "Acme Shop" {
			t.Errorf("unexpected details %+v", d)
		}
	})
}

// TestRiskScore tests the weighted, capped score.
func TestRiskScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		counts model.SeverityCounts
		want   int
	}{
		{"none", model.SeverityCounts{}, 0},
		{"info only", model.SeverityCounts{Info: 4}, 4},
		{"mixed", model.SeverityCounts{High: 2, Medium: 1, Low: 2}, 30 + 8 + 6},
		{"capped", model.SeverityCounts{Critical: 5}, 100},
		{"exactly 100", model.SeverityCounts{Critical: 4}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RiskScore(tt.counts); got != tt.want {
				t.Errorf("RiskScore(%+v) = %d, want %d", tt.counts, got, tt.want)
			}
		})
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header, summary and findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{"BYTEFORGE SECURITY ASSESSMENT", "BF-42-20260314", "Acme Shop", "SEVERITY SUMMARY", "CRITICAL: 1", "[!!!] CRITICAL", "CWE: CWE-89"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "Remediation:") {
			t.Error("remediation should only appear in verbose mode")
		}
	})

	t.Run("verbose shows description and remediation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Remediation: Parameter: id") {
			t.Error("expected remediation in verbose output")
		}
	})

	t.Run("show empty lists every severity", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(Generate(1, nil, "x", testNow)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Count(buf.String(), "No findings"); got != 5 {
			t.Errorf("expected 5 empty sections, got %d", got)
		}
	})
}

// TestJSONWriter tests the JSON export.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		ReportID         string `json:"report_id"`
		Target           string `json:"target"`
		ExecutiveSummary struct {
			TotalFindings     int            `json:"total_findings"`
			RiskScore         int            `json:"risk_score"`
			SeverityBreakdown map[string]int `json:"severity_breakdown"`
		} `json:"executive_summary"`
		Findings []struct {
			Title    string `json:"title"`
			Severity string `json:"severity"`
		} `json:"findings"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if doc.ReportID != "BF-42-20260314" || doc.Target != "Acme Shop" {
		t.Errorf("unexpected header %+v", doc)
	}
	if doc.ExecutiveSummary.TotalFindings != 3 || doc.ExecutiveSummary.RiskScore != 41 {
		t.Errorf("unexpected summary %+v", doc.ExecutiveSummary)
	}
	if doc.ExecutiveSummary.SeverityBreakdown["critical"] != 1 {
		t.Errorf("unexpected breakdown %v", doc.ExecutiveSummary.SeverityBreakdown)
	}
	if len(doc.Findings) != 3 || doc.Findings[0].Severity != "critical" {
		t.Errorf("unexpected findings %+v", doc.Findings)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
}

// TestMarkdownWriter tests the Markdown renderer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("report with findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{"# Security Assessment Report", "BF-42-20260314", "## Executive Summary", "```mermaid", "[!CAUTION]", "### 🔴 Critical", "CWE-89"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("report without findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(Generate(1, nil, "x", testNow)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "No security findings detected.") || !strings.Contains(output, "[!TIP]") {
			t.Errorf("unexpected output:\n%s", output)
		}
		if strings.Contains(output, "mermaid") {
			t.Error("pie chart should be omitted without findings")
		}
	})
}

// TestHTMLWriter tests the HTML renderer.
func TestHTMLWriter(t *testing.T) {
	t.Parallel()

	html, err := createTestReport().HTML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"<!DOCTYPE html>", "BF-42-20260314", "Acme Shop", "#dc2626", "width: 41%", "CVSS: 9.8 (CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H)", "A03:2021 - Injection", "MEDIUM"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected HTML to contain %q", want)
		}
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("finding text must be escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Error("expected escaped payload in description")
	}
}

// TestPDFWriter tests the PDF renderer.
func TestPDFWriter(t *testing.T) {
	t.Parallel()

	for _, r := range []*Report{createTestReport(), Generate(1, nil, "Ünïcode Target", testNow)} {
		var buf bytes.Buffer
		n, err := NewPDFWriter(&buf).Write(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 || n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
			t.Error("output is not a PDF document")
		}
	}
}

// TestParseFormat tests format name parsing.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"html", FormatHTML, false},
		{" PDF ", FormatPDF, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"text", FormatText, false},
		{"docx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}

	if FormatMarkdown.Extension() != ".md" || FormatPDF.Extension() != ".pdf" || FormatText.Extension() != ".txt" {
		t.Error("unexpected extensions")
	}
}

// TestNewWriter tests that every format has a working writer.
func TestNewWriter(t *testing.T) {
	t.Parallel()

	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := NewWriter(f, &buf)
			if err != nil {
				t.Fatalf("NewWriter(%q): %v", f, err)
			}
			if _, err := w.Write(createTestReport()); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if buf.Len() == 0 {
				t.Error("expected output")
			}
		})
	}

	if _, err := NewWriter("docx", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

type failingWriter struct{}

func (failingWriter) Write(*Report) (int, error) { return 0, errors.New("disk full") }

// TestMultiWriter tests fan-out to multiple writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		n, err := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b)).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != a.Len()+b.Len() || a.Len() == 0 || b.Len() == 0 {
			t.Errorf("unexpected byte counts %d (%d + %d)", n, a.Len(), b.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewSimpleWriter(&buf)).Write(createTestReport())
		if err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("second writer should not run")
		}
	})
}

// TestTruncateString tests string truncation with ellipsis.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

// TestCVSSLabel tests formatting of CVSS scores and vectors.
func TestCVSSLabel(t *testing.T) {
	t.Parallel()

	const vector = "CVSS:3.1/AV:N/AC:L/PR:N/UI:R/S:C/C:L/I:L/A:N"
	tests := []struct {
		name string
		f    model.Finding
		want string
	}{
		{"score and vector", model.Finding{CVSSScore: 6.1, CVSS: vector}, "6.1 (" + vector + ")"},
		{"score only", model.Finding{CVSSScore: 5.3}, "5.3"},
		{"vector only", model.Finding{CVSS: vector}, vector},
		{"neither", model.Finding{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CVSSLabel(tt.f); got != tt.want {
				t.Errorf("CVSSLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}
