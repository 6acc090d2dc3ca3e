package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/byteforge/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	cw := &countingWriter{w: w.output}
	md := markdown.NewMarkdown(cw)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	err := md.Build()
	return cw.n, err
}

// writeHeader writes the report header with identification.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	md.H1("Security Assessment Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Report ID", "`" + report.ReportID + "`"},
			{"Target", report.TargetName},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Risk Score", strconv.Itoa(report.RiskScore) + "/100 (" + report.RiskLevel() + ")"},
		},
	})
	md.PlainText("")
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *Report) {
	md.H2("Executive Summary")
	md.PlainText("")

	c := report.Counts
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(c.Critical)},
			{"🟠 High", strconv.Itoa(c.High)},
			{"🟡 Medium", strconv.Itoa(c.Medium)},
			{"🔵 Low", strconv.Itoa(c.Low)},
			{"⚪ Info", strconv.Itoa(c.Info)},
			{"**Total**", "**" + strconv.Itoa(report.TotalFindings()) + "**"},
		},
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	for _, sev := range model.AllSeverities {
		if n := report.Counts.Get(sev); n > 0 {
			chart.LabelAndIntValue(titleCase(sev.String()), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *Report) {
	c := report.Counts
	switch {
	case c.Critical > 0:
		md.Cautionf("Critical security issues detected! %d critical finding(s) require immediate attention.", c.Critical)
	case c.High > 0:
		md.Warningf("High severity issues detected. %d high severity finding(s) should be addressed.", c.High)
	case c.Medium > 0:
		md.Importantf("Medium severity issues found. %d finding(s) should be reviewed.", c.Medium)
	case report.HasFindings():
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No significant security issues detected.")
	}
	md.PlainText("")
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *Report) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No security findings detected.")
		md.PlainText("")
		return
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "### 🔴 Critical",
		model.SeverityHigh:     "### 🟠 High",
		model.SeverityMedium:   "### 🟡 Medium",
		model.SeverityLow:      "### 🔵 Low",
		model.SeverityInfo:     "### ⚪ Info",
	}

	for _, sev := range model.AllSeverities {
		findings := report.FindingsBySeverity(sev)
		if len(findings) == 0 {
			continue
		}
		md.PlainText(headers[sev])
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.Title,
			orDash(f.CWE),
			orDash(f.OWASP),
			truncateString(orDash(f.Remediation), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "CWE", "OWASP", "Remediation"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by ByteForge. Only test systems you are authorized to assess.*")
}

// titleCase capitalizes a severity name for display.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
