package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/byteforge/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether severities with no findings are shown.
	showEmpty bool

	// verbose adds descriptions and remediation to each finding.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

// writeHeader writes the report header with identification.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *Report) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                  BYTEFORGE SECURITY ASSESSMENT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Report ID:  %s\n", report.ReportID)
	fmt.Fprintf(sb, "Target:     %s\n", report.TargetName)
	fmt.Fprintf(sb, "Generated:  %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Risk Score: %d/100 (%s)\n", report.RiskScore, report.RiskLevel())
	sb.WriteString("\n")
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *Report) {
	rule(sb, "-")
	sb.WriteString("SEVERITY SUMMARY\n")
	rule(sb, "-")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", report.Counts.Critical)
	fmt.Fprintf(sb, "  HIGH:     %d\n", report.Counts.High)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", report.Counts.Medium)
	fmt.Fprintf(sb, "  LOW:      %d\n", report.Counts.Low)
	fmt.Fprintf(sb, "  INFO:     %d\n", report.Counts.Info)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n", report.TotalFindings())
	sb.WriteString("\n")
}

// writeFindings writes all findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *Report) {
	if !report.HasFindings() && !w.showEmpty {
		return
	}

	rule(sb, "-")
	sb.WriteString("FINDINGS\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, severity := range model.AllSeverities {
		findings := report.FindingsBySeverity(severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), strings.ToUpper(severity.String()))

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, f := range findings {
		fmt.Fprintf(sb, "  * %s\n", f.Title)
		if f.CWE != "" {
			fmt.Fprintf(sb, "    CWE: %s\n", f.CWE)
		}
		if f.OWASP != "" {
			fmt.Fprintf(sb, "    OWASP: %s\n", f.OWASP)
		}
		if w.verbose {
			if f.Description != "" {
				fmt.Fprintf(sb, "    Description: %s\n", f.Description)
			}
			if f.Remediation != "" {
				fmt.Fprintf(sb, "    Remediation: %s\n", f.Remediation)
			}
		}
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by ByteForge\n")
	sb.WriteString("Only test systems you are authorized to assess.\n")
	rule(sb, "=")
}
