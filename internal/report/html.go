package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/Masterminds/sprig/v3"

	"github.com/nao1215/byteforge/internal/model"
)

// severityColors are the badge colors of each severity in rendered reports.
var severityColors = map[model.Severity]string{
	model.SeverityCritical: "#dc2626",
	model.SeverityHigh:     "#ea580c",
	model.SeverityMedium:   "#ca8a04",
	model.SeverityLow:      "#2563eb",
	model.SeverityInfo:     "#6b7280",
}

// SeverityColor returns the hex color used for sev.
func SeverityColor(sev model.Severity) string {
	if c, ok := severityColors[sev]; ok {
		return c
	}
	return severityColors[model.SeverityInfo]
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Security Assessment Report - {{ .TargetName }}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; background: #f8fafc; color: #0f172a; }
header { background: #0f172a; color: #fff; padding: 32px 48px; }
header h1 { margin: 0 0 8px; }
.meta { color: #cbd5e1; font-size: 14px; }
.stats { display: flex; gap: 16px; margin-top: 24px; }
.stat { background: #1e293b; border-radius: 8px; padding: 12px 20px; text-align: center; }
.stat .n { font-size: 28px; font-weight: 700; }
main { padding: 32px 48px; }
.meter { background: #e2e8f0; border-radius: 8px; height: 16px; overflow: hidden; }
.meter > div { height: 16px; background: linear-gradient(90deg, #16a34a, #ca8a04, #dc2626); }
.card { background: #fff; border-radius: 8px; padding: 20px; margin: 16px 0; border-left: 6px solid #6b7280; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
.badge { color: #fff; border-radius: 4px; padding: 2px 8px; font-size: 12px; font-weight: 700; }
.kv { color: #475569; font-size: 14px; margin: 4px 0; }
footer { padding: 16px 48px; color: #64748b; font-size: 12px; }
</style>
</head>
<body>
<header>
  <h1>Security Assessment Report</h1>
  <div class="meta">{{ .ReportID }} &middot; {{ .TargetName }} &middot; {{ .GeneratedAt | date "2006-01-02 15:04 MST" }}</div>
  <div class="stats">
    <div class="stat"><div class="n">{{ .TotalFindings }}</div>Findings</div>
    {{- range $sev := .Severities }}
    <div class="stat"><div class="n" style="color: {{ color $sev | safeCSS }}">{{ $.Counts.Get $sev }}</div>{{ $sev.String | title }}</div>
    {{- end }}
  </div>
</header>
<main>
  <section>
    <h2>Executive Summary</h2>
    <p>Risk score <strong>{{ .RiskScore }}/100</strong> ({{ .RiskLevel | upper }}). {{ .TotalFindings }} finding(s) were identified on {{ .TargetName }}.</p>
    <div class="meter"><div style="width: {{ .RiskScore }}%"></div></div>
  </section>
  <section>
    <h2>Findings</h2>
    {{- if not .HasFindings }}
    <p>No security findings detected.</p>
    {{- end }}
    {{- range .Findings }}
    <div class="card" style="border-left-color: {{ color .Severity | safeCSS }}">
      <span class="badge" style="background: {{ color .Severity | safeCSS }}">{{ .Severity.String | upper }}</span>
      <h3>{{ .Title }}</h3>
      {{- if .CWE }}<div class="kv">CWE: {{ .CWE }}</div>{{ end }}
      {{- if .OWASP }}<div class="kv">OWASP: {{ .OWASP }}</div>{{ end }}
      {{- with cvss . }}<div class="kv">CVSS: {{ . }}</div>{{ end }}
      <p>{{ .Description | default "No description provided." }}</p>
      {{- if .Remediation }}<div class="kv">Remediation: {{ .Remediation }}</div>{{ end }}
    </div>
    {{- end }}
  </section>
</main>
<footer>Report generated by ByteForge. Only test systems you are authorized to assess.</footer>
</body>
</html>
`

// HTMLWriter renders a standalone HTML document.
type HTMLWriter struct {
	baseWriter
	tmpl *template.Template
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) (*HTMLWriter, error) {
	funcs := sprig.FuncMap()
	funcs["color"] = SeverityColor
	funcs["cvss"] = CVSSLabel
	funcs["safeCSS"] = func(s string) template.CSS { return template.CSS(s) } //nolint:gosec // fixed palette

	tmpl, err := template.New("report").Funcs(funcs).Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &HTMLWriter{baseWriter: newBaseWriter(output), tmpl: tmpl}, nil
}

// htmlView exposes the report and the severity order to the template.
type htmlView struct {
	*Report
	Severities []model.Severity
}

// Write renders the report as HTML.
func (w *HTMLWriter) Write(report *Report) (int, error) {
	cw := &countingWriter{w: w.output}
	if err := w.tmpl.Execute(cw, htmlView{Report: report, Severities: model.AllSeverities}); err != nil {
		return cw.n, fmt.Errorf("render html report: %w", err)
	}
	return cw.n, nil
}

// HTML renders the report to a string.
func (r *Report) HTML() (string, error) {
	var sb strings.Builder
	w, err := NewHTMLWriter(&sb)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(r); err != nil {
		return "", err
	}
	return sb.String(), nil
}
