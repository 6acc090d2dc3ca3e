package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/byteforge/internal/model"
)

// DefaultTargetName is used when a report is generated without a target name.
const DefaultTargetName = "Target"

// riskWeights is the contribution of one finding of each severity to the
// risk score.
var riskWeights = map[model.Severity]int{
	model.SeverityCritical: 25,
	model.SeverityHigh:     15,
	model.SeverityMedium:   8,
	model.SeverityLow:      3,
	model.SeverityInfo:     1,
}

// maxRiskScore caps the risk score.
const maxRiskScore = 100

// Report is a security assessment of one target, derived from its findings.
type Report struct {
	ReportID    string
	JobID       int64
	TargetName  string
	GeneratedAt time.Time
	Counts      model.SeverityCounts
	RiskScore   int

	// Findings are ordered by severity, most severe first, then by ID.
	Findings []model.Finding
}

// Generate builds a Report from findings. It performs no I/O; now fixes the
// generation time and the date part of the report ID.
func Generate(jobID int64, findings []model.Finding, targetName string, now time.Time) *Report {
	if targetName == "" {
		targetName = DefaultTargetName
	}

	sorted := slices.Clone(findings)
	if sorted == nil {
		sorted = []model.Finding{}
	}
	slices.SortStableFunc(sorted, func(a, b model.Finding) int {
		if a.Severity != b.Severity {
			return int(b.Severity) - int(a.Severity)
		}
		return int(a.ID - b.ID)
	})

	var counts model.SeverityCounts
	for _, f := range sorted {
		counts.Add(f.Severity)
	}

	return &Report{
		ReportID:    ID(jobID, now),
		JobID:       jobID,
		TargetName:  targetName,
		GeneratedAt: now,
		Counts:      counts,
		RiskScore:   RiskScore(counts),
		Findings:    sorted,
	}
}

// ID returns the report identifier "BF-<job>-<yyyymmdd>".
func ID(jobID int64, now time.Time) string {
	return fmt.Sprintf("BF-%d-%s", jobID, now.Format("20060102"))
}

// RiskScore returns min(100, 25*critical + 15*high + 8*medium + 3*low + info).
func RiskScore(c model.SeverityCounts) int {
	score := 0
	for _, sev := range model.AllSeverities {
		score += riskWeights[sev] * c.Get(sev)
	}
	return min(score, maxRiskScore)
}

// TotalFindings returns the number of findings in the report.
func (r *Report) TotalFindings() int {
	return len(r.Findings)
}

// HasFindings reports whether the report contains any finding.
func (r *Report) HasFindings() bool {
	return len(r.Findings) > 0
}

// FindingsBySeverity returns the findings of one severity.
func (r *Report) FindingsBySeverity(sev model.Severity) []model.Finding {
	out := make([]model.Finding, 0)
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// RiskLevel names the band the risk score falls into, or "none".
func (r *Report) RiskLevel() string {
	if r.RiskScore <= 0 {
		return "none"
	}
	return severityForScore(r.RiskScore).String()
}

// Details returns the job-log payload for a report job.
func (r *Report) Details() *model.ReportDetails {
	return &model.ReportDetails{
		ReportID:      r.ReportID,
		TargetName:    r.TargetName,
		RiskScore:     r.RiskScore,
		Counts:        r.Counts,
		TotalFindings: r.TotalFindings(),
		GeneratedAt:   r.GeneratedAt,
	}
}

// Export is the machine-readable report document.
type Export struct {
	ReportID         string           `json:"report_id"`
	GeneratedAt      time.Time        `json:"generated_at"`
	Target           string           `json:"target"`
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	Findings         []model.Finding  `json:"findings"`
}

// ExecutiveSummary is the headline section of an Export.
type ExecutiveSummary struct {
	TotalFindings     int                  `json:"total_findings"`
	RiskScore         int                  `json:"risk_score"`
	RiskLevel         string               `json:"risk_level"`
	SeverityBreakdown model.SeverityCounts `json:"severity_breakdown"`
}

// Export returns the JSON export structure of the report.
func (r *Report) Export() *Export {
	return &Export{
		ReportID:    r.ReportID,
		GeneratedAt: r.GeneratedAt,
		Target:      r.TargetName,
		ExecutiveSummary: ExecutiveSummary{
			TotalFindings:     r.TotalFindings(),
			RiskScore:         r.RiskScore,
			RiskLevel:         r.RiskLevel(),
			SeverityBreakdown: r.Counts,
		},
		Findings: r.Findings,
	}
}

// CVSSLabel formats the CVSS score and vector of f, such as
// "9.8 (CVSS:3.1/AV:N/...)". It returns "" when neither is known.
func CVSSLabel(f model.Finding) string {
	switch {
	case f.CVSSScore > 0 && f.CVSS != "":
		return fmt.Sprintf("%.1f (%s)", f.CVSSScore, f.CVSS)
	case f.CVSSScore > 0:
		return fmt.Sprintf("%.1f", f.CVSSScore)
	default:
		return f.CVSS
	}
}
