package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ResultStatus is the outcome of a single adapter run.
type ResultStatus string

const (
	// ResultCompleted means the adapter produced a result, real or simulated.
	ResultCompleted ResultStatus = "completed"

	// ResultTimeout means the external tool exceeded its deadline.
	ResultTimeout ResultStatus = "timeout"

	// ResultError means the external tool or adapter failed.
	ResultError ResultStatus = "error"

	// ResultToolNotFound means the external tool is not installed and the
	// adapter has no fallback.
	ResultToolNotFound ResultStatus = "tool_not_found"
)

// IsFailure reports whether the status represents an adapter failure.
func (s ResultStatus) IsFailure() bool {
	return s == ResultTimeout || s == ResultError || s == ResultToolNotFound
}

// simulatedSuffix marks results produced without the real external tool.
const simulatedSuffix = " (simulated)"

// SimulatedTool returns the tool label for a simulated run of tool.
func SimulatedTool(tool string) string {
	return tool + simulatedSuffix
}

// IsSimulated reports whether a tool label denotes simulated data.
func IsSimulated(tool string) bool {
	return tool == "simulated" || strings.HasSuffix(tool, simulatedSuffix)
}

// Match is one finding candidate reported by an adapter, before persistence.
type Match struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	CWE         string   `json:"cwe,omitempty"`
	OWASP       string   `json:"owasp,omitempty"`
	TemplateID  string   `json:"template_id,omitempty"`
	MatchedAt   string   `json:"matched_at,omitempty"`
	Description string   `json:"description,omitempty"`
	References  []string `json:"references,omitempty"`

	// CVSS is the CVSS vector string; CVSSScore its base score when known.
	CVSS      string  `json:"cvss,omitempty"`
	CVSSScore float64 `json:"cvss_score,omitempty"`

	// Parameter and Payload are set by the active probe.
	Parameter string `json:"parameter,omitempty"`
	Payload   string `json:"payload,omitempty"`

	// Request is a textual request line; CurlCommand takes precedence when set.
	Request     string `json:"request,omitempty"`
	CurlCommand string `json:"curl_command,omitempty"`

	// Response is an excerpt of the response body.
	Response string `json:"response,omitempty"`

	// Evidence is a short human-readable reason the match was raised.
	Evidence string `json:"evidence,omitempty"`
}

// Details carries the kind-specific part of a ScanResult.
// The set of implementations is closed to this package.
type Details interface {
	isDetails()
}

// ReconDetails is the payload of a recon run.
type ReconDetails struct {
	Domain     string              `json:"domain"`
	Apex       string              `json:"apex,omitempty"`
	Subdomains []string            `json:"subdomains"`
	FoundCount int                 `json:"found_count"`
	Resolved   map[string][]string `json:"resolved,omitempty"`
}

// CrawlDetails is the payload of a crawl run.
type CrawlDetails struct {
	URL          string   `json:"url"`
	Depth        int      `json:"depth"`
	TotalURLs    int      `json:"total_urls"`
	Endpoints    []string `json:"endpoints"`
	JSFiles      []string `json:"js_files"`
	APIEndpoints []string `json:"api_endpoints"`
	Forms        []string `json:"forms"`
	Parameters   []string `json:"parameters"`
}

// VulnScanDetails is the payload of a vulnerability-template scan.
type VulnScanDetails struct {
	Target        string `json:"target"`
	Templates     string `json:"templates"`
	FindingsCount int    `json:"findings_count"`
}

// ProbeDetails is the payload of an active probe run.
type ProbeDetails struct {
	Target          string   `json:"target"`
	EndpointsTested int      `json:"endpoints_tested"`
	Modules         []string `json:"modules"`
	FindingsCount   int      `json:"findings_count"`
}

// ReportDetails is the payload of a report run.
type ReportDetails struct {
	ReportID      string         `json:"report_id"`
	TargetName    string         `json:"target_name"`
	RiskScore     int            `json:"risk_score"`
	Counts        SeverityCounts `json:"severity_counts"`
	TotalFindings int            `json:"total_findings"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// PhaseSummary records the outcome of one phase of a composite job.
type PhaseSummary struct {
	Kind          JobKind      `json:"kind"`
	Tool          string       `json:"tool"`
	Status        ResultStatus `json:"status"`
	FindingsCount int          `json:"findings_count"`
	Error         string       `json:"error,omitempty"`
}

// CompositeDetails aggregates the phases of a composite job.
type CompositeDetails struct {
	Phases        []PhaseSummary          `json:"phases"`
	Results       map[JobKind]*ScanResult `json:"-"`
	Summary       string                  `json:"summary"`
	FindingsCount int                     `json:"findings_count"`
}

func (ReconDetails) isDetails()     {}
func (CrawlDetails) isDetails()     {}
func (VulnScanDetails) isDetails()  {}
func (ProbeDetails) isDetails()     {}
func (ReportDetails) isDetails()    {}
func (CompositeDetails) isDetails() {}

// ScanResult is the uniform output of every adapter and of the orchestrator.
type ScanResult struct {
	JobID   int64
	Kind    JobKind
	Status  ResultStatus
	Tool    string
	Note    string
	Error   string
	Matches []Match
	Details Details
}

// Simulated reports whether the result came from a fallback generator.
func (r *ScanResult) Simulated() bool {
	return IsSimulated(r.Tool)
}

// MarshalJSON flattens the result into a single object: the common fields
// plus the kind-specific fields of Details. This is the job log format.
func (r *ScanResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)

	if r.Details != nil {
		raw, err := json.Marshal(r.Details)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}

	if composite, ok := r.Details.(*CompositeDetails); ok {
		for kind, sub := range composite.Results {
			out[string(kind)] = sub
		}
	}

	out["job_id"] = r.JobID
	out["kind"] = r.Kind
	out["status"] = r.Status
	out["tool"] = r.Tool
	if r.Note != "" {
		out["note"] = r.Note
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if len(r.Matches) > 0 {
		out["matches"] = r.Matches
	}

	return json.Marshal(out)
}
