package model

import (
	"time"
	"unicode/utf8"
)

// Finding is a persisted security issue discovered by a job.
// Title, Description and Remediation are stored encrypted.
type Finding struct {
	ID          int64     `json:"id"`
	TargetID    int64     `json:"target_id"`
	JobID       int64     `json:"job_id"`
	Title       string    `json:"title"`
	Severity    Severity  `json:"severity"`
	CWE         string    `json:"cwe,omitempty"`
	CVSS        string    `json:"cvss,omitempty"`
	CVSSScore   float64   `json:"cvss_score,omitempty"`
	OWASP       string    `json:"owasp,omitempty"`
	Description string    `json:"description,omitempty"`
	Remediation string    `json:"remediation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Evidence is populated only when explicitly loaded.
	Evidence []Evidence `json:"evidence,omitempty"`
}

// EvidenceKind classifies an Evidence payload.
type EvidenceKind string

const (
	// EvidenceRequest holds the request (or curl command) that triggered a finding.
	EvidenceRequest EvidenceKind = "request"

	// EvidenceResponse holds a truncated response body.
	EvidenceResponse EvidenceKind = "response"

	// EvidenceScreenshot holds a reference to a captured screenshot.
	EvidenceScreenshot EvidenceKind = "screenshot"

	// EvidenceNote holds free-form analyst or tool notes.
	EvidenceNote EvidenceKind = "note"
)

// MaxEvidenceResponse bounds the size of stored response evidence in bytes.
const MaxEvidenceResponse = 2000

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Evidence is a supporting artefact for a Finding. Data is stored encrypted.
type Evidence struct {
	ID        int64        `json:"id"`
	FindingID int64        `json:"finding_id"`
	Kind      EvidenceKind `json:"kind"`
	Data      string       `json:"data"`
	CreatedAt time.Time    `json:"created_at"`
}

// SeverityCounts tallies findings per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Add increments the counter for sev.
func (c *SeverityCounts) Add(sev Severity) {
	switch sev {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	default:
		c.Info++
	}
}

// Get returns the counter for sev.
func (c SeverityCounts) Get(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	default:
		return c.Info
	}
}

// Total returns the sum of all counters.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}
