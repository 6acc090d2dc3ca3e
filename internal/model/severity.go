package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity represents the risk level of a finding.
// Values are ordered so that a larger value is more severe.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct security impact,
	// such as a discovered subdomain or a version banner.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues with limited impact.
	SeverityLow

	// SeverityMedium indicates moderate issues that warrant attention.
	SeverityMedium

	// SeverityHigh indicates serious issues such as reflected XSS.
	SeverityHigh

	// SeverityCritical indicates issues that likely lead to compromise,
	// such as SQL injection or arbitrary file read.
	SeverityCritical
)

// AllSeverities lists every severity from most to least severe.
var AllSeverities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// String returns the lower-case name used in storage and tool output.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name into a Severity.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "informational":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

// SeverityOrInfo parses s and falls back to SeverityInfo for unknown values.
// Scanner output is not trusted to use a known vocabulary.
func SeverityOrInfo(s string) Severity {
	sev, err := ParseSeverity(s)
	if err != nil {
		return SeverityInfo
	}
	return sev
}

// MarshalJSON encodes the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}
