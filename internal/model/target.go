package model

import (
	"strings"
	"time"
)

// DefaultRateLimitRPS is the request rate applied to a target when none is set.
const DefaultRateLimitRPS = 5

// DefaultTargetURL is scanned when a job's target cannot be resolved.
const DefaultTargetURL = "https://example.com"

// Target is an assessed asset. Name and Scope are stored encrypted.
type Target struct {
	ID int64

	// Name is a human-readable label.
	Name string

	// Scope lists the domains or URLs that may be assessed, separated by
	// commas or newlines. The first entry is what scans are pointed at.
	Scope string

	// RateLimitRPS bounds active probing against this target.
	RateLimitRPS int

	// AuthProfile optionally names stored credentials for authenticated scans.
	AuthProfile string

	CreatedAt time.Time
}

// ScopeEntries returns the non-empty, trimmed entries of Scope in order.
func (t *Target) ScopeEntries() []string {
	fields := strings.FieldsFunc(t.Scope, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			entries = append(entries, f)
		}
	}
	return entries
}

// Descriptor returns the primary scan target: the first scope entry,
// or DefaultTargetURL when the scope is empty.
func (t *Target) Descriptor() string {
	if t == nil {
		return DefaultTargetURL
	}
	if entries := t.ScopeEntries(); len(entries) > 0 {
		return entries[0]
	}
	return DefaultTargetURL
}

// EffectiveRateLimit returns RateLimitRPS or the default when unset.
func (t *Target) EffectiveRateLimit() int {
	if t == nil || t.RateLimitRPS <= 0 {
		return DefaultRateLimitRPS
	}
	return t.RateLimitRPS
}
