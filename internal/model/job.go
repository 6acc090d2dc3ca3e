package model

import (
	"fmt"
	"strings"
	"time"
)

// JobKind identifies which pipeline a job runs.
type JobKind string

const (
	// JobKindRecon enumerates subdomains of the target.
	JobKindRecon JobKind = "recon"

	// JobKindCrawl discovers and categorises URLs on the target.
	JobKindCrawl JobKind = "crawl"

	// JobKindVulnerabilityScan matches vulnerability templates against the target.
	JobKindVulnerabilityScan JobKind = "vulnerability-scan"

	// JobKindActiveProbe sends attack payloads to target parameters.
	JobKindActiveProbe JobKind = "active-probe"

	// JobKindComposite runs recon, crawl and vulnerability-scan in sequence.
	JobKindComposite JobKind = "composite"

	// JobKindReport renders a report from the target's stored findings.
	JobKindReport JobKind = "report"
)

// AllJobKinds lists every supported job kind.
var AllJobKinds = []JobKind{
	JobKindRecon,
	JobKindCrawl,
	JobKindVulnerabilityScan,
	JobKindActiveProbe,
	JobKindComposite,
	JobKindReport,
}

// jobKindAliases maps legacy kind names onto the canonical set.
var jobKindAliases = map[string]JobKind{
	"nuclei":    JobKindVulnerabilityScan,
	"vuln":      JobKindVulnerabilityScan,
	"active":    JobKindActiveProbe,
	"probe":     JobKindActiveProbe,
	"full_scan": JobKindComposite,
	"full-scan": JobKindComposite,
}

// ParseJobKind converts a name into a JobKind, accepting legacy aliases.
func ParseJobKind(s string) (JobKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllJobKinds {
		if string(k) == name {
			return k, nil
		}
	}
	if k, ok := jobKindAliases[name]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown job kind %q", s)
}

// String returns the kind name.
func (k JobKind) String() string {
	return string(k)
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	// JobStatusQueued is the initial state set at submission.
	JobStatusQueued JobStatus = "queued"

	// JobStatusRunning is set when an executor claims the job.
	JobStatusRunning JobStatus = "running"

	// JobStatusCompleted is terminal: the pipeline returned a result.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed is terminal: the pipeline raised an error.
	JobStatusFailed JobStatus = "failed"
)

// jobStatuses lists every state in lifecycle order.
var jobStatuses = []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed}

// jobTransitions holds the allowed next states for each state.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:  {JobStatusRunning},
	JobStatusRunning: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Sources returns the states from which a job may move to s, in lifecycle
// order. Conditional status updates restrict themselves to these states.
func (s JobStatus) Sources() []JobStatus {
	var from []JobStatus
	for _, st := range jobStatuses {
		if st.CanTransition(s) {
			from = append(from, st)
		}
	}
	return from
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// String returns the status name.
func (s JobStatus) String() string {
	return string(s)
}

// Job is one unit of scan work against a Target.
type Job struct {
	ID        int64
	TargetID  int64
	Kind      JobKind
	Status    JobStatus
	Log       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
