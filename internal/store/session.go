package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nao1215/byteforge/internal/model"
)

// Session is the unit of work of one job execution. Findings and evidence
// are staged in memory and written together with the job's terminal status
// by Commit, in one transaction.
//
// A Session is owned by a single execution; it is safe for concurrent
// staging but is not meant to be shared between jobs.
type Session struct {
	store *Store
	jobID int64

	mu     sync.Mutex
	staged []stagedFinding
	done   bool
}

type stagedFinding struct {
	finding  model.Finding
	evidence []model.Evidence
}

// NewSession opens a unit of work for jobID.
func (s *Store) NewSession(jobID int64) *Session {
	return &Session{store: s, jobID: jobID}
}

// StageFinding queues a finding and its evidence for the commit.
// The finding's JobID is set to the session's job.
func (ss *Session) StageFinding(f model.Finding, evidence ...model.Evidence) {
	f.JobID = ss.jobID
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.staged = append(ss.staged, stagedFinding{finding: f, evidence: evidence})
}

// Staged returns copies of the findings staged so far.
func (ss *Session) Staged() []model.Finding {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	out := make([]model.Finding, len(ss.staged))
	for i, sf := range ss.staged {
		out[i] = sf.finding
		out[i].Evidence = append([]model.Evidence(nil), sf.evidence...)
	}
	return out
}

// Len returns the number of staged findings.
func (ss *Session) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.staged)
}

// Commit writes the job's terminal status and log and every staged finding
// and evidence row in one transaction. status must be terminal and the job
// must be running; otherwise nothing is written.
func (ss *Session) Commit(ctx context.Context, status model.JobStatus, log string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("store: cannot commit non-terminal status %q", status)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.done {
		return fmt.Errorf("store: session for job %d already committed", ss.jobID)
	}

	s := ss.store
	sealedLog, err := s.codec.sealJobLog(log)
	if err != nil {
		return err
	}

	// Seal everything before opening the transaction.
	type sealedRow struct {
		f        sealedFinding
		evidence []string
	}
	rows := make([]sealedRow, len(ss.staged))
	for i := range ss.staged {
		sf := &ss.staged[i]
		if rows[i].f, err = s.codec.sealFinding(&sf.finding); err != nil {
			return err
		}
		for j := range sf.evidence {
			data, err := s.codec.sealEvidence(&sf.evidence[j])
			if err != nil {
				return err
			}
			rows[i].evidence = append(rows[i].evidence, data)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	for i, sf := range ss.staged {
		f := sf.finding
		res, err := tx.ExecContext(ctx, `
		INSERT INTO findings (target_id, job_id, title, severity, cwe, cvss, cvss_score, owasp, description,
			remediation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.TargetID, ss.jobID, rows[i].f.title, f.Severity.String(), f.CWE, f.CVSS, f.CVSSScore, f.OWASP,
			rows[i].f.description, rows[i].f.remediation, now)
		if err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
		findingID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read finding id: %w", err)
		}

		for j, e := range sf.evidence {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO evidence (finding_id, kind, data, created_at) VALUES (?, ?, ?, ?)`,
				findingID, string(e.Kind), rows[i].evidence[j], now); err != nil {
				return fmt.Errorf("failed to insert evidence: %w", err)
			}
		}
	}

	// The terminal write is conditional so it can only follow a claim.
	ok, err := transitionJob(ctx, tx, ss.jobID, status, &sealedLog, now)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", ss.jobID, err)
	}
	if !ok {
		return fmt.Errorf("job %d: %w", ss.jobID, ErrJobNotRunning)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job %d: %w", ss.jobID, err)
	}
	ss.done = true
	return nil
}
