package store

import (
	"context"
	"fmt"

	"github.com/nao1215/byteforge/internal/model"
)

// ListFindings returns the decrypted findings of a target ordered by ID.
// Evidence is not loaded.
func (s *Store) ListFindings(ctx context.Context, targetID int64) ([]model.Finding, error) {
	return s.queryFindings(ctx, `WHERE target_id = ?`, targetID)
}

// ListJobFindings returns the decrypted findings produced by one job.
func (s *Store) ListJobFindings(ctx context.Context, jobID int64) ([]model.Finding, error) {
	return s.queryFindings(ctx, `WHERE job_id = ?`, jobID)
}

func (s *Store) queryFindings(ctx context.Context, where string, arg any) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, job_id, title, severity, cwe, cvss, cvss_score, owasp, description,
		remediation, created_at FROM findings `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	findings := make([]model.Finding, 0)
	for rows.Next() {
		var (
			f        model.Finding
			sealed   sealedFinding
			severity string
			created  string
		)
		if err := rows.Scan(&f.ID, &f.TargetID, &f.JobID, &sealed.title, &severity, &f.CWE, &f.CVSS,
			&f.CVSSScore, &f.OWASP, &sealed.description, &sealed.remediation, &created); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		if err := s.codec.openFinding(&f, sealed); err != nil {
			return nil, fmt.Errorf("finding %d: %w", f.ID, err)
		}
		f.Severity = model.SeverityOrInfo(severity)
		f.CreatedAt = parseTimestamp(created)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// ListEvidence returns the decrypted evidence of a finding ordered by ID.
func (s *Store) ListEvidence(ctx context.Context, findingID int64) ([]model.Evidence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, finding_id, kind, data, created_at FROM evidence WHERE finding_id = ? ORDER BY id`, findingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	evidence := make([]model.Evidence, 0)
	for rows.Next() {
		var (
			e       model.Evidence
			kind    string
			sealed  string
			created string
		)
		if err := rows.Scan(&e.ID, &e.FindingID, &kind, &sealed, &created); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		if err := s.codec.openEvidence(&e, sealed); err != nil {
			return nil, fmt.Errorf("evidence %d: %w", e.ID, err)
		}
		e.Kind = model.EvidenceKind(kind)
		e.CreatedAt = parseTimestamp(created)
		evidence = append(evidence, e)
	}
	return evidence, rows.Err()
}
