package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/byteforge/internal/model"
)

// CreateJob inserts a queued job for a target.
func (s *Store) CreateJob(ctx context.Context, targetID int64, kind model.JobKind) (*model.Job, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (target_id, kind, status, log, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?)`,
		targetID, string(kind), string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read job id: %w", err)
	}

	return &model.Job{
		ID:        id,
		TargetID:  targetID,
		Kind:      kind,
		Status:    model.JobStatusQueued,
		CreatedAt: parseTimestamp(now),
		UpdatedAt: parseTimestamp(now),
	}, nil
}

const jobColumns = `id, target_id, kind, status, log, created_at, updated_at`

// GetJob loads a job and decrypts its log.
func (s *Store) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := s.scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs newest first. A targetID of zero lists all jobs.
func (s *Store) ListJobs(ctx context.Context, targetID int64) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if targetID != 0 {
		query += ` WHERE target_id = ?`
		args = append(args, targetID)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimJob moves a queued job to running. It reports false, without error,
// when the job is not queued; exactly one of several concurrent claims of
// the same job succeeds.
func (s *Store) ClaimJob(ctx context.Context, id int64) (bool, error) {
	ok, err := transitionJob(ctx, s.db, id, model.JobStatusRunning, nil, s.timestamp())
	if err != nil {
		return false, fmt.Errorf("failed to claim job %d: %w", id, err)
	}
	return ok, nil
}

// FailJob marks a running job failed with log and no findings. The ledger
// uses it when a session commit cannot be written. It reports false when
// the job is not running.
func (s *Store) FailJob(ctx context.Context, id int64, log string) (bool, error) {
	sealed, err := s.codec.sealJobLog(log)
	if err != nil {
		return false, err
	}
	ok, err := transitionJob(ctx, s.db, id, model.JobStatusFailed, &sealed, s.timestamp())
	if err != nil {
		return false, fmt.Errorf("failed to mark job %d failed: %w", id, err)
	}
	return ok, nil
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// transitionJob moves job id to next, and sets its log when sealedLog is
// not nil. The update only matches a job whose current status may move to
// next, so it reports false when the transition is not allowed.
func transitionJob(ctx context.Context, db execer, id int64, next model.JobStatus, sealedLog *string, now string) (bool, error) {
	from := next.Sources()
	if len(from) == 0 {
		return false, fmt.Errorf("no job transition leads to %q", next)
	}

	query := `UPDATE jobs SET status = ?, updated_at = ?`
	args := []any{string(next), now}
	if sealedLog != nil {
		query += `, log = ?`
		args = append(args, *sealedLog)
	}
	query += ` WHERE id = ? AND status IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ") + `)`
	args = append(args, id)
	for _, st := range from {
		args = append(args, string(st))
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) scanJob(row rowScanner) (*model.Job, error) {
	var (
		job              model.Job
		kind, status     string
		sealedLog        string
		created, updated string
	)
	if err := row.Scan(&job.ID, &job.TargetID, &kind, &status, &sealedLog, &created, &updated); err != nil {
		return nil, err
	}

	job.Kind = model.JobKind(kind)
	job.Status = model.JobStatus(status)
	job.CreatedAt = parseTimestamp(created)
	job.UpdatedAt = parseTimestamp(updated)

	var err error
	if job.Log, err = s.codec.openJobLog(sealedLog); err != nil {
		return nil, fmt.Errorf("job %d: %w", job.ID, err)
	}
	return &job, nil
}
