package store

import (
	"context"
	"fmt"

	"github.com/nao1215/byteforge/internal/model"
)

// SaveSchedule inserts or replaces a schedule by ID.
func (s *Store) SaveSchedule(ctx context.Context, sc *model.Schedule) error {
	created := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO schedules (id, target_id, kind, frequency, cron, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		frequency = excluded.frequency,
		cron = excluded.cron
	`, sc.ID, sc.TargetID, string(sc.Kind), string(sc.Frequency), sc.Cron, created)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sc.ID, err)
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = parseTimestamp(created)
	}
	return nil
}

// DeleteSchedule removes a schedule. It returns ErrNotFound when absent.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSchedules returns every schedule ordered by ID.
func (s *Store) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, kind, frequency, cron, created_at FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var (
			sc              model.Schedule
			kind, frequency string
			created         string
		)
		if err := rows.Scan(&sc.ID, &sc.TargetID, &kind, &frequency, &sc.Cron, &created); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		sc.Kind = model.JobKind(kind)
		sc.Frequency = model.Frequency(frequency)
		sc.CreatedAt = parseTimestamp(created)
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}
