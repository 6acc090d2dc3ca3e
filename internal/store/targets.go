package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/byteforge/internal/model"
)

// CreateTarget inserts a target and sets its ID and CreatedAt.
func (s *Store) CreateTarget(ctx context.Context, t *model.Target) error {
	sealed, err := s.codec.sealTarget(t)
	if err != nil {
		return err
	}
	if t.RateLimitRPS <= 0 {
		t.RateLimitRPS = model.DefaultRateLimitRPS
	}

	created := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (name, scope, rate_limit_rps, auth_profile, created_at) VALUES (?, ?, ?, ?, ?)`,
		sealed.name, sealed.scope, t.RateLimitRPS, t.AuthProfile, created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}

	if t.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read target id: %w", err)
	}
	t.CreatedAt = parseTimestamp(created)
	return nil
}

const targetColumns = `id, name, scope, rate_limit_rps, auth_profile, created_at`

// GetTarget loads and decrypts a target.
func (s *Store) GetTarget(ctx context.Context, id int64) (*model.Target, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
	t, err := s.scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTargets returns every target ordered by ID.
func (s *Store) ListTargets(ctx context.Context) ([]model.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		t, err := s.scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanTarget(row rowScanner) (*model.Target, error) {
	var (
		t       model.Target
		sealed  sealedTarget
		created string
	)
	if err := row.Scan(&t.ID, &sealed.name, &sealed.scope, &t.RateLimitRPS, &t.AuthProfile, &created); err != nil {
		return nil, err
	}
	if err := s.codec.openTarget(&t, sealed); err != nil {
		return nil, fmt.Errorf("target %d: %w", t.ID, err)
	}
	t.CreatedAt = parseTimestamp(created)
	return &t, nil
}
