package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// ApplianceRepository persists the fleet registry.
type ApplianceRepository struct {
	db *sql.DB
}

func (r *ApplianceRepository) Upsert(ctx context.Context, a *model.Appliance) error {
	var lastSeen any
	if !a.LastSeenAt.IsZero() {
		lastSeen = formatTime(a.LastSeenAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appliances (id, current_version, last_seen_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			current_version = excluded.current_version,
			last_seen_at = excluded.last_seen_at`,
		a.ID, a.CurrentVersion, lastSeen, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert appliance: %w", err)
	}
	return nil
}

func (r *ApplianceRepository) Get(ctx context.Context, id string) (*model.Appliance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, current_version, last_seen_at, created_at FROM appliances WHERE id = ?`, id)
	return scanAppliance(row)
}

func (r *ApplianceRepository) List(ctx context.Context) ([]*model.Appliance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, current_version, last_seen_at, created_at FROM appliances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list appliances: %w", err)
	}
	defer rows.Close()

	var out []*model.Appliance
	for rows.Next() {
		a, err := scanAppliance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ApplianceRepository) VersionDistribution(ctx context.Context) (model.VersionDistribution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT current_version, COUNT(*) FROM appliances GROUP BY current_version`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate versions: %w", err)
	}
	defer rows.Close()

	dist := model.VersionDistribution{}
	for rows.Next() {
		var version string
		var n int
		if err := rows.Scan(&version, &n); err != nil {
			return nil, fmt.Errorf("failed to scan version count: %w", err)
		}
		dist[version] = n
	}
	return dist, rows.Err()
}

func scanAppliance(s scanner) (*model.Appliance, error) {
	var a model.Appliance
	var lastSeen sql.NullString
	var createdAt string
	err := s.Scan(&a.ID, &a.CurrentVersion, &lastSeen, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: appliance", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan appliance: %w", err)
	}
	if lastSeen.Valid && lastSeen.String != "" {
		if a.LastSeenAt, err = parseTime(lastSeen.String); err != nil {
			return nil, err
		}
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}
