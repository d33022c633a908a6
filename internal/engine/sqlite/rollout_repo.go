package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// RolloutRepository persists rollouts. The plan is stored as a JSON
// document; everything queried on lives in its own column.
type RolloutRepository struct {
	db *sql.DB
}

const rolloutColumns = "id, release_id, plan, status, current_stage, fleet_size, next_advance_at, started_at, paused_at, completed_at, created_at, updated_at"

func (r *RolloutRepository) Create(ctx context.Context, ro *model.Rollout) error {
	plan, err := json.Marshal(ro.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rollouts (`+rolloutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ro.ID, ro.ReleaseID, string(plan), string(ro.Status), ro.CurrentStage,
		ro.FleetSize, formatNullableTime(ro.NextAdvanceAt),
		formatNullableTime(ro.StartedAt), formatNullableTime(ro.PausedAt),
		formatNullableTime(ro.CompletedAt),
		formatTime(ro.CreatedAt), formatTime(ro.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: rollout %s", core.ErrAlreadyExists, ro.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert rollout: %w", err)
	}
	return nil
}

func (r *RolloutRepository) Get(ctx context.Context, id string) (*model.Rollout, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+rolloutColumns+` FROM rollouts WHERE id = ?`, id)
	return scanRollout(row)
}

func (r *RolloutRepository) List(ctx context.Context) ([]*model.Rollout, error) {
	return r.query(ctx, `SELECT `+rolloutColumns+` FROM rollouts ORDER BY created_at DESC`)
}

func (r *RolloutRepository) ListActive(ctx context.Context) ([]*model.Rollout, error) {
	return r.query(ctx, `
		SELECT `+rolloutColumns+` FROM rollouts
		WHERE status IN (?, ?) ORDER BY created_at`,
		string(model.RolloutScheduled), string(model.RolloutInProgress))
}

// CountByStatus tallies rollouts per lifecycle status.
func (r *RolloutRepository) CountByStatus(ctx context.Context) (map[model.RolloutStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM rollouts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count rollouts: %w", err)
	}
	defer rows.Close()

	out := map[model.RolloutStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rollout count: %w", err)
		}
		out[model.RolloutStatus(status)] = n
	}
	return out, rows.Err()
}

func (r *RolloutRepository) Update(ctx context.Context, ro *model.Rollout) error {
	plan, err := json.Marshal(ro.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE rollouts
		SET plan = ?, status = ?, current_stage = ?, fleet_size = ?, next_advance_at = ?,
		    started_at = ?, paused_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(plan), string(ro.Status), ro.CurrentStage, ro.FleetSize,
		formatNullableTime(ro.NextAdvanceAt), formatNullableTime(ro.StartedAt),
		formatNullableTime(ro.PausedAt), formatNullableTime(ro.CompletedAt),
		formatTime(ro.UpdatedAt), ro.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rollout: %w", err)
	}
	return requireRow(res, "rollout", ro.ID)
}

func (r *RolloutRepository) query(ctx context.Context, q string, args ...any) ([]*model.Rollout, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rollouts: %w", err)
	}
	defer rows.Close()

	var out []*model.Rollout
	for rows.Next() {
		ro, err := scanRollout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ro)
	}
	return out, rows.Err()
}

func scanRollout(s scanner) (*model.Rollout, error) {
	var ro model.Rollout
	var plan, status, createdAt, updatedAt string
	var nextAdvance, startedAt, pausedAt, completedAt sql.NullString
	err := s.Scan(&ro.ID, &ro.ReleaseID, &plan, &status, &ro.CurrentStage,
		&ro.FleetSize, &nextAdvance, &startedAt, &pausedAt, &completedAt,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rollout", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rollout: %w", err)
	}
	if err := json.Unmarshal([]byte(plan), &ro.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	ro.Status = model.RolloutStatus(status)
	if ro.NextAdvanceAt, err = parseNullableTime(nextAdvance); err != nil {
		return nil, err
	}
	if ro.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, err
	}
	if ro.PausedAt, err = parseNullableTime(pausedAt); err != nil {
		return nil, err
	}
	if ro.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	if ro.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ro.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &ro, nil
}
