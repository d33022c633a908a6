package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// RecordRepository persists per-appliance update records.
type RecordRepository struct {
	db *sql.DB
}

const recordColumns = "id, rollout_id, appliance_id, stage, target_version, status, order_id, dispatch_attempts, order_expires_at, resolved_at, reason, created_at, updated_at"

func (r *RecordRepository) Create(ctx context.Context, rec *model.UpdateRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appliance_update_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RolloutID, rec.ApplianceID, rec.Stage, rec.TargetVersion, string(rec.Status),
		rec.OrderID, rec.DispatchAttempts, formatNullableTime(rec.OrderExpiresAt),
		formatNullableTime(rec.ResolvedAt), rec.Reason,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: appliance %s already recorded in rollout %s",
			core.ErrAlreadyExists, rec.ApplianceID, rec.RolloutID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert update record: %w", err)
	}
	return nil
}

func (r *RecordRepository) Get(ctx context.Context, id string) (*model.UpdateRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM appliance_update_records WHERE id = ?`, id)
	return scanRecord(row)
}

func (r *RecordRepository) GetByOrderID(ctx context.Context, orderID string) (*model.UpdateRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM appliance_update_records WHERE order_id = ?`, orderID)
	return scanRecord(row)
}

func (r *RecordRepository) ListByRollout(ctx context.Context, rolloutID string) ([]*model.UpdateRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM appliance_update_records
		WHERE rollout_id = ? ORDER BY created_at, appliance_id`, rolloutID)
	if err != nil {
		return nil, fmt.Errorf("failed to list update records: %w", err)
	}
	defer rows.Close()

	var out []*model.UpdateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordRepository) Update(ctx context.Context, rec *model.UpdateRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appliance_update_records
		SET status = ?, order_id = ?, dispatch_attempts = ?, order_expires_at = ?,
		    resolved_at = ?, reason = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.OrderID, rec.DispatchAttempts,
		formatNullableTime(rec.OrderExpiresAt), formatNullableTime(rec.ResolvedAt),
		rec.Reason, formatTime(rec.UpdatedAt), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return requireRow(res, "update record", rec.ID)
}

// Counts aggregates the rollout's records by status in one query.
func (r *RecordRepository) Counts(ctx context.Context, rolloutID string) (model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM appliance_update_records
		WHERE rollout_id = ? GROUP BY status`, rolloutID)
	if err != nil {
		return model.StatusCounts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return scanStatusCounts(rows)
}

// CountsByStage aggregates one stage's cohort by status: the records whose
// appliance was first dispatched in that stage.
func (r *RecordRepository) CountsByStage(ctx context.Context, rolloutID string, stage int) (model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM appliance_update_records
		WHERE rollout_id = ? AND stage = ? GROUP BY status`, rolloutID, stage)
	if err != nil {
		return model.StatusCounts{}, fmt.Errorf("failed to count stage records: %w", err)
	}
	return scanStatusCounts(rows)
}

func scanStatusCounts(rows *sql.Rows) (model.StatusCounts, error) {
	defer rows.Close()
	var counts model.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.StatusCounts{}, fmt.Errorf("failed to scan record count: %w", err)
		}
		switch model.RecordStatus(status) {
		case model.RecordPending:
			counts.Pending = n
		case model.RecordInProgress:
			counts.InProgress = n
		case model.RecordSucceeded:
			counts.Succeeded = n
		case model.RecordFailed:
			counts.Failed = n
		case model.RecordRolledBack:
			counts.RolledBack = n
		}
	}
	return counts, rows.Err()
}

// CountsResolvedSince aggregates records resolved at or after the cutoff,
// across all rollouts.
func (r *RecordRepository) CountsResolvedSince(ctx context.Context, since time.Time) (model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM appliance_update_records
		WHERE resolved_at IS NOT NULL AND resolved_at >= ? GROUP BY status`,
		formatTime(since))
	if err != nil {
		return model.StatusCounts{}, fmt.Errorf("failed to count resolved records: %w", err)
	}
	defer rows.Close()

	var counts model.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.StatusCounts{}, fmt.Errorf("failed to scan record count: %w", err)
		}
		switch model.RecordStatus(status) {
		case model.RecordSucceeded:
			counts.Succeeded = n
		case model.RecordFailed:
			counts.Failed = n
		case model.RecordRolledBack:
			counts.RolledBack = n
		}
	}
	return counts, rows.Err()
}

func scanRecord(s scanner) (*model.UpdateRecord, error) {
	var rec model.UpdateRecord
	var status, createdAt, updatedAt string
	var expires, resolved sql.NullString
	err := s.Scan(&rec.ID, &rec.RolloutID, &rec.ApplianceID, &rec.Stage,
		&rec.TargetVersion, &status, &rec.OrderID, &rec.DispatchAttempts,
		&expires, &resolved, &rec.Reason, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: update record", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan update record: %w", err)
	}
	rec.Status = model.RecordStatus(status)
	if rec.OrderExpiresAt, err = parseNullableTime(expires); err != nil {
		return nil, err
	}
	if rec.ResolvedAt, err = parseNullableTime(resolved); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
