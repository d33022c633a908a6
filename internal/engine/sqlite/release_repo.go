package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// ReleaseRepository persists releases.
type ReleaseRepository struct {
	db *sql.DB
}

const releaseColumns = "id, version, artifact_url, checksum, agent_version, size_bytes, notes, active, latest, created_at"

func (r *ReleaseRepository) Create(ctx context.Context, rel *model.Release) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO releases (`+releaseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.Version, rel.ArtifactURL, rel.Checksum, rel.AgentVersion,
		rel.SizeBytes, rel.Notes, rel.Active, rel.Latest, formatTime(rel.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: release version %q", core.ErrAlreadyExists, rel.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to insert release: %w", err)
	}
	return nil
}

func (r *ReleaseRepository) Get(ctx context.Context, id string) (*model.Release, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = ?`, id)
	return scanRelease(row)
}

func (r *ReleaseRepository) GetByVersion(ctx context.Context, version string) (*model.Release, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE version = ?`, version)
	return scanRelease(row)
}

func (r *ReleaseRepository) List(ctx context.Context) ([]*model.Release, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+releaseColumns+` FROM releases ORDER BY created_at DESC, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var out []*model.Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *ReleaseRepository) Update(ctx context.Context, rel *model.Release) error {
	// Releases are immutable once published; only the flags move.
	res, err := r.db.ExecContext(ctx, `
		UPDATE releases SET active = ?, latest = ? WHERE id = ?`,
		rel.Active, rel.Latest, rel.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update release: %w", err)
	}
	return requireRow(res, "release", rel.ID)
}

func (r *ReleaseRepository) SetLatest(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE releases SET latest = 0 WHERE latest = 1`); err != nil {
		return fmt.Errorf("failed to clear latest marker: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE releases SET latest = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to set latest marker: %w", err)
	}
	if err := requireRow(res, "release", id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanRelease(s scanner) (*model.Release, error) {
	var rel model.Release
	var createdAt string
	err := s.Scan(&rel.ID, &rel.Version, &rel.ArtifactURL, &rel.Checksum,
		&rel.AgentVersion, &rel.SizeBytes, &rel.Notes, &rel.Active, &rel.Latest, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: release", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan release: %w", err)
	}
	if rel.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rel, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", core.ErrNotFound, kind, id)
	}
	return nil
}
