package core

import (
	"context"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// ReleaseRepository persists published releases.
type ReleaseRepository interface {
	Create(ctx context.Context, r *model.Release) error
	Get(ctx context.Context, id string) (*model.Release, error)
	GetByVersion(ctx context.Context, version string) (*model.Release, error)
	List(ctx context.Context) ([]*model.Release, error)
	Update(ctx context.Context, r *model.Release) error
	// SetLatest atomically clears the latest marker fleet-wide and sets it
	// on the given release.
	SetLatest(ctx context.Context, id string) error
}

// RolloutRepository persists rollouts.
type RolloutRepository interface {
	Create(ctx context.Context, r *model.Rollout) error
	Get(ctx context.Context, id string) (*model.Rollout, error)
	List(ctx context.Context) ([]*model.Rollout, error)
	// ListActive returns rollouts whose status is scheduled or in progress.
	ListActive(ctx context.Context) ([]*model.Rollout, error)
	CountByStatus(ctx context.Context) (map[model.RolloutStatus]int, error)
	Update(ctx context.Context, r *model.Rollout) error
}

// RecordRepository persists per-appliance update records.
type RecordRepository interface {
	Create(ctx context.Context, rec *model.UpdateRecord) error
	Get(ctx context.Context, id string) (*model.UpdateRecord, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.UpdateRecord, error)
	ListByRollout(ctx context.Context, rolloutID string) ([]*model.UpdateRecord, error)
	Update(ctx context.Context, rec *model.UpdateRecord) error
	// Counts aggregates the rollout's records by status straight from
	// storage; nothing caches these numbers.
	Counts(ctx context.Context, rolloutID string) (model.StatusCounts, error)
	// CountsByStage aggregates the records first dispatched in the given
	// stage. The failure policy is judged per stage cohort.
	CountsByStage(ctx context.Context, rolloutID string, stage int) (model.StatusCounts, error)
	// CountsResolvedSince aggregates resolved records across all rollouts
	// from the cutoff onward.
	CountsResolvedSince(ctx context.Context, since time.Time) (model.StatusCounts, error)
}

// ApplianceRepository persists the appliances learned from check-ins.
type ApplianceRepository interface {
	Upsert(ctx context.Context, a *model.Appliance) error
	Get(ctx context.Context, id string) (*model.Appliance, error)
	List(ctx context.Context) ([]*model.Appliance, error)
	VersionDistribution(ctx context.Context) (model.VersionDistribution, error)
}

// Repository aggregates the engine's persistence interfaces.
type Repository interface {
	Releases() ReleaseRepository
	Rollouts() RolloutRepository
	Records() RecordRepository
	Appliances() ApplianceRepository
}
