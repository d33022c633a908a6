package service

import (
	"context"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// RolloutProgress is a point-in-time view of one rollout, with counts
// recomputed from the update records.
type RolloutProgress struct {
	Rollout            *model.Rollout
	Counts             model.StatusCounts
	CompletionFraction float64
	SuccessRate        float64
}

// recentStatsWindow bounds the fleet-wide success rate to recent history.
const recentStatsWindow = 30 * 24 * time.Hour

// FleetStats summarizes the fleet and the engine's current workload.
type FleetStats struct {
	Appliances         int
	Versions           model.VersionDistribution
	ActiveRollouts     int
	InProgressRollouts int
	PausedRollouts     int
	// RecentSuccessRate covers records resolved in the last 30 days.
	RecentSuccessRate float64
}

// GetProgress aggregates a rollout's live progress.
func (s *Service) GetProgress(ctx context.Context, rolloutID string) (*RolloutProgress, error) {
	r, err := s.repo.Rollouts().Get(ctx, rolloutID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.Records().Counts(ctx, rolloutID)
	if err != nil {
		return nil, err
	}
	return &RolloutProgress{
		Rollout:            r,
		Counts:             counts,
		CompletionFraction: counts.CompletionFraction(),
		SuccessRate:        counts.SuccessRate(),
	}, nil
}

// ListRecords returns a rollout's per-appliance records.
func (s *Service) ListRecords(ctx context.Context, rolloutID string) ([]*model.UpdateRecord, error) {
	if _, err := s.repo.Rollouts().Get(ctx, rolloutID); err != nil {
		return nil, err
	}
	return s.repo.Records().ListByRollout(ctx, rolloutID)
}

// GetFleetStats summarizes the registered fleet.
func (s *Service) GetFleetStats(ctx context.Context) (*FleetStats, error) {
	fleet, err := s.repo.Appliances().List(ctx)
	if err != nil {
		return nil, err
	}
	dist, err := s.repo.Appliances().VersionDistribution(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.Rollouts().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.Records().CountsResolvedSince(ctx, s.now().UTC().Add(-recentStatsWindow))
	if err != nil {
		return nil, err
	}
	return &FleetStats{
		Appliances:         len(fleet),
		Versions:           dist,
		ActiveRollouts:     byStatus[model.RolloutScheduled] + byStatus[model.RolloutInProgress],
		InProgressRollouts: byStatus[model.RolloutInProgress],
		PausedRollouts:     byStatus[model.RolloutPaused],
		RecentSuccessRate:  recent.SuccessRate(),
	}, nil
}

// ListAppliances returns all known appliances.
func (s *Service) ListAppliances(ctx context.Context) ([]*model.Appliance, error) {
	return s.repo.Appliances().List(ctx)
}
