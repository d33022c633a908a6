package service

import (
	"context"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
	"github.com/fleetwarden/fleetwarden/internal/pkg/metrics"
)

// minCompletionForRollback is the share of a stage's cohort that must
// carry a final outcome before the failure rate is trusted. A stage with
// few resolved records is too small to judge a release on.
const minCompletionForRollback = 0.9

// rollbackDue evaluates the plan's failure policy against one stage's
// counts.
func rollbackDue(plan model.Plan, counts model.StatusCounts) bool {
	if counts.CompletionFraction() < minCompletionForRollback {
		return false
	}
	allowed := float64(100-plan.FailureThreshold) / 100
	return counts.SuccessRate() < allowed
}

// maybeRollback applies the rollout's failure policy to the current
// stage's cohort. Each stage is judged on its own records; a healthy
// earlier wave never offsets failures in a later one. With auto-rollback
// the rollout transitions to rolled back and every appliance that
// installed or is installing the release gets a revert order; without it
// the rollout pauses and waits for an operator. The caller holds the
// rollout lock and the rollout is in progress.
func (s *Service) maybeRollback(ctx context.Context, r *model.Rollout, now time.Time) (bool, error) {
	counts, err := s.repo.Records().CountsByStage(ctx, r.ID, r.CurrentStage)
	if err != nil {
		return false, err
	}
	if !rollbackDue(r.Plan, counts) {
		return false, nil
	}

	if !r.Plan.AutoRollback {
		if err := transition(ctx, r, eventPause); err != nil {
			return false, err
		}
		r.PausedAt = &now
		r.UpdatedAt = now
		if err := s.repo.Rollouts().Update(ctx, r); err != nil {
			return false, err
		}
		metrics.RolloutEscalationsTotal.Inc()
		s.logger.Warn("Failure threshold breached, rollout paused for operator review",
			"rollout", r.ID, "stage", r.CurrentStage, "succeeded", counts.Succeeded, "failed", counts.Failed, "threshold", r.Plan.FailureThreshold)
		return true, nil
	}

	if err := transition(ctx, r, eventRollback); err != nil {
		return false, err
	}
	r.NextAdvanceAt = nil
	r.CompletedAt = &now
	r.UpdatedAt = now
	if err := s.repo.Rollouts().Update(ctx, r); err != nil {
		return false, err
	}
	metrics.RolloutRollbacksTotal.Inc()
	s.logger.Warn("Failure threshold breached, rolling back",
		"rollout", r.ID, "stage", r.CurrentStage, "succeeded", counts.Succeeded, "failed", counts.Failed, "threshold", r.Plan.FailureThreshold)

	return true, s.revertInstalled(ctx, r)
}

// revertInstalled sends revert orders to every appliance in the rollout
// that reported success or still has an order in flight. Failed records
// never installed the release and are left alone.
func (s *Service) revertInstalled(ctx context.Context, r *model.Rollout) error {
	rel, err := s.repo.Releases().Get(ctx, r.ReleaseID)
	if err != nil {
		return err
	}
	records, err := s.repo.Records().ListByRollout(ctx, r.ID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		switch rec.Status {
		case model.RecordSucceeded, model.RecordInProgress, model.RecordPending:
			if err := s.dispatchRevert(ctx, r, rel, rec); err != nil {
				return err
			}
		}
	}
	return nil
}
