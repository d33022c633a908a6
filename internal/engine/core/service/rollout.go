package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// CreateRolloutInput carries the fields of a new rollout.
type CreateRolloutInput struct {
	ReleaseID string
	Plan      model.Plan
}

// CreateRollout schedules a rollout of an active release. The fleet size
// is snapshotted at creation so stage percentages stay stable while the
// rollout runs.
func (s *Service) CreateRollout(ctx context.Context, in CreateRolloutInput) (*model.Rollout, error) {
	if err := in.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	rel, err := s.repo.Releases().Get(ctx, in.ReleaseID)
	if err != nil {
		return nil, err
	}
	if !rel.Active {
		return nil, fmt.Errorf("%w: release %s is inactive", core.ErrInvalidArgument, rel.Version)
	}
	fleet, err := s.repo.Appliances().List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	advanceAt := now
	if w := in.Plan.MaintenanceWindow; w != nil {
		advanceAt = w.NextOpen(now).UTC()
	}
	r := &model.Rollout{
		ID:            uuid.NewString(),
		ReleaseID:     rel.ID,
		Plan:          in.Plan,
		Status:        model.RolloutScheduled,
		CurrentStage:  0,
		FleetSize:     len(fleet),
		NextAdvanceAt: &advanceAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Rollouts().Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("Created rollout", "rollout", r.ID, "release", rel.Version, "strategy", r.Plan.Strategy, "fleetSize", r.FleetSize)
	return r, nil
}

// GetRollout looks up a rollout by ID.
func (s *Service) GetRollout(ctx context.Context, id string) (*model.Rollout, error) {
	return s.repo.Rollouts().Get(ctx, id)
}

// ListRollouts returns all rollouts.
func (s *Service) ListRollouts(ctx context.Context) ([]*model.Rollout, error) {
	return s.repo.Rollouts().List(ctx)
}

// ListActiveRollouts returns rollouts the scheduler still needs to drive.
func (s *Service) ListActiveRollouts(ctx context.Context) ([]*model.Rollout, error) {
	return s.repo.Rollouts().ListActive(ctx)
}

// PauseRollout suspends dispatching. Already-sent orders keep running.
func (s *Service) PauseRollout(ctx context.Context, id string) (*model.Rollout, error) {
	unlock := s.lockRollout(id)
	defer unlock()

	r, err := s.repo.Rollouts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(ctx, r, eventPause); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r.PausedAt = &now
	r.UpdatedAt = now
	if err := s.repo.Rollouts().Update(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("Paused rollout", "rollout", r.ID)
	return r, nil
}

// ResumeRollout resumes a paused rollout and makes it due immediately.
func (s *Service) ResumeRollout(ctx context.Context, id string) (*model.Rollout, error) {
	unlock := s.lockRollout(id)
	defer unlock()

	r, err := s.repo.Rollouts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(ctx, r, eventResume); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r.NextAdvanceAt = &now
	r.UpdatedAt = now
	if err := s.repo.Rollouts().Update(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("Resumed rollout", "rollout", r.ID)
	return r, nil
}

// CancelRollout permanently stops a rollout. No further orders are sent
// and nothing is reverted; appliances keep whatever version they run.
func (s *Service) CancelRollout(ctx context.Context, id string) (*model.Rollout, error) {
	unlock := s.lockRollout(id)
	defer unlock()

	r, err := s.repo.Rollouts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(ctx, r, eventCancel); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r.NextAdvanceAt = nil
	r.CompletedAt = &now
	r.UpdatedAt = now
	if err := s.repo.Rollouts().Update(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("Cancelled rollout", "rollout", r.ID)
	return r, nil
}

// ForceAdvanceRollout makes the rollout due immediately and runs one
// scheduling step, moving an in-progress rollout to its next stage
// without waiting out the hold.
func (s *Service) ForceAdvanceRollout(ctx context.Context, id string) error {
	unlock := s.lockRollout(id)
	r, err := s.repo.Rollouts().Get(ctx, id)
	if err != nil {
		unlock()
		return err
	}
	if r.Status != model.RolloutScheduled && r.Status != model.RolloutInProgress {
		unlock()
		return fmt.Errorf("%w: cannot advance rollout in status %s", core.ErrInvalidTransition, r.Status)
	}
	now := s.now().UTC()
	r.NextAdvanceAt = &now
	r.UpdatedAt = now
	if err := s.repo.Rollouts().Update(ctx, r); err != nil {
		unlock()
		return err
	}
	unlock()
	return s.AdvanceRollout(ctx, id)
}

// AdvanceRollout performs one scheduling step for the rollout: it starts
// scheduled rollouts, moves to the next stage when the hold expired,
// retires or re-dispatches expired orders, targets newly eligible
// appliances, and detects completion. The step is idempotent; calling it
// again before anything is due changes nothing.
func (s *Service) AdvanceRollout(ctx context.Context, id string) error {
	unlock := s.lockRollout(id)
	defer unlock()

	r, err := s.repo.Rollouts().Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != model.RolloutScheduled && r.Status != model.RolloutInProgress {
		return nil
	}

	now := s.now().UTC()
	if w := r.Plan.MaintenanceWindow; w != nil && !w.Contains(now) {
		open := w.NextOpen(now).UTC()
		if r.NextAdvanceAt == nil || !r.NextAdvanceAt.Equal(open) {
			r.NextAdvanceAt = &open
			r.UpdatedAt = now
			if err := s.repo.Rollouts().Update(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}

	rel, err := s.repo.Releases().Get(ctx, r.ReleaseID)
	if err != nil {
		return err
	}

	dirty := false
	if r.Status == model.RolloutScheduled {
		if r.NextAdvanceAt != nil && now.Before(*r.NextAdvanceAt) {
			return nil
		}
		if err := transition(ctx, r, eventStart); err != nil {
			return err
		}
		r.StartedAt = &now
		hold := s.stageHold(r, r.CurrentStage, now)
		r.NextAdvanceAt = &hold
		dirty = true
		s.logger.Info("Started rollout", "rollout", r.ID, "release", rel.Version)
	} else if r.NextAdvanceAt != nil && !now.Before(*r.NextAdvanceAt) && !r.FinalStage(r.CurrentStage) {
		r.CurrentStage++
		hold := s.stageHold(r, r.CurrentStage, now)
		r.NextAdvanceAt = &hold
		dirty = true
		s.logger.Info("Advanced rollout stage", "rollout", r.ID, "stage", r.CurrentStage)
	}

	records, err := s.repo.Records().ListByRollout(ctx, r.ID)
	if err != nil {
		return err
	}
	if err := s.expireOverdueOrders(ctx, r, rel, records, now); err != nil {
		return err
	}

	recorded := make(map[string]bool, len(records))
	for _, rec := range records {
		recorded[rec.ApplianceID] = true
	}
	target := r.StageTarget(r.CurrentStage)
	delta := target - len(records)
	var dispatched int
	if delta > 0 {
		fleet, err := s.repo.Appliances().List(ctx)
		if err != nil {
			return err
		}
		for _, a := range selectAppliances(fleet, r.ID, rel.Version, recorded, delta) {
			if err := s.dispatchTo(ctx, r, rel, a.ID); err != nil {
				return err
			}
			dispatched++
		}
	}

	if r.Status == model.RolloutInProgress {
		triggered, err := s.maybeRollback(ctx, r, now)
		if err != nil {
			return err
		}
		if triggered {
			return nil
		}
	}
	counts, err := s.repo.Records().Counts(ctx, r.ID)
	if err != nil {
		return err
	}
	if r.FinalStage(r.CurrentStage) && counts.Pending == 0 && counts.InProgress == 0 && dispatched == 0 {
		if err := transition(ctx, r, eventComplete); err != nil {
			return err
		}
		r.NextAdvanceAt = nil
		r.CompletedAt = &now
		dirty = true
		s.logger.Info("Completed rollout", "rollout", r.ID, "succeeded", counts.Succeeded, "failed", counts.Failed)
	}

	if dirty || dispatched > 0 {
		r.UpdatedAt = now
		if err := s.repo.Rollouts().Update(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// stageHold computes when the current stage's hold expires.
func (s *Service) stageHold(r *model.Rollout, stage int, from time.Time) time.Time {
	stages := r.Plan.EffectiveStages()
	if stage < 0 || stage >= len(stages) {
		return from
	}
	return from.Add(time.Duration(stages[stage].DelayHours) * time.Hour)
}

// expireOverdueOrders handles records whose order passed its expiry with
// no outcome: re-dispatch while attempts remain, otherwise fail the
// record.
func (s *Service) expireOverdueOrders(ctx context.Context, r *model.Rollout, rel *model.Release, records []*model.UpdateRecord, now time.Time) error {
	for _, rec := range records {
		if rec.Status.Resolved() || rec.OrderExpiresAt == nil || now.Before(*rec.OrderExpiresAt) {
			continue
		}
		if rec.DispatchAttempts >= s.cfg.MaxDispatchAttempts {
			rec.Status = model.RecordFailed
			rec.Reason = "order expired after max dispatch attempts"
			rec.ResolvedAt = &now
			rec.UpdatedAt = now
			if err := s.repo.Records().Update(ctx, rec); err != nil {
				return err
			}
			s.logger.Warn("Failed record after repeated order expiry", "rollout", r.ID, "appliance", rec.ApplianceID, "attempts", rec.DispatchAttempts)
			continue
		}
		if err := s.redispatch(ctx, r, rel, rec); err != nil {
			return err
		}
	}
	return nil
}
