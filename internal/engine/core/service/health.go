package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
	"github.com/fleetwarden/fleetwarden/internal/pkg/metrics"
)

// IngestOutcome applies an appliance's report on an order. Outcomes for
// unknown or superseded orders are dropped, and a record that already
// carries a final outcome only moves again for a revert confirmation.
// After applying the outcome the rollout's failure policy is evaluated.
func (s *Service) IngestOutcome(ctx context.Context, out core.Outcome) error {
	if out.OrderID == "" {
		return fmt.Errorf("%w: order ID is required", core.ErrInvalidArgument)
	}
	rec, err := s.repo.Records().GetByOrderID(ctx, out.OrderID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Debug("Dropping outcome for unknown order", "order", out.OrderID, "appliance", out.ApplianceID)
			return nil
		}
		return err
	}

	unlock := s.lockRollout(rec.RolloutID)
	defer unlock()

	// Re-read under the lock; the scheduler may have rebound the order.
	rec, err = s.repo.Records().Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	if rec.OrderID != out.OrderID {
		s.logger.Debug("Dropping outcome for superseded order", "order", out.OrderID, "record", rec.ID)
		return nil
	}

	r, err := s.repo.Rollouts().Get(ctx, rec.RolloutID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if r.Status == model.RolloutRolledBack {
		return s.applyRevertOutcome(ctx, r, rec, out, now)
	}
	if rec.Status.Resolved() {
		s.logger.Debug("Dropping duplicate outcome", "order", out.OrderID, "record", rec.ID, "status", rec.Status)
		return nil
	}

	switch out.Status {
	case core.OutcomeSucceeded:
		rec.Status = model.RecordSucceeded
		rec.Reason = ""
	case core.OutcomeFailed, core.OutcomeRejected:
		rec.Status = model.RecordFailed
		rec.Reason = out.Reason
	default:
		return fmt.Errorf("%w: unknown outcome status %q", core.ErrInvalidArgument, out.Status)
	}
	rec.ResolvedAt = &now
	rec.UpdatedAt = now
	if err := s.repo.Records().Update(ctx, rec); err != nil {
		return err
	}
	metrics.OutcomesIngestedTotal.WithLabelValues(string(out.Status)).Inc()
	s.logger.Debug("Applied order outcome", "rollout", r.ID, "appliance", rec.ApplianceID, "status", rec.Status)

	if rec.Status == model.RecordSucceeded {
		if err := s.noteApplianceVersion(ctx, r, rec.ApplianceID); err != nil {
			s.logger.Error(err, "Failed to update appliance version", "appliance", rec.ApplianceID)
		}
	}

	if r.Status != model.RolloutInProgress {
		return nil
	}
	_, err = s.maybeRollback(ctx, r, now)
	return err
}

// applyRevertOutcome handles reports arriving after the rollout rolled
// back; every bound order is then a revert order. A confirmed revert
// marks the record rolled back, a failed revert keeps the record as it
// was with the failure noted.
func (s *Service) applyRevertOutcome(ctx context.Context, r *model.Rollout, rec *model.UpdateRecord, out core.Outcome, now time.Time) error {
	switch out.Status {
	case core.OutcomeSucceeded:
		if rec.Status == model.RecordRolledBack {
			return nil
		}
		rec.Status = model.RecordRolledBack
		rec.ResolvedAt = &now
		rec.Reason = ""
	case core.OutcomeFailed, core.OutcomeRejected:
		rec.Reason = fmt.Sprintf("revert failed: %s", out.Reason)
	default:
		return fmt.Errorf("%w: unknown outcome status %q", core.ErrInvalidArgument, out.Status)
	}
	rec.UpdatedAt = now
	if err := s.repo.Records().Update(ctx, rec); err != nil {
		return err
	}
	metrics.OutcomesIngestedTotal.WithLabelValues(string(out.Status)).Inc()
	s.logger.Debug("Applied revert outcome", "rollout", r.ID, "appliance", rec.ApplianceID, "status", rec.Status)
	return nil
}

// noteApplianceVersion reflects a successful install on the appliance's
// registry entry.
func (s *Service) noteApplianceVersion(ctx context.Context, r *model.Rollout, applianceID string) error {
	rel, err := s.repo.Releases().Get(ctx, r.ReleaseID)
	if err != nil {
		return err
	}
	a, err := s.repo.Appliances().Get(ctx, applianceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	a.CurrentVersion = rel.Version
	return s.repo.Appliances().Upsert(ctx, a)
}

// HandleCheckin records an appliance heartbeat, creating the appliance on
// first contact.
func (s *Service) HandleCheckin(ctx context.Context, c core.Checkin) error {
	if c.ApplianceID == "" {
		return fmt.Errorf("%w: appliance ID is required", core.ErrInvalidArgument)
	}
	now := s.now().UTC()
	at := c.At
	if at.IsZero() {
		at = now
	}
	a, err := s.repo.Appliances().Get(ctx, c.ApplianceID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		a = &model.Appliance{ID: c.ApplianceID, CreatedAt: now}
	}
	a.CurrentVersion = c.Version
	a.LastSeenAt = at.UTC()
	return s.repo.Appliances().Upsert(ctx, a)
}
