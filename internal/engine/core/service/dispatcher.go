package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
	"github.com/fleetwarden/fleetwarden/internal/pkg/metrics"
)

// buildOrder assembles an order for the rollout's release. When the
// artifact store is enabled the release's artifact URL is treated as an
// object key and swapped for a presigned download URL.
func (s *Service) buildOrder(ctx context.Context, rollout *model.Rollout, release *model.Release, typ core.OrderType) (core.Order, error) {
	now := s.now().UTC()
	order := core.Order{
		ID:            uuid.NewString(),
		Type:          typ,
		RolloutID:     rollout.ID,
		TargetVersion: release.Version,
		ArtifactURL:   release.ArtifactURL,
		Checksum:      release.Checksum,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.cfg.OrderTTL),
	}
	if typ == core.OrderUpdate && s.store != nil && s.store.Enabled() {
		url, err := s.store.PresignDownload(ctx, release.ArtifactURL, s.cfg.OrderTTL)
		if err != nil {
			return core.Order{}, err
		}
		order.ArtifactURL = url
	}
	return order, nil
}

// dispatchTo records the appliance's participation and sends it an update
// order. The record is written before the send so a transport failure
// never loses track of a targeted appliance; the scheduler re-dispatches
// pending records whose order expired.
func (s *Service) dispatchTo(ctx context.Context, rollout *model.Rollout, release *model.Release, applianceID string) error {
	order, err := s.buildOrder(ctx, rollout, release, core.OrderUpdate)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	expires := order.ExpiresAt
	rec := &model.UpdateRecord{
		ID:               uuid.NewString(),
		RolloutID:        rollout.ID,
		ApplianceID:      applianceID,
		Stage:            rollout.CurrentStage,
		TargetVersion:    release.Version,
		Status:           model.RecordPending,
		OrderID:          order.ID,
		DispatchAttempts: 1,
		OrderExpiresAt:   &expires,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Records().Create(ctx, rec); err != nil {
		return err
	}
	if err := s.channel.Send(ctx, applianceID, order); err != nil {
		metrics.DispatchFailuresTotal.Inc()
		s.logger.Error(err, "Failed to send update order", "rollout", rollout.ID, "appliance", applianceID, "order", order.ID)
		return nil
	}
	metrics.OrdersDispatchedTotal.WithLabelValues(string(core.OrderUpdate)).Inc()
	rec.Status = model.RecordInProgress
	return s.repo.Records().Update(ctx, rec)
}

// redispatch issues a fresh order for a record whose previous order
// expired unanswered, rebinding the record and bumping the attempt count.
// A record the transport never accepted stays pending until a send lands.
func (s *Service) redispatch(ctx context.Context, rollout *model.Rollout, release *model.Release, rec *model.UpdateRecord) error {
	order, err := s.buildOrder(ctx, rollout, release, core.OrderUpdate)
	if err != nil {
		return err
	}
	expires := order.ExpiresAt
	rec.OrderID = order.ID
	rec.DispatchAttempts++
	rec.OrderExpiresAt = &expires
	rec.UpdatedAt = s.now().UTC()
	if err := s.repo.Records().Update(ctx, rec); err != nil {
		return err
	}
	if err := s.channel.Send(ctx, rec.ApplianceID, order); err != nil {
		metrics.DispatchFailuresTotal.Inc()
		s.logger.Error(err, "Failed to re-send update order", "rollout", rollout.ID, "appliance", rec.ApplianceID, "order", order.ID)
		return nil
	}
	metrics.OrdersDispatchedTotal.WithLabelValues(string(core.OrderUpdate)).Inc()
	if rec.Status == model.RecordPending {
		rec.Status = model.RecordInProgress
		return s.repo.Records().Update(ctx, rec)
	}
	return nil
}

// dispatchRevert sends a revert order for a record, rebinding the record
// to the new order while leaving its status untouched until the appliance
// reports the revert outcome.
func (s *Service) dispatchRevert(ctx context.Context, rollout *model.Rollout, release *model.Release, rec *model.UpdateRecord) error {
	order, err := s.buildOrder(ctx, rollout, release, core.OrderRevert)
	if err != nil {
		return err
	}
	expires := order.ExpiresAt
	rec.OrderID = order.ID
	rec.OrderExpiresAt = &expires
	rec.UpdatedAt = s.now().UTC()
	if err := s.repo.Records().Update(ctx, rec); err != nil {
		return err
	}
	if err := s.channel.Send(ctx, rec.ApplianceID, order); err != nil {
		metrics.DispatchFailuresTotal.Inc()
		s.logger.Error(err, "Failed to send revert order", "rollout", rollout.ID, "appliance", rec.ApplianceID, "order", order.ID)
		return nil
	}
	metrics.OrdersDispatchedTotal.WithLabelValues(string(core.OrderRevert)).Inc()
	return nil
}
