// Package scheduler drives active rollouts on a fixed tick.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/service"
	"github.com/fleetwarden/fleetwarden/pkg/log"
)

const advanceConcurrency = 8

// Scheduler periodically advances every scheduled or in-progress rollout.
// Advancing is idempotent, so a tick that finds nothing due is a no-op
// and overlapping replicas do no harm beyond wasted work.
type Scheduler struct {
	svc      *service.Service
	interval time.Duration
	logger   log.Logger
}

// New builds a scheduler ticking at the given interval.
func New(svc *service.Service, interval time.Duration, logger log.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger.WithName("scheduler"),
	}
}

// Run ticks until the context is cancelled. The first pass runs
// immediately so restarts pick up due work without waiting an interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	rollouts, err := s.svc.ListActiveRollouts(ctx)
	if err != nil {
		s.logger.Error(err, "Failed to list active rollouts")
		return
	}
	if len(rollouts) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(advanceConcurrency)
	for _, r := range rollouts {
		id := r.ID
		g.Go(func() error {
			if err := s.svc.AdvanceRollout(gctx, id); err != nil {
				s.logger.Error(err, "Failed to advance rollout", "rollout", id)
			}
			return nil
		})
	}
	_ = g.Wait()
}
