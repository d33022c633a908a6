// Package service implements the engine's rollout lifecycle: release
// registration, staged dispatch, outcome ingestion, the rollback policy,
// and progress aggregation.
package service

import (
	"sync"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/pkg/log"
)

// Config carries the dispatch tunables the service needs.
type Config struct {
	// OrderTTL is how long a dispatched order stays valid.
	OrderTTL time.Duration
	// MaxDispatchAttempts bounds how often an unanswered order is
	// re-dispatched before the record is failed.
	MaxDispatchAttempts int
}

// Service coordinates rollouts over the repository, the order channel and
// the artifact store. All mutating rollout operations serialize per
// rollout ID.
type Service struct {
	repo    core.Repository
	channel core.OrderChannel
	store   core.ArtifactStore
	cfg     Config
	logger  log.Logger

	// now is swapped out in tests.
	now func() time.Time

	locks sync.Map
}

// NewService wires the service over its dependencies.
func NewService(repo core.Repository, channel core.OrderChannel, store core.ArtifactStore, cfg Config, logger log.Logger) *Service {
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = 2 * time.Hour
	}
	if cfg.MaxDispatchAttempts <= 0 {
		cfg.MaxDispatchAttempts = 3
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Service{
		repo:    repo,
		channel: channel,
		store:   store,
		cfg:     cfg,
		logger:  logger.WithName("service"),
		now:     time.Now,
	}
}

// lockRollout serializes mutations of one rollout. The returned function
// releases the lock.
func (s *Service) lockRollout(rolloutID string) func() {
	v, _ := s.locks.LoadOrStore(rolloutID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
