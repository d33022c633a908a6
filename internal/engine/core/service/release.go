package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// RegisterReleaseInput carries the fields of a new release.
type RegisterReleaseInput struct {
	Version      string
	ArtifactURL  string
	Checksum     string
	AgentVersion string
	SizeBytes    int64
	Notes        string
}

// RegisterRelease publishes a new release version. Versions are unique
// across the registry. New releases start inactive; an operator activates
// them once verified.
func (s *Service) RegisterRelease(ctx context.Context, in RegisterReleaseInput) (*model.Release, error) {
	if in.Version == "" {
		return nil, fmt.Errorf("%w: version is required", core.ErrInvalidArgument)
	}
	if in.ArtifactURL == "" {
		return nil, fmt.Errorf("%w: artifact URL is required", core.ErrInvalidArgument)
	}
	if in.Checksum == "" {
		return nil, fmt.Errorf("%w: checksum is required", core.ErrInvalidArgument)
	}

	if _, err := s.repo.Releases().GetByVersion(ctx, in.Version); err == nil {
		return nil, fmt.Errorf("%w: release version %q", core.ErrAlreadyExists, in.Version)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	rel := &model.Release{
		ID:           uuid.NewString(),
		Version:      in.Version,
		ArtifactURL:  in.ArtifactURL,
		Checksum:     in.Checksum,
		AgentVersion: in.AgentVersion,
		SizeBytes:    in.SizeBytes,
		Notes:        in.Notes,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Releases().Create(ctx, rel); err != nil {
		return nil, err
	}
	s.logger.Info("Registered release", "release", rel.ID, "version", rel.Version)
	return rel, nil
}

// GetRelease looks up a release by ID.
func (s *Service) GetRelease(ctx context.Context, id string) (*model.Release, error) {
	return s.repo.Releases().Get(ctx, id)
}

// GetReleaseByVersion looks up a release by its version string.
func (s *Service) GetReleaseByVersion(ctx context.Context, version string) (*model.Release, error) {
	return s.repo.Releases().GetByVersion(ctx, version)
}

// ActivateRelease marks a release eligible for rollouts.
func (s *Service) ActivateRelease(ctx context.Context, id string) (*model.Release, error) {
	rel, err := s.repo.Releases().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel.Active {
		return rel, nil
	}
	rel.Active = true
	if err := s.repo.Releases().Update(ctx, rel); err != nil {
		return nil, err
	}
	s.logger.Info("Activated release", "release", rel.ID, "version", rel.Version)
	return rel, nil
}

// ListReleases returns all registered releases.
func (s *Service) ListReleases(ctx context.Context) ([]*model.Release, error) {
	return s.repo.Releases().List(ctx)
}

// DeactivateRelease marks a release ineligible for new rollouts. Running
// rollouts of the release are unaffected.
func (s *Service) DeactivateRelease(ctx context.Context, id string) (*model.Release, error) {
	rel, err := s.repo.Releases().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rel.Active {
		return rel, nil
	}
	rel.Active = false
	if err := s.repo.Releases().Update(ctx, rel); err != nil {
		return nil, err
	}
	s.logger.Info("Deactivated release", "release", rel.ID, "version", rel.Version)
	return rel, nil
}

// MarkLatest moves the fleet-wide latest marker to the given release. The
// release must be active.
func (s *Service) MarkLatest(ctx context.Context, id string) (*model.Release, error) {
	rel, err := s.repo.Releases().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rel.Active {
		return nil, fmt.Errorf("%w: release %s is inactive", core.ErrInvalidArgument, rel.Version)
	}
	if err := s.repo.Releases().SetLatest(ctx, id); err != nil {
		return nil, err
	}
	rel.Latest = true
	s.logger.Info("Marked release latest", "release", rel.ID, "version", rel.Version)
	return rel, nil
}
