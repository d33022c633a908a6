package core

import (
	"context"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// FleetRegistry is the read-side view of the fleet used for selection and
// fleet statistics. The appliance repository satisfies it.
type FleetRegistry interface {
	Get(ctx context.Context, id string) (*model.Appliance, error)
	List(ctx context.Context) ([]*model.Appliance, error)
	VersionDistribution(ctx context.Context) (model.VersionDistribution, error)
}
