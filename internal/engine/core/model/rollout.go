package model

import "time"

// RolloutStatus is the lifecycle state of a rollout.
type RolloutStatus string

const (
	RolloutScheduled  RolloutStatus = "scheduled"
	RolloutInProgress RolloutStatus = "in_progress"
	RolloutPaused     RolloutStatus = "paused"
	RolloutCompleted  RolloutStatus = "completed"
	RolloutRolledBack RolloutStatus = "rolled_back"
	RolloutCancelled  RolloutStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RolloutStatus) Terminal() bool {
	switch s {
	case RolloutCompleted, RolloutRolledBack, RolloutCancelled:
		return true
	}
	return false
}

// Rollout tracks the staged delivery of one release to the fleet.
type Rollout struct {
	ID            string
	ReleaseID     string
	Plan          Plan
	Status        RolloutStatus
	CurrentStage  int
	FleetSize     int
	NextAdvanceAt *time.Time
	StartedAt     *time.Time
	PausedAt      *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StageTarget returns the number of appliances the rollout should have
// targeted once the given stage is active, rounding the stage percentage
// up so a non-empty fleet always yields at least one target.
func (r Rollout) StageTarget(stage int) int {
	stages := r.Plan.EffectiveStages()
	if stage < 0 || stage >= len(stages) || r.FleetSize == 0 {
		return 0
	}
	pct := stages[stage].Percent
	n := (r.FleetSize*pct + 99) / 100
	if n > r.FleetSize {
		n = r.FleetSize
	}
	return n
}

// FinalStage reports whether the given stage index is the plan's last.
func (r Rollout) FinalStage(stage int) bool {
	return stage >= len(r.Plan.EffectiveStages())-1
}
