package model

import (
	"fmt"
	"sort"
)

// Strategy selects how a rollout divides the fleet into waves.
type Strategy string

const (
	// StrategyCanary walks through the plan's stages one at a time,
	// expanding the target population at each step.
	StrategyCanary Strategy = "canary"
	// StrategyImmediate targets the entire eligible fleet in a single
	// stage with no delay.
	StrategyImmediate Strategy = "immediate"
)

// Stage is one wave of a staged rollout: the cumulative percentage of the
// eligible fleet that should be targeted once the stage begins, and how
// long to hold after the stage before advancing.
type Stage struct {
	Percent    int `json:"percent"`
	DelayHours int `json:"delayHours"`
}

// Plan describes how a rollout proceeds through the fleet.
type Plan struct {
	Strategy          Strategy           `json:"strategy"`
	Stages            []Stage            `json:"stages,omitempty"`
	FailureThreshold  int                `json:"failureThreshold"`
	AutoRollback      bool               `json:"autoRollback"`
	MaintenanceWindow *MaintenanceWindow `json:"maintenanceWindow,omitempty"`
}

// ImmediatePlanStages is the implied single stage of an immediate rollout.
func ImmediatePlanStages() []Stage {
	return []Stage{{Percent: 100, DelayHours: 0}}
}

// EffectiveStages returns the plan's stage list, substituting the implied
// single 100% stage for immediate rollouts.
func (p Plan) EffectiveStages() []Stage {
	if p.Strategy == StrategyImmediate {
		return ImmediatePlanStages()
	}
	return p.Stages
}

// Validate reports the first problem with the plan, or nil if the plan is
// well formed.
func (p Plan) Validate() error {
	switch p.Strategy {
	case StrategyCanary:
		if len(p.Stages) == 0 {
			return fmt.Errorf("canary plan requires at least one stage")
		}
	case StrategyImmediate:
		if len(p.Stages) > 0 {
			return fmt.Errorf("immediate plan must not define stages")
		}
	default:
		return fmt.Errorf("unknown strategy %q", p.Strategy)
	}

	for i, s := range p.Stages {
		if s.Percent < 1 || s.Percent > 100 {
			return fmt.Errorf("stage %d: percent %d out of range [1,100]", i, s.Percent)
		}
		if s.DelayHours < 0 {
			return fmt.Errorf("stage %d: negative delay", i)
		}
	}
	if !sort.SliceIsSorted(p.Stages, func(i, j int) bool {
		return p.Stages[i].Percent < p.Stages[j].Percent
	}) {
		return fmt.Errorf("stage percentages must be strictly increasing")
	}
	for i := 1; i < len(p.Stages); i++ {
		if p.Stages[i].Percent == p.Stages[i-1].Percent {
			return fmt.Errorf("stage percentages must be strictly increasing")
		}
	}
	if n := len(p.Stages); n > 0 && p.Stages[n-1].Percent != 100 {
		return fmt.Errorf("final stage must target 100%% of the fleet")
	}

	if p.FailureThreshold < 0 || p.FailureThreshold > 100 {
		return fmt.Errorf("failure threshold %d out of range [0,100]", p.FailureThreshold)
	}

	if p.MaintenanceWindow != nil {
		if err := p.MaintenanceWindow.Validate(); err != nil {
			return fmt.Errorf("maintenance window: %w", err)
		}
	}
	return nil
}
