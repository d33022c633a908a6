package service

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

const (
	eventStart    = "start"
	eventPause    = "pause"
	eventResume   = "resume"
	eventComplete = "complete"
	eventRollback = "rollback"
	eventCancel   = "cancel"
)

// rolloutEvents defines the rollout lifecycle. Completed, rolled back and
// cancelled are terminal.
var rolloutEvents = fsm.Events{
	{Name: eventStart, Src: []string{string(model.RolloutScheduled)}, Dst: string(model.RolloutInProgress)},
	{Name: eventPause, Src: []string{string(model.RolloutInProgress)}, Dst: string(model.RolloutPaused)},
	{Name: eventResume, Src: []string{string(model.RolloutPaused)}, Dst: string(model.RolloutInProgress)},
	{Name: eventComplete, Src: []string{string(model.RolloutInProgress)}, Dst: string(model.RolloutCompleted)},
	{Name: eventRollback, Src: []string{string(model.RolloutInProgress)}, Dst: string(model.RolloutRolledBack)},
	{Name: eventCancel, Src: []string{
		string(model.RolloutScheduled),
		string(model.RolloutInProgress),
		string(model.RolloutPaused),
	}, Dst: string(model.RolloutCancelled)},
}

// transition fires the named lifecycle event against the rollout and
// writes the resulting status back onto it.
func transition(ctx context.Context, r *model.Rollout, event string) error {
	m := fsm.NewFSM(string(r.Status), rolloutEvents, fsm.Callbacks{})
	if err := m.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: cannot %s rollout in status %s", core.ErrInvalidTransition, event, r.Status)
	}
	r.Status = model.RolloutStatus(m.Current())
	return nil
}
