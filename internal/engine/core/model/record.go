package model

import "time"

// RecordStatus is the per-appliance outcome state within a rollout.
type RecordStatus string

const (
	RecordPending    RecordStatus = "pending"
	RecordInProgress RecordStatus = "in_progress"
	RecordSucceeded  RecordStatus = "succeeded"
	RecordFailed     RecordStatus = "failed"
	RecordRolledBack RecordStatus = "rolled_back"
)

// Resolved reports whether the record carries a final outcome.
func (s RecordStatus) Resolved() bool {
	switch s {
	case RecordSucceeded, RecordFailed, RecordRolledBack:
		return true
	}
	return false
}

// UpdateRecord is one appliance's participation in one rollout. A rollout
// holds at most one record per appliance; the record's status is the single
// source of truth for progress counting. Stage is the stage index the
// appliance was first dispatched in and never changes, so each stage's
// cohort can be judged on its own.
type UpdateRecord struct {
	ID               string
	RolloutID        string
	ApplianceID      string
	Stage            int
	TargetVersion    string
	Status           RecordStatus
	OrderID          string
	DispatchAttempts int
	OrderExpiresAt   *time.Time
	ResolvedAt       *time.Time
	Reason           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StatusCounts aggregates a rollout's records by status.
type StatusCounts struct {
	Pending    int
	InProgress int
	Succeeded  int
	Failed     int
	RolledBack int
}

// Total is the number of appliances targeted so far.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Succeeded + c.Failed + c.RolledBack
}

// Resolved is the number of records with a final outcome.
func (c StatusCounts) Resolved() int {
	return c.Succeeded + c.Failed + c.RolledBack
}

// CompletionFraction is the share of targeted appliances with a final
// outcome, in [0,1]. An empty rollout reports zero.
func (c StatusCounts) CompletionFraction() float64 {
	t := c.Total()
	if t == 0 {
		return 0
	}
	return float64(c.Resolved()) / float64(t)
}

// SuccessRate is the share of resolved records that succeeded, in [0,1].
// With no resolved records the rate is 1: no evidence of failure.
func (c StatusCounts) SuccessRate() float64 {
	r := c.Resolved()
	if r == 0 {
		return 1
	}
	return float64(c.Succeeded) / float64(r)
}
