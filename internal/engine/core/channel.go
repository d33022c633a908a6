package core

import (
	"context"
	"time"
)

// OrderType distinguishes install orders from revert orders.
type OrderType string

const (
	OrderUpdate OrderType = "update"
	OrderRevert OrderType = "revert"
)

// Order is one instruction to an appliance: install or revert to the
// target version. Orders expire; an appliance must not act on an order
// past its ExpiresAt.
type Order struct {
	ID            string    `json:"id"`
	Type          OrderType `json:"type"`
	RolloutID     string    `json:"rolloutId"`
	TargetVersion string    `json:"targetVersion"`
	ArtifactURL   string    `json:"artifactUrl"`
	Checksum      string    `json:"checksum"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// OutcomeStatus is the terminal state an appliance reports for an order.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeRejected  OutcomeStatus = "rejected"
)

// Outcome is an appliance's report on a previously dispatched order.
type Outcome struct {
	OrderID     string        `json:"orderId"`
	ApplianceID string        `json:"applianceId"`
	Status      OutcomeStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	ReportedAt  time.Time     `json:"reportedAt"`
}

// Checkin is an appliance's periodic heartbeat with its running version.
type Checkin struct {
	ApplianceID string    `json:"applianceId"`
	Version     string    `json:"version"`
	At          time.Time `json:"at"`
}

// OrderChannel delivers orders to appliances. Send returns once the order
// is handed to the transport; delivery to the appliance is asynchronous.
type OrderChannel interface {
	Send(ctx context.Context, applianceID string, order Order) error
}
