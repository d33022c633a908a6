// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersDispatchedTotal counts orders handed to the order channel,
	// by order type.
	OrdersDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwarden",
		Name:      "orders_dispatched_total",
		Help:      "Orders dispatched to appliances, by type.",
	}, []string{"type"})

	// DispatchFailuresTotal counts order sends the transport rejected.
	DispatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwarden",
		Name:      "dispatch_failures_total",
		Help:      "Order sends that failed at the transport.",
	})

	// OutcomesIngestedTotal counts appliance outcome reports applied to
	// update records, by reported status.
	OutcomesIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwarden",
		Name:      "outcomes_ingested_total",
		Help:      "Order outcomes applied to update records, by status.",
	}, []string{"status"})

	// RolloutRollbacksTotal counts automatic rollbacks triggered by the
	// failure policy.
	RolloutRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwarden",
		Name:      "rollout_rollbacks_total",
		Help:      "Rollouts rolled back automatically.",
	})

	// RolloutEscalationsTotal counts threshold breaches that paused a
	// rollout for operator review instead of rolling back.
	RolloutEscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwarden",
		Name:      "rollout_escalations_total",
		Help:      "Rollouts paused for operator review after a threshold breach.",
	})

	// CheckinsTotal counts appliance check-ins received.
	CheckinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetwarden",
		Name:      "checkins_total",
		Help:      "Appliance check-ins received.",
	})
)
