package service

import (
	"context"
	"testing"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

func TestRollbackPolicyThresholds(t *testing.T) {
	plan := model.Plan{FailureThreshold: 10}
	cases := []struct {
		name   string
		counts model.StatusCounts
		want   bool
	}{
		{"below completion fraction", model.StatusCounts{Succeeded: 50, Failed: 30, Pending: 20}, false},
		{"healthy at completion", model.StatusCounts{Succeeded: 88, Failed: 2, Pending: 10}, false},
		{"breach at completion", model.StatusCounts{Succeeded: 75, Failed: 15, Pending: 10}, true},
		{"exact threshold boundary", model.StatusCounts{Succeeded: 90, Failed: 10}, false},
		{"just past boundary", model.StatusCounts{Succeeded: 89, Failed: 11}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rollbackDue(plan, tc.counts); got != tc.want {
				t.Fatalf("rollbackDue(%+v) = %v, want %v", tc.counts, got, tc.want)
			}
		})
	}
}

func TestAutoRollbackRevertsInstalledAppliances(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 100)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyImmediate,
		FailureThreshold: 10,
		AutoRollback:     true,
	})

	mustAdvance(t, svc, r.ID)
	// 90 of 100 resolved with 15 failures: success rate 83%, below the
	// 90% the threshold allows.
	resolvePending(t, svc, ch, r.ID, 90, 15)

	mustStatus(t, svc, r.ID, model.RolloutRolledBack)

	// Reverts go to the 75 that installed plus the 10 still in flight;
	// the 15 failed appliances never installed anything.
	if got := ch.count(core.OrderRevert); got != 85 {
		t.Fatalf("revert orders = %d, want 85", got)
	}
}

func TestLateStageFailuresTriggerRollback(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 100)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyCanary,
		Stages:           []model.Stage{{Percent: 80}, {Percent: 100}},
		FailureThreshold: 10,
		AutoRollback:     true,
	})

	mustAdvance(t, svc, r.ID)
	resolvePending(t, svc, ch, r.ID, 80, 0)
	mustStatus(t, svc, r.ID, model.RolloutInProgress)

	// Second wave targets the remaining 20 appliances.
	mustAdvance(t, svc, r.ID)

	// 18 of the 20 resolve with 6 failures: the wave's success rate is
	// 66.7% at 90% completion. Rollout-wide the rate is still 93.9%; the
	// first wave's clean run must not mask the breach.
	resolvePending(t, svc, ch, r.ID, 18, 6)
	mustStatus(t, svc, r.ID, model.RolloutRolledBack)

	// Reverts cover both waves: 92 installed plus 2 still in flight.
	if got := ch.count(core.OrderRevert); got != 94 {
		t.Fatalf("revert orders = %d, want 94", got)
	}
}

func TestEarlyStageOutcomesStayOutOfLaterWaves(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 100)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyCanary,
		Stages:           []model.Stage{{Percent: 80}, {Percent: 100}},
		FailureThreshold: 10,
		AutoRollback:     true,
	})

	mustAdvance(t, svc, r.ID)
	// 7 failures in the first wave sit just under its 10% threshold.
	resolvePending(t, svc, ch, r.ID, 80, 7)
	mustStatus(t, svc, r.ID, model.RolloutInProgress)

	// The second wave resolves clean and is judged only on its own 20
	// records; the first wave's failures carry no weight here.
	mustAdvance(t, svc, r.ID)
	resolvePending(t, svc, ch, r.ID, 20, 0)
	mustStatus(t, svc, r.ID, model.RolloutInProgress)

	mustAdvance(t, svc, r.ID)
	mustStatus(t, svc, r.ID, model.RolloutCompleted)
	if got := ch.count(core.OrderRevert); got != 0 {
		t.Fatalf("healthy rollout sent %d revert orders, want 0", got)
	}
}

func TestThresholdBreachWithoutAutoRollbackPauses(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 100)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyImmediate,
		FailureThreshold: 10,
	})

	mustAdvance(t, svc, r.ID)
	resolvePending(t, svc, ch, r.ID, 90, 15)

	mustStatus(t, svc, r.ID, model.RolloutPaused)
	if got := ch.count(core.OrderRevert); got != 0 {
		t.Fatalf("paused rollout sent %d revert orders, want 0", got)
	}
}

func TestNoRollbackBelowCompletionFraction(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 100)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyImmediate,
		FailureThreshold: 10,
		AutoRollback:     true,
	})

	mustAdvance(t, svc, r.ID)
	// Heavy failures, but only half the fleet has resolved.
	resolvePending(t, svc, ch, r.ID, 50, 30)

	mustStatus(t, svc, r.ID, model.RolloutInProgress)
}

func TestRevertOutcomeMarksRecordRolledBack(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 10)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyImmediate,
		FailureThreshold: 10,
		AutoRollback:     true,
	})

	mustAdvance(t, svc, r.ID)
	resolvePending(t, svc, ch, r.ID, 10, 3)
	mustStatus(t, svc, r.ID, model.RolloutRolledBack)

	records, _ := svc.ListRecords(context.Background(), r.ID)
	var reverted, failedRevert *model.UpdateRecord
	for _, rec := range records {
		if rec.Status == model.RecordSucceeded {
			if reverted == nil {
				reverted = rec
			} else if failedRevert == nil {
				failedRevert = rec
			}
		}
	}
	if reverted == nil || failedRevert == nil {
		t.Fatal("expected at least two succeeded records awaiting revert")
	}

	if err := svc.IngestOutcome(context.Background(), core.Outcome{
		OrderID: reverted.OrderID, ApplianceID: reverted.ApplianceID, Status: core.OutcomeSucceeded,
	}); err != nil {
		t.Fatalf("ingest revert outcome: %v", err)
	}
	got, _ := svc.repo.Records().Get(context.Background(), reverted.ID)
	if got.Status != model.RecordRolledBack {
		t.Fatalf("record status after revert = %s, want rolled_back", got.Status)
	}

	// A failed revert keeps the record as installed; the rollback decision
	// itself stands.
	if err := svc.IngestOutcome(context.Background(), core.Outcome{
		OrderID: failedRevert.OrderID, ApplianceID: failedRevert.ApplianceID,
		Status: core.OutcomeFailed, Reason: "disk full",
	}); err != nil {
		t.Fatalf("ingest failed revert: %v", err)
	}
	got, _ = svc.repo.Records().Get(context.Background(), failedRevert.ID)
	if got.Status != model.RecordSucceeded {
		t.Fatalf("record status after failed revert = %s, want succeeded", got.Status)
	}
	if got.Reason == "" {
		t.Fatal("failed revert should note the failure reason")
	}
	mustStatus(t, svc, r.ID, model.RolloutRolledBack)
}

func TestRolledBackRolloutNeverAdvances(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 10)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{
		Strategy:         model.StrategyImmediate,
		FailureThreshold: 10,
		AutoRollback:     true,
	})

	mustAdvance(t, svc, r.ID)
	resolvePending(t, svc, ch, r.ID, 10, 3)
	mustStatus(t, svc, r.ID, model.RolloutRolledBack)

	before := ch.count(core.OrderUpdate)
	mustAdvance(t, svc, r.ID)
	if got := ch.count(core.OrderUpdate); got != before {
		t.Fatal("rolled back rollout dispatched new update orders")
	}
	mustStatus(t, svc, r.ID, model.RolloutRolledBack)
}
