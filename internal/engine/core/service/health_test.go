package service

import (
	"context"
	"testing"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

func TestDuplicateOutcomeIgnored(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 5)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{Strategy: model.StrategyImmediate, FailureThreshold: 50})

	mustAdvance(t, svc, r.ID)
	records, _ := svc.ListRecords(context.Background(), r.ID)
	rec := records[0]

	out := core.Outcome{OrderID: rec.OrderID, ApplianceID: rec.ApplianceID, Status: core.OutcomeSucceeded}
	if err := svc.IngestOutcome(context.Background(), out); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	// A late duplicate, now reporting failure, must not flip the record.
	out.Status = core.OutcomeFailed
	if err := svc.IngestOutcome(context.Background(), out); err != nil {
		t.Fatalf("duplicate ingest: %v", err)
	}
	got, _ := svc.repo.Records().Get(context.Background(), rec.ID)
	if got.Status != model.RecordSucceeded {
		t.Fatalf("record status = %s, want succeeded", got.Status)
	}
	_ = ch
}

func TestOutcomeForUnknownOrderDropped(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	err := svc.IngestOutcome(context.Background(), core.Outcome{
		OrderID: "no-such-order", ApplianceID: "app-000", Status: core.OutcomeSucceeded,
	})
	if err != nil {
		t.Fatalf("unknown order outcome should be dropped, got %v", err)
	}
}

func TestOrderExpiryRedispatchesThenFails(t *testing.T) {
	svc, _, ch, clock := newTestService(t)
	seedFleet(t, svc, 1)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{Strategy: model.StrategyImmediate, FailureThreshold: 50})

	mustAdvance(t, svc, r.ID)
	records, _ := svc.ListRecords(context.Background(), r.ID)
	firstOrder := records[0].OrderID

	// Second attempt after the first order expires.
	clock.Advance(3 * time.Hour)
	mustAdvance(t, svc, r.ID)
	records, _ = svc.ListRecords(context.Background(), r.ID)
	if records[0].DispatchAttempts != 2 {
		t.Fatalf("attempts = %d, want 2", records[0].DispatchAttempts)
	}
	if records[0].OrderID == firstOrder {
		t.Fatal("expired order was not rebound to a fresh order")
	}

	// An outcome for the superseded order is dropped.
	if err := svc.IngestOutcome(context.Background(), core.Outcome{
		OrderID: firstOrder, ApplianceID: records[0].ApplianceID, Status: core.OutcomeSucceeded,
	}); err != nil {
		t.Fatalf("stale outcome: %v", err)
	}
	records, _ = svc.ListRecords(context.Background(), r.ID)
	if records[0].Status != model.RecordInProgress {
		t.Fatalf("stale outcome resolved the record to %s", records[0].Status)
	}

	// Third attempt, then the budget is spent and the record fails.
	clock.Advance(3 * time.Hour)
	mustAdvance(t, svc, r.ID)
	clock.Advance(3 * time.Hour)
	mustAdvance(t, svc, r.ID)
	records, _ = svc.ListRecords(context.Background(), r.ID)
	if records[0].Status != model.RecordFailed {
		t.Fatalf("record status = %s, want failed after exhausted attempts", records[0].Status)
	}
	if records[0].DispatchAttempts != 3 {
		t.Fatalf("attempts = %d, want 3", records[0].DispatchAttempts)
	}
	if got := ch.count(core.OrderUpdate); got != 3 {
		t.Fatalf("update orders sent = %d, want 3", got)
	}
}

func TestCountsAlwaysSumToTargeted(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 20)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{Strategy: model.StrategyImmediate, FailureThreshold: 50})

	checkInvariant := func() {
		t.Helper()
		records, err := svc.ListRecords(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("list records: %v", err)
		}
		counts, err := svc.repo.Records().Counts(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("counts: %v", err)
		}
		if counts.Total() != len(records) {
			t.Fatalf("count sum %d != targeted %d", counts.Total(), len(records))
		}
	}

	checkInvariant()
	mustAdvance(t, svc, r.ID)
	checkInvariant()
	resolvePending(t, svc, ch, r.ID, 7, 2)
	checkInvariant()
	resolvePending(t, svc, ch, r.ID, 13, 1)
	checkInvariant()
}

func TestSuccessfulInstallUpdatesApplianceVersion(t *testing.T) {
	svc, _, ch, _ := newTestService(t)
	seedFleet(t, svc, 3)
	rel := registerActiveRelease(t, svc, "2.0.0")
	r := mustCreateRollout(t, svc, rel.ID, model.Plan{Strategy: model.StrategyImmediate, FailureThreshold: 50})

	mustAdvance(t, svc, r.ID)
	resolvePending(t, svc, ch, r.ID, 3, 0)

	appliances, _ := svc.ListAppliances(context.Background())
	for _, a := range appliances {
		if a.CurrentVersion != "2.0.0" {
			t.Fatalf("appliance %s version = %s, want 2.0.0", a.ID, a.CurrentVersion)
		}
	}
}

func TestCheckinRegistersAndRefreshes(t *testing.T) {
	svc, _, _, clock := newTestService(t)

	if err := svc.HandleCheckin(context.Background(), core.Checkin{ApplianceID: "edge-01", Version: "1.2.0"}); err != nil {
		t.Fatalf("first checkin: %v", err)
	}
	clock.Advance(10 * time.Minute)
	if err := svc.HandleCheckin(context.Background(), core.Checkin{ApplianceID: "edge-01", Version: "1.3.0"}); err != nil {
		t.Fatalf("second checkin: %v", err)
	}

	a, err := svc.repo.Appliances().Get(context.Background(), "edge-01")
	if err != nil {
		t.Fatalf("get appliance: %v", err)
	}
	if a.CurrentVersion != "1.3.0" {
		t.Fatalf("version = %s, want 1.3.0", a.CurrentVersion)
	}
	if !a.LastSeenAt.Equal(clock.Now()) {
		t.Fatalf("last seen = %v, want %v", a.LastSeenAt, clock.Now())
	}

	if err := svc.HandleCheckin(context.Background(), core.Checkin{Version: "1.0.0"}); err == nil {
		t.Fatal("checkin without appliance ID should be rejected")
	}
}
