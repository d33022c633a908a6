package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
	"github.com/fleetwarden/fleetwarden/internal/engine/sqlite"
)

type sentOrder struct {
	applianceID string
	order       core.Order
}

// fakeChannel records every order handed to it.
type fakeChannel struct {
	mu   sync.Mutex
	sent []sentOrder
	err  error
}

func (f *fakeChannel) Send(_ context.Context, applianceID string, order core.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentOrder{applianceID: applianceID, order: order})
	return nil
}

func (f *fakeChannel) count(typ core.OrderType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.order.Type == typ {
			n++
		}
	}
	return n
}

func (f *fakeChannel) lastOrderFor(applianceID string) (core.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].applianceID == applianceID {
			return f.sent[i].order, true
		}
	}
	return core.Order{}, false
}

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T) (*Service, *sqlite.Store, *fakeChannel, *testClock) {
	t.Helper()
	store := sqlite.OpenTestStore(t)
	ch := &fakeChannel{}
	clock := newTestClock()
	svc := NewService(store, ch, nil, Config{OrderTTL: 2 * time.Hour, MaxDispatchAttempts: 3}, nil)
	svc.now = clock.Now
	return svc, store, ch, clock
}

func seedFleet(t *testing.T, svc *Service, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("app-%03d", i)
		if err := svc.HandleCheckin(context.Background(), core.Checkin{ApplianceID: id, Version: "1.0.0"}); err != nil {
			t.Fatalf("seed appliance %s: %v", id, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func registerActiveRelease(t *testing.T, svc *Service, version string) *model.Release {
	t.Helper()
	rel, err := svc.RegisterRelease(context.Background(), RegisterReleaseInput{
		Version:     version,
		ArtifactURL: "s3://releases/" + version + ".img",
		Checksum:    "sha256:abc",
	})
	if err != nil {
		t.Fatalf("register release: %v", err)
	}
	if rel, err = svc.ActivateRelease(context.Background(), rel.ID); err != nil {
		t.Fatalf("activate release: %v", err)
	}
	return rel
}

func mustCreateRollout(t *testing.T, svc *Service, releaseID string, plan model.Plan) *model.Rollout {
	t.Helper()
	r, err := svc.CreateRollout(context.Background(), CreateRolloutInput{ReleaseID: releaseID, Plan: plan})
	if err != nil {
		t.Fatalf("create rollout: %v", err)
	}
	return r
}

func mustAdvance(t *testing.T, svc *Service, id string) {
	t.Helper()
	if err := svc.AdvanceRollout(context.Background(), id); err != nil {
		t.Fatalf("advance rollout: %v", err)
	}
}

func mustStatus(t *testing.T, svc *Service, id string, want model.RolloutStatus) {
	t.Helper()
	r, err := svc.GetRollout(context.Background(), id)
	if err != nil {
		t.Fatalf("get rollout: %v", err)
	}
	if r.Status != want {
		t.Fatalf("rollout status = %s, want %s", r.Status, want)
	}
}

// resolvePending reports outcomes for up to n unresolved records, failing
// the first failures of them and succeeding the rest.
func resolvePending(t *testing.T, svc *Service, ch *fakeChannel, rolloutID string, n, failures int) {
	t.Helper()
	records, err := svc.ListRecords(context.Background(), rolloutID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	resolved := 0
	for _, rec := range records {
		if rec.Status.Resolved() || resolved >= n {
			continue
		}
		status := core.OutcomeSucceeded
		if resolved < failures {
			status = core.OutcomeFailed
		}
		err := svc.IngestOutcome(context.Background(), core.Outcome{
			OrderID:     rec.OrderID,
			ApplianceID: rec.ApplianceID,
			Status:      status,
			Reason:      "test outcome",
		})
		if err != nil {
			t.Fatalf("ingest outcome for %s: %v", rec.ApplianceID, err)
		}
		resolved++
	}
	if resolved < n {
		t.Fatalf("resolved %d records, wanted %d", resolved, n)
	}
}
