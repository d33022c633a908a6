package service

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

func fleetOf(n int) []*model.Appliance {
	out := make([]*model.Appliance, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &model.Appliance{ID: fmt.Sprintf("app-%03d", i), CurrentVersion: "1.0.0"})
	}
	return out
}

func ids(appliances []*model.Appliance) []string {
	out := make([]string, 0, len(appliances))
	for _, a := range appliances {
		out = append(out, a.ID)
	}
	return out
}

func TestSelectionIsDeterministic(t *testing.T) {
	fleet := fleetOf(50)
	first := selectAppliances(fleet, "rollout-a", "2.0.0", nil, 10)
	second := selectAppliances(fleet, "rollout-a", "2.0.0", nil, 10)
	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Fatal("same inputs selected different appliances")
	}
	if len(first) != 10 {
		t.Fatalf("selected %d, want 10", len(first))
	}
}

func TestSelectionExtendsItsOwnPrefix(t *testing.T) {
	fleet := fleetOf(100)
	wave1 := selectAppliances(fleet, "rollout-a", "2.0.0", nil, 10)

	recorded := map[string]bool{}
	for _, a := range wave1 {
		recorded[a.ID] = true
	}
	wave2 := selectAppliances(fleet, "rollout-a", "2.0.0", recorded, 40)
	if len(wave2) != 40 {
		t.Fatalf("second wave selected %d, want 40", len(wave2))
	}
	for _, a := range wave2 {
		if recorded[a.ID] {
			t.Fatalf("appliance %s selected twice", a.ID)
		}
	}

	// The combined set matches selecting 50 in one shot.
	combined := map[string]bool{}
	for _, a := range wave1 {
		combined[a.ID] = true
	}
	for _, a := range wave2 {
		combined[a.ID] = true
	}
	oneShot := selectAppliances(fleet, "rollout-a", "2.0.0", nil, 50)
	for _, a := range oneShot {
		if !combined[a.ID] {
			t.Fatalf("one-shot selection includes %s missing from incremental waves", a.ID)
		}
	}
}

func TestSelectionExcludesAppliancesOnTargetVersion(t *testing.T) {
	fleet := fleetOf(10)
	fleet[3].CurrentVersion = "2.0.0"
	fleet[7].CurrentVersion = "2.0.0"

	selected := selectAppliances(fleet, "rollout-a", "2.0.0", nil, 10)
	if len(selected) != 8 {
		t.Fatalf("selected %d, want 8", len(selected))
	}
	for _, a := range selected {
		if a.CurrentVersion == "2.0.0" {
			t.Fatalf("appliance %s already on target version was selected", a.ID)
		}
	}
}

func TestSelectionCountBounds(t *testing.T) {
	fleet := fleetOf(5)
	if got := selectAppliances(fleet, "r", "2.0.0", nil, 0); got != nil {
		t.Fatalf("count 0 selected %d", len(got))
	}
	if got := selectAppliances(fleet, "r", "2.0.0", nil, -3); got != nil {
		t.Fatalf("negative count selected %d", len(got))
	}
	if got := selectAppliances(fleet, "r", "2.0.0", nil, 50); len(got) != 5 {
		t.Fatalf("oversized count selected %d, want 5", len(got))
	}
}

func TestSelectionOrderVariesByRollout(t *testing.T) {
	fleet := fleetOf(100)
	a := ids(selectAppliances(fleet, "rollout-a", "2.0.0", nil, 20))
	b := ids(selectAppliances(fleet, "rollout-b", "2.0.0", nil, 20))
	if reflect.DeepEqual(a, b) {
		t.Fatal("different rollouts produced identical selection order")
	}
}
