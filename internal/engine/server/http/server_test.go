package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/service"
	"github.com/fleetwarden/fleetwarden/internal/engine/sqlite"
	"github.com/fleetwarden/fleetwarden/pkg/log"
	"github.com/fleetwarden/fleetwarden/pkg/options"
)

type nullChannel struct{}

func (nullChannel) Send(context.Context, string, core.Order) error { return nil }

func newTestAPI(t *testing.T, ready func() bool) (*httptest.Server, *service.Service) {
	t.Helper()
	store := sqlite.OpenTestStore(t)
	svc := service.NewService(store, nullChannel{}, nil, service.Config{}, nil)
	srv := NewServer(options.NewHttpOptions(), svc, ready, log.NewNopLogger())
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, svc
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, out.Bytes()
}

func createRelease(t *testing.T, ts *httptest.Server, version string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/fleet/releases", map[string]any{
		"version":     version,
		"artifactUrl": "images/fw-" + version + ".img",
		"checksum":    "sha256:abc",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create release: status %d, body %s", resp.StatusCode, body)
	}
}

func activateRelease(t *testing.T, ts *httptest.Server, version string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/fleet/releases/"+version+"/activate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate release: status %d, body %s", resp.StatusCode, body)
	}
}

func seedAppliances(t *testing.T, svc *service.Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := svc.HandleCheckin(context.Background(), core.Checkin{
			ApplianceID: fmt.Sprintf("app-%03d", i),
			Version:     "1.0.0",
		})
		if err != nil {
			t.Fatalf("seed appliance: %v", err)
		}
	}
}

func TestReleaseLifecycleOverREST(t *testing.T) {
	ts, _ := newTestAPI(t, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/fleet/releases", map[string]any{
		"version":     "2.1.0",
		"artifactUrl": "images/fw-2.1.0.img",
		"checksum":    "sha256:abc",
		"notes":       "march maintenance release",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create release: status %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		Version string `json:"version"`
		Active  bool   `json:"active"`
		Latest  bool   `json:"latest"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Version != "2.1.0" || created.Active || created.Latest {
		t.Fatalf("new release should be inactive and not latest: %+v", created)
	}

	activateRelease(t, ts, "2.1.0")

	resp, body = doJSON(t, http.MethodPut, ts.URL+"/fleet/releases/2.1.0/latest", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set latest: status %d, body %s", resp.StatusCode, body)
	}
	var latest struct {
		Latest bool `json:"latest"`
	}
	if err := json.Unmarshal(body, &latest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !latest.Latest {
		t.Fatalf("latest marker not set: %s", body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/fleet/releases?active=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list releases: status %d", resp.StatusCode)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("active releases = %d, want 1", len(list))
	}
}

func TestDuplicateReleaseConflicts(t *testing.T) {
	ts, _ := newTestAPI(t, nil)
	createRelease(t, ts, "2.1.0")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/fleet/releases", map[string]any{
		"version":     "2.1.0",
		"artifactUrl": "images/other.img",
		"checksum":    "sha256:def",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate release: status %d, want 409", resp.StatusCode)
	}
}

func TestCreateRolloutByReleaseVersion(t *testing.T) {
	ts, svc := newTestAPI(t, nil)
	createRelease(t, ts, "2.1.0")
	activateRelease(t, ts, "2.1.0")
	seedAppliances(t, svc, 20)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts", map[string]any{
		"releaseVersion": "2.1.0",
		"plan": map[string]any{
			"strategy":         "canary",
			"stages":           []map[string]any{{"percent": 10, "delayHours": 24}, {"percent": 100}},
			"failureThreshold": 10,
			"autoRollback":     true,
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rollout: status %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		FleetSize int    `json:"fleetSize"`
		Progress  struct {
			Targeted           int     `json:"targeted"`
			SuccessRate        float64 `json:"successRate"`
			CompletionFraction float64 `json:"completionFraction"`
		} `json:"progress"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Status != "scheduled" || created.FleetSize != 20 {
		t.Fatalf("new rollout = %+v", created)
	}
	if created.Progress.Targeted != 0 || created.Progress.SuccessRate != 1 {
		t.Fatalf("fresh rollout progress = %+v", created.Progress)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/fleet/rollouts/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get rollout: status %d, body %s", resp.StatusCode, body)
	}
}

func TestCreateRolloutRejectsBadRequests(t *testing.T) {
	ts, _ := newTestAPI(t, nil)
	createRelease(t, ts, "2.1.0")
	activateRelease(t, ts, "2.1.0")

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "invalid plan",
			body: map[string]any{
				"releaseVersion": "2.1.0",
				"plan": map[string]any{
					"strategy": "canary",
					"stages":   []map[string]any{{"percent": 50}, {"percent": 30}},
				},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown release version",
			body: map[string]any{
				"releaseVersion": "9.9.9",
				"plan":           map[string]any{"strategy": "immediate"},
			},
			want: http.StatusNotFound,
		},
		{
			name: "unknown request field",
			body: map[string]any{
				"releaseVersion": "2.1.0",
				"plan":           map[string]any{"strategy": "immediate"},
				"bogus":          true,
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts", tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status %d, want %d, body %s", resp.StatusCode, tc.want, body)
			}
		})
	}
}

func TestRolloutActionErrorMapping(t *testing.T) {
	ts, svc := newTestAPI(t, nil)
	createRelease(t, ts, "2.1.0")
	activateRelease(t, ts, "2.1.0")
	seedAppliances(t, svc, 5)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts", map[string]any{
		"releaseVersion": "2.1.0",
		"plan":           map[string]any{"strategy": "immediate"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rollout: status %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// A scheduled rollout cannot be paused.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts/"+created.ID+"/pause", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pause scheduled rollout: status %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/fleet/rollouts/ro-missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown rollout: status %d, want 404", resp.StatusCode)
	}

	// Force-advance starts the rollout and dispatches the full fleet.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts/"+created.ID+"/advance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance rollout: status %d, body %s", resp.StatusCode, body)
	}
	var advanced struct {
		Status   string `json:"status"`
		Progress struct {
			Targeted int `json:"targeted"`
		} `json:"progress"`
	}
	if err := json.Unmarshal(body, &advanced); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if advanced.Status != "in_progress" || advanced.Progress.Targeted != 5 {
		t.Fatalf("advanced rollout = %+v", advanced)
	}

	// After cancellation every further action conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts/"+created.ID+"/cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel rollout: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/fleet/rollouts/"+created.ID+"/resume", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("resume cancelled rollout: status %d, want 409", resp.StatusCode)
	}
}

func TestFleetEndpoints(t *testing.T) {
	ts, svc := newTestAPI(t, nil)
	seedAppliances(t, svc, 3)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/fleet/appliances", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list appliances: status %d", resp.StatusCode)
	}
	var appliances []struct {
		ID             string `json:"id"`
		CurrentVersion string `json:"currentVersion"`
	}
	if err := json.Unmarshal(body, &appliances); err != nil {
		t.Fatalf("decode appliances: %v", err)
	}
	if len(appliances) != 3 || appliances[0].CurrentVersion != "1.0.0" {
		t.Fatalf("appliances = %+v", appliances)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/fleet/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fleet stats: status %d", resp.StatusCode)
	}
	var stats struct {
		Appliances        int            `json:"appliances"`
		Versions          map[string]int `json:"versions"`
		ActiveRollouts    int            `json:"activeRollouts"`
		RecentSuccessRate float64        `json:"recentSuccessRate"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Appliances != 3 || stats.Versions["1.0.0"] != 3 || stats.ActiveRollouts != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.RecentSuccessRate != 1 {
		t.Fatalf("recent success rate with no history = %v, want 1", stats.RecentSuccessRate)
	}
}

func TestReadinessGate(t *testing.T) {
	ready := false
	ts, _ := newTestAPI(t, func() bool { return ready })

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before startup: status %d, want 503", resp.StatusCode)
	}
	ready = true
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz after startup: status %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d, want 200", resp.StatusCode)
	}
}
