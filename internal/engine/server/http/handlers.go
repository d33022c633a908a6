package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/service"
)

type releaseResponse struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	ArtifactURL  string    `json:"artifactUrl"`
	Checksum     string    `json:"checksum"`
	AgentVersion string    `json:"agentVersion,omitempty"`
	SizeBytes    int64     `json:"sizeBytes,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Active       bool      `json:"active"`
	Latest       bool      `json:"latest"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toReleaseResponse(rel *model.Release) releaseResponse {
	return releaseResponse{
		ID:           rel.ID,
		Version:      rel.Version,
		ArtifactURL:  rel.ArtifactURL,
		Checksum:     rel.Checksum,
		AgentVersion: rel.AgentVersion,
		SizeBytes:    rel.SizeBytes,
		Notes:        rel.Notes,
		Active:       rel.Active,
		Latest:       rel.Latest,
		CreatedAt:    rel.CreatedAt,
	}
}

type progressResponse struct {
	Pending            int     `json:"pending"`
	InProgress         int     `json:"inProgress"`
	Succeeded          int     `json:"succeeded"`
	Failed             int     `json:"failed"`
	RolledBack         int     `json:"rolledBack"`
	Targeted           int     `json:"targeted"`
	CompletionFraction float64 `json:"completionFraction"`
	SuccessRate        float64 `json:"successRate"`
}

type rolloutResponse struct {
	ID            string           `json:"id"`
	ReleaseID     string           `json:"releaseId"`
	Plan          model.Plan       `json:"plan"`
	Status        string           `json:"status"`
	CurrentStage  int              `json:"currentStage"`
	FleetSize     int              `json:"fleetSize"`
	NextAdvanceAt *time.Time       `json:"nextAdvanceAt,omitempty"`
	StartedAt     *time.Time       `json:"startedAt,omitempty"`
	PausedAt      *time.Time       `json:"pausedAt,omitempty"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	Progress      progressResponse `json:"progress"`
}

func toRolloutResponse(p *service.RolloutProgress) rolloutResponse {
	r := p.Rollout
	return rolloutResponse{
		ID:            r.ID,
		ReleaseID:     r.ReleaseID,
		Plan:          r.Plan,
		Status:        string(r.Status),
		CurrentStage:  r.CurrentStage,
		FleetSize:     r.FleetSize,
		NextAdvanceAt: r.NextAdvanceAt,
		StartedAt:     r.StartedAt,
		PausedAt:      r.PausedAt,
		CompletedAt:   r.CompletedAt,
		CreatedAt:     r.CreatedAt,
		Progress: progressResponse{
			Pending:            p.Counts.Pending,
			InProgress:         p.Counts.InProgress,
			Succeeded:          p.Counts.Succeeded,
			Failed:             p.Counts.Failed,
			RolledBack:         p.Counts.RolledBack,
			Targeted:           p.Counts.Total(),
			CompletionFraction: p.CompletionFraction,
			SuccessRate:        p.SuccessRate,
		},
	}
}

type recordResponse struct {
	ID               string     `json:"id"`
	ApplianceID      string     `json:"applianceId"`
	Stage            int        `json:"stage"`
	TargetVersion    string     `json:"targetVersion"`
	Status           string     `json:"status"`
	OrderID          string     `json:"orderId,omitempty"`
	DispatchAttempts int        `json:"dispatchAttempts"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	DispatchedAt     time.Time  `json:"dispatchedAt"`
}

func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	releases, err := s.svc.ListReleases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	out := make([]releaseResponse, 0, len(releases))
	for _, rel := range releases {
		if activeOnly && !rel.Active {
			continue
		}
		out = append(out, toReleaseResponse(rel))
	}
	writeJSON(w, http.StatusOK, out)
}

type createReleaseRequest struct {
	Version      string `json:"version"`
	ArtifactURL  string `json:"artifactUrl"`
	Checksum     string `json:"checksum"`
	AgentVersion string `json:"agentVersion"`
	SizeBytes    int64  `json:"sizeBytes"`
	Notes        string `json:"notes"`
}

func (s *Server) handleCreateRelease(w http.ResponseWriter, r *http.Request) {
	var req createReleaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err))
		return
	}
	rel, err := s.svc.RegisterRelease(r.Context(), service.RegisterReleaseInput{
		Version:      req.Version,
		ArtifactURL:  req.ArtifactURL,
		Checksum:     req.Checksum,
		AgentVersion: req.AgentVersion,
		SizeBytes:    req.SizeBytes,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReleaseResponse(rel))
}

func (s *Server) releaseByVersion(w http.ResponseWriter, r *http.Request) (*model.Release, bool) {
	rel, err := s.svc.GetReleaseByVersion(r.Context(), mux.Vars(r)["version"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return rel, true
}

func (s *Server) handleSetLatest(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.releaseByVersion(w, r)
	if !ok {
		return
	}
	rel, err := s.svc.MarkLatest(r.Context(), rel.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseResponse(rel))
}

func (s *Server) handleActivateRelease(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.releaseByVersion(w, r)
	if !ok {
		return
	}
	rel, err := s.svc.ActivateRelease(r.Context(), rel.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseResponse(rel))
}

func (s *Server) handleDeactivateRelease(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.releaseByVersion(w, r)
	if !ok {
		return
	}
	rel, err := s.svc.DeactivateRelease(r.Context(), rel.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseResponse(rel))
}

type createRolloutRequest struct {
	ReleaseID      string     `json:"releaseId"`
	ReleaseVersion string     `json:"releaseVersion"`
	Plan           model.Plan `json:"plan"`
}

func (s *Server) handleCreateRollout(w http.ResponseWriter, r *http.Request) {
	var req createRolloutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err))
		return
	}
	releaseID := req.ReleaseID
	if releaseID == "" && req.ReleaseVersion != "" {
		rel, err := s.svc.GetReleaseByVersion(r.Context(), req.ReleaseVersion)
		if err != nil {
			writeError(w, err)
			return
		}
		releaseID = rel.ID
	}
	rollout, err := s.svc.CreateRollout(r.Context(), service.CreateRolloutInput{
		ReleaseID: releaseID,
		Plan:      req.Plan,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	progress, err := s.svc.GetProgress(r.Context(), rollout.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRolloutResponse(progress))
}

func (s *Server) handleListRollouts(w http.ResponseWriter, r *http.Request) {
	rollouts, err := s.svc.ListRollouts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]rolloutResponse, 0, len(rollouts))
	for _, ro := range rollouts {
		progress, err := s.svc.GetProgress(r.Context(), ro.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, toRolloutResponse(progress))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRollout(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.GetProgress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRolloutResponse(progress))
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ListRecords(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse{
			ID:               rec.ID,
			ApplianceID:      rec.ApplianceID,
			Stage:            rec.Stage,
			TargetVersion:    rec.TargetVersion,
			Status:           string(rec.Status),
			OrderID:          rec.OrderID,
			DispatchAttempts: rec.DispatchAttempts,
			ResolvedAt:       rec.ResolvedAt,
			Reason:           rec.Reason,
			DispatchedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) rolloutAction(w http.ResponseWriter, r *http.Request, fn func() (*model.Rollout, error)) {
	ro, err := fn()
	if err != nil {
		writeError(w, err)
		return
	}
	progress, err := s.svc.GetProgress(r.Context(), ro.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRolloutResponse(progress))
}

func (s *Server) handlePauseRollout(w http.ResponseWriter, r *http.Request) {
	s.rolloutAction(w, r, func() (*model.Rollout, error) {
		return s.svc.PauseRollout(r.Context(), mux.Vars(r)["id"])
	})
}

func (s *Server) handleResumeRollout(w http.ResponseWriter, r *http.Request) {
	s.rolloutAction(w, r, func() (*model.Rollout, error) {
		return s.svc.ResumeRollout(r.Context(), mux.Vars(r)["id"])
	})
}

func (s *Server) handleCancelRollout(w http.ResponseWriter, r *http.Request) {
	s.rolloutAction(w, r, func() (*model.Rollout, error) {
		return s.svc.CancelRollout(r.Context(), mux.Vars(r)["id"])
	})
}

func (s *Server) handleAdvanceRollout(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.ForceAdvanceRollout(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	progress, err := s.svc.GetProgress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRolloutResponse(progress))
}

type applianceResponse struct {
	ID             string     `json:"id"`
	CurrentVersion string     `json:"currentVersion"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
}

func (s *Server) handleListAppliances(w http.ResponseWriter, r *http.Request) {
	appliances, err := s.svc.ListAppliances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]applianceResponse, 0, len(appliances))
	for _, a := range appliances {
		resp := applianceResponse{ID: a.ID, CurrentVersion: a.CurrentVersion}
		if !a.LastSeenAt.IsZero() {
			t := a.LastSeenAt
			resp.LastSeenAt = &t
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

type fleetStatsResponse struct {
	Appliances         int            `json:"appliances"`
	Versions           map[string]int `json:"versions"`
	ActiveRollouts     int            `json:"activeRollouts"`
	InProgressRollouts int            `json:"inProgressRollouts"`
	PausedRollouts     int            `json:"pausedRollouts"`
	RecentSuccessRate  float64        `json:"recentSuccessRate"`
}

func (s *Server) handleFleetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetFleetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fleetStatsResponse{
		Appliances:         stats.Appliances,
		Versions:           stats.Versions,
		ActiveRollouts:     stats.ActiveRollouts,
		InProgressRollouts: stats.InProgressRollouts,
		PausedRollouts:     stats.PausedRollouts,
		RecentSuccessRate:  stats.RecentSuccessRate,
	})
}
