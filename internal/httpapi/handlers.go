package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// ProfileRequest names a profile.
type ProfileRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
}

// StartRequest starts a session with the profile's own strategy.
type StartRequest struct {
	ProfileID       string `json:"profile_id" validate:"required,uuid"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=15,max=1440"`
	Force           bool   `json:"force"`
}

// AutomationStartRequest is what a shortcut or widget sends.
type AutomationStartRequest struct {
	ProfileID       string `json:"profile_id" validate:"required,uuid"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

// DeepLinkRequest carries a universal link to toggle.
type DeepLinkRequest struct {
	URL string `json:"url" validate:"required"`
}

// UIView describes a pending custom flow.
type UIView struct {
	View      strategy.View `json:"view"`
	ProfileID string        `json:"profile_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// OutcomeView is the JSON form of a strategy outcome.
type OutcomeView struct {
	Kind    string          `json:"kind"`
	Session *domain.Session `json:"session,omitempty"`
	Profile *domain.Profile `json:"profile,omitempty"`
	UI      *UIView         `json:"ui,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`
	Message string          `json:"message,omitempty"`
}

// StatusView is the reply of GET /status.
type StatusView struct {
	Active    bool                  `json:"active"`
	OnBreak   bool                  `json:"on_break"`
	Session   *domain.Session       `json:"session,omitempty"`
	Profile   *domain.Profile       `json:"profile,omitempty"`
	Elapsed   string                `json:"elapsed,omitempty"`
	Quota     domain.EmergencyQuota `json:"quota"`
	PendingUI *UIView               `json:"pending_ui,omitempty"`
	Error     string                `json:"error,omitempty"`
}

func uiView(ui *strategy.CustomUI) *UIView {
	if ui == nil {
		return nil
	}
	return &UIView{View: ui.View, ProfileID: ui.ProfileID, SessionID: ui.SessionID, Message: ui.Message}
}

func outcomeView(out strategy.Outcome) OutcomeView {
	v := OutcomeView{Session: out.Session, Profile: out.Profile, UI: uiView(out.UI)}
	if out.Kind != 0 {
		v.Kind = out.Kind.String()
	}
	return v
}

func automationView(res usecase.AutomationResult) OutcomeView {
	v := outcomeView(res.Outcome)
	v.Skipped = res.Skipped
	v.Message = res.Message
	return v
}

// refresh absorbs background writes before acting on the session.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) bool {
	if _, err := s.coord.LoadActiveSession(r.Context()); err != nil {
		s.failErr(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.ok(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	q, err := s.coord.Quota(r.Context())
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	sess, prof := s.coord.Current()
	v := StatusView{
		Active:    sess != nil,
		Session:   sess,
		Profile:   prof,
		Quota:     q,
		PendingUI: uiView(s.coord.PendingUI()),
		Error:     s.coord.ErrorMessage(),
	}
	if sess != nil {
		v.OnBreak = sess.IsOnBreak()
		v.Elapsed = sess.Elapsed(time.Now()).Round(time.Second).String()
	}
	s.ok(w, http.StatusOK, v)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decode(r, &req, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	if !s.refresh(w, r) {
		return
	}
	out, err := s.coord.Toggle(r.Context(), req.ProfileID)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, outcomeView(out))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decode(r, &req, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	if !s.refresh(w, r) {
		return
	}
	out, err := s.coord.Start(r.Context(), req.ProfileID, usecase.StartOptions{
		Duration: time.Duration(req.DurationMinutes) * time.Minute,
		Force:    req.Force,
	})
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, outcomeView(out))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	out, err := s.coord.Stop(r.Context())
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, outcomeView(out))
}

func (s *Server) handleBreak(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	if err := s.coord.ToggleBreak(r.Context()); err != nil {
		s.failErr(w, r, err)
		return
	}
	sess, _ := s.coord.Current()
	s.ok(w, http.StatusOK, map[string]interface{}{
		"session":  sess,
		"on_break": sess != nil && sess.IsOnBreak(),
	})
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	q, err := s.coord.EmergencyOverride(r.Context())
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, q)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var in usecase.CustomUIInput
	if err := decode(r, &in, true); err != nil {
		s.failErr(w, r, err)
		return
	}
	out, err := s.coord.ResolveCustomUI(r.Context(), in)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, outcomeView(out))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.failErr(w, r, domain.Validation("http.sessions", "limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	sessions, err := s.coord.ListSessions(r.Context(), r.URL.Query().Get("profile_id"), limit)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	s.ok(w, http.StatusOK, sessions)
}

func (s *Server) handleAutomationStart(w http.ResponseWriter, r *http.Request) {
	var req AutomationStartRequest
	if err := decode(r, &req, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	res, err := s.coord.StartFromAutomation(r.Context(), req.ProfileID, req.DurationMinutes)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, automationView(res))
}

func (s *Server) handleAutomationStop(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decode(r, &req, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	res, err := s.coord.StopFromAutomation(r.Context(), req.ProfileID)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, automationView(res))
}

func (s *Server) handleDeepLink(w http.ResponseWriter, r *http.Request) {
	var req DeepLinkRequest
	if err := decode(r, &req, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	res, err := s.coord.ToggleSessionFromDeepLink(r.Context(), req.URL)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, automationView(res))
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ps, err := s.coord.ListProfiles(r.Context())
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	if ps == nil {
		ps = []domain.Profile{}
	}
	s.ok(w, http.StatusOK, ps)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.coord.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, p)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p domain.Profile
	if err := decode(r, &p, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	saved, err := s.coord.SaveProfile(r.Context(), p)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusCreated, saved)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p domain.Profile
	if err := decode(r, &p, false); err != nil {
		s.failErr(w, r, err)
		return
	}
	p.ID = chi.URLParam(r, "id")
	saved, err := s.coord.SaveProfile(r.Context(), p)
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DeleteProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.failErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	rep, err := s.coord.CleanupGhostSchedules(r.Context())
	if err != nil {
		s.failErr(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]interface{}{
		"cancelled": names(rep.Cancelled),
		"kept":      names(rep.Kept),
		"skipped":   names(rep.Skipped),
	})
}

func names(ns []domain.ActivityName) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.String())
	}
	return out
}
