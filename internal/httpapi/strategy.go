package httpapi

import (
	"net/http"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/UkralStul/content-alchemy/internal/strategy"
	"github.com/UkralStul/content-alchemy/internal/variance"
	"github.com/go-chi/chi/v5"
)

type createSetRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type targetRequest struct {
	Percentage *float64 `json:"percentage" validate:"required"`
}

type settingsRequest struct {
	RepurposeCycle      *int                    `json:"repurposeCycle" validate:"omitempty,gte=1"`
	RepurposeSnoozeDays *int                    `json:"repurposeSnoozeDays" validate:"omitempty,gte=1"`
	StaleIdeaDays       *int                    `json:"staleIdeaDays" validate:"omitempty,gte=1"`
	DigestRecipients    []string                `json:"digestRecipients" validate:"omitempty,dive,email"`
	Lanes               []domain.LaneVisibility `json:"lanes"`
}

type pillarRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required,max=100"`
	Color  string `json:"color" validate:"omitempty,hexcolor"`
	Active *bool  `json:"active"`
}

func (s *Server) listSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.Strategy.Sets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) createSet(w http.ResponseWriter, r *http.Request) {
	var req createSetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := s.Strategy.CreateSet(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicStrategy, "set_created", set.ID, set)
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) activateSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.Strategy.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicStrategy, "set_activated", set.ID, set)
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.Strategy.Targets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := s.Strategy.SetTarget(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pillar"), *req.Percentage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicStrategy, "target_set", target.Key(), target)
	writeJSON(w, http.StatusOK, target)
}

func (s *Server) setBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.Strategy.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) varianceReport(w http.ResponseWriter, r *http.Request) {
	window, err := variance.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.Strategy.Variance(r.Context(), window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Strategy.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	settings, err := s.Strategy.UpdateSettings(r.Context(), strategy.SettingsPatch{
		RepurposeCycle:      req.RepurposeCycle,
		RepurposeSnoozeDays: req.RepurposeSnoozeDays,
		StaleIdeaDays:       req.StaleIdeaDays,
		DigestRecipients:    req.DigestRecipients,
		Lanes:               req.Lanes,
	})
	s.respondSettings(w, r, "updated", settings, err)
}

func (s *Server) savePillar(w http.ResponseWriter, r *http.Request) {
	var req pillarRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	settings, err := s.Strategy.SavePillar(r.Context(), domain.Pillar{ID: req.ID, Name: req.Name, Color: req.Color, Active: active})
	s.respondSettings(w, r, "pillar_saved", settings, err)
}

func (s *Server) disablePillar(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Strategy.DisablePillar(r.Context(), chi.URLParam(r, "id"))
	s.respondSettings(w, r, "pillar_disabled", settings, err)
}

func (s *Server) respondSettings(w http.ResponseWriter, r *http.Request, action string, settings *domain.Settings, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicSettings, action, settings.ID, settings)
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) previewDigest(w http.ResponseWriter, r *http.Request) {
	d, err := s.Digest.Build(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
