package httpapi

import (
	"net/http"
	"strconv"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/ideas"
	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/go-chi/chi/v5"
)

type resourcePayload struct {
	Label    string `json:"label"`
	URI      string `json:"uri" validate:"required"`
	MimeType string `json:"mimeType"`
}

type createIdeaRequest struct {
	Title     string            `json:"title" validate:"required,max=255"`
	Concept   string            `json:"concept"`
	Pillar    string            `json:"pillar" validate:"max=100"`
	AudioMemo string            `json:"audioMemo"`
	Resources []resourcePayload `json:"resources" validate:"dive"`
}

type ideaStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=incubating ready completed"`
}

type resourcesRequest struct {
	Resources []resourcePayload `json:"resources" validate:"dive"`
}

func resourceInputs(in []resourcePayload) []ideas.ResourceInput {
	out := make([]ideas.ResourceInput, len(in))
	for i, r := range in {
		out[i] = ideas.ResourceInput{Label: r.Label, URI: r.URI, MimeType: r.MimeType}
	}
	return out
}

func (s *Server) listIdeas(w http.ResponseWriter, r *http.Request) {
	list, err := s.Ideas.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createIdea(w http.ResponseWriter, r *http.Request) {
	var req createIdeaRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	idea, err := s.Ideas.Create(r.Context(), ideas.Input{
		Title:     req.Title,
		Concept:   req.Concept,
		Pillar:    req.Pillar,
		AudioMemo: req.AudioMemo,
		Resources: resourceInputs(req.Resources),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicIdeas, "created", idea.ID, idea)
	writeJSON(w, http.StatusCreated, idea)
}

func (s *Server) getIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := s.Ideas.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idea)
}

func (s *Server) deleteIdea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Ideas.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicIdeas, "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setIdeaStatus(w http.ResponseWriter, r *http.Request) {
	var req ideaStatusRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondIdea(w, r, "status")(s.Ideas.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.IdeaStatus(req.Status)))
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	s.respondIdea(w, r, "favorite")(s.Ideas.ToggleFavorite(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) updateResources(w http.ResponseWriter, r *http.Request) {
	var req resourcesRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondIdea(w, r, "resources")(s.Ideas.UpdateResources(r.Context(), chi.URLParam(r, "id"), resourceInputs(req.Resources)))
}

func (s *Server) staleIdeas(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, domain.NewValidationError("days", "must be a positive integer, got %q", raw))
			return
		}
		days = n
	} else {
		settings, err := s.Store.GetSettings(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		days = settings.StaleIdeaDays
	}
	list, err := s.Ideas.Stale(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Idea{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) respondIdea(w http.ResponseWriter, r *http.Request, action string) func(*domain.Idea, error) {
	return func(idea *domain.Idea, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.publish(notify.TopicIdeas, action, idea.ID, idea)
		writeJSON(w, http.StatusOK, idea)
	}
}
