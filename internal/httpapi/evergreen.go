package httpapi

import (
	"net/http"

	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/go-chi/chi/v5"
)

type recycleRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time"`
}

type snoozeRequest struct {
	Days *int `json:"days" validate:"omitempty,gte=1"`
}

func (s *Server) listEligible(w http.ResponseWriter, r *http.Request) {
	posts, err := s.Evergreen.Eligible(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) recyclePost(w http.ResponseWriter, r *http.Request) {
	var req recycleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := s.Validator.ParseDate(req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Evergreen.Recycle(r.Context(), chi.URLParam(r, "id"), target, req.Time)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicPosts, "created", res.Clone.ID, res.Clone)
	s.publish(notify.TopicPosts, "recycled", res.Source.ID, res.Source)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) snoozePost(w http.ResponseWriter, r *http.Request) {
	var req snoozeRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.respondPost(w, r, "snoozed")(s.Evergreen.Snooze(r.Context(), chi.URLParam(r, "id"), req.Days))
}

func (s *Server) dismissPost(w http.ResponseWriter, r *http.Request) {
	s.respondPost(w, r, "dismissed")(s.Evergreen.Dismiss(r.Context(), chi.URLParam(r, "id")))
}
