// Package httpapi - JSON API сервиса и подписка на изменения по websocket.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/UkralStul/content-alchemy/internal/dataloader"
	"github.com/UkralStul/content-alchemy/internal/digest"
	"github.com/UkralStul/content-alchemy/internal/evergreen"
	"github.com/UkralStul/content-alchemy/internal/ideas"
	"github.com/UkralStul/content-alchemy/internal/lifecycle"
	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/UkralStul/content-alchemy/internal/strategy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server содержит все зависимости обработчиков.
type Server struct {
	Store     storage.Storage
	Posts     *lifecycle.Engine
	Evergreen *evergreen.Recycler
	Ideas     *ideas.Service
	Strategy  *strategy.Service
	Digest    *digest.Builder
	Observer  *notify.Observer
	Validator *schedule.Validator

	logger *slog.Logger
}

// NewServer проверяет зависимости и возвращает Server.
func NewServer(s Server, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
	if s.Observer == nil {
		s.Observer = notify.NewObserver(16)
	}
	return &s
}

// Router собирает chi-роутер.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/subscribe", s.subscribe)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Cache-Control", "no-store"))

		r.Route("/posts", func(r chi.Router) {
			r.With(dataloader.Middleware(s.Store)).Get("/", s.listPosts)
			r.Post("/", s.createPost)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getPost)
				r.Patch("/", s.updatePost)
				r.Delete("/", s.deletePost)
				r.Post("/schedule", s.schedulePost)
				r.Post("/backlog", s.returnToBacklog)
				r.Post("/publish", s.publishPost)
				r.Post("/archive", s.archivePost)
				r.Post("/restore", s.restorePost)
				r.Put("/lock", s.lockPost)
				r.Post("/evergreen", s.markEvergreen)
			})
		})

		r.Route("/evergreen", func(r chi.Router) {
			r.Get("/", s.listEligible)
			r.Post("/{id}/recycle", s.recyclePost)
			r.Post("/{id}/snooze", s.snoozePost)
			r.Post("/{id}/dismiss", s.dismissPost)
		})

		r.Route("/ideas", func(r chi.Router) {
			r.Get("/", s.listIdeas)
			r.Post("/", s.createIdea)
			r.Get("/stale", s.staleIdeas)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getIdea)
				r.Delete("/", s.deleteIdea)
				r.Put("/status", s.setIdeaStatus)
				r.Post("/favorite", s.toggleFavorite)
				r.Put("/resources", s.updateResources)
				r.Post("/posts", s.createIdeaPost)
			})
		})

		r.Route("/strategy", func(r chi.Router) {
			r.Get("/sets", s.listSets)
			r.Post("/sets", s.createSet)
			r.Post("/sets/{id}/activate", s.activateSet)
			r.Get("/sets/{id}/targets", s.listTargets)
			r.Put("/sets/{id}/targets/{pillar}", s.setTarget)
			r.Get("/sets/{id}/balance", s.setBalance)
			r.Get("/variance", s.varianceReport)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.getSettings)
			r.Patch("/", s.updateSettings)
			r.Put("/pillars", s.savePillar)
			r.Delete("/pillars/{id}", s.disablePillar)
		})

		r.Get("/digest", s.previewDigest)
	})

	return router
}

func (s *Server) publish(topic notify.Topic, action, id string, data any) {
	s.Observer.Publish(notify.Event{Topic: topic, Action: action, ID: id, Data: data})
}
