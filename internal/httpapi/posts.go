package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/UkralStul/content-alchemy/internal/dataloader"
	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/lifecycle"
	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/go-chi/chi/v5"
)

type createPostRequest struct {
	IdeaID           *string       `json:"ideaId"`
	Platform         string        `json:"platform" validate:"required"`
	PostType         string        `json:"postType" validate:"max=50"`
	PostTitle        string        `json:"postTitle" validate:"max=255"`
	Content          string        `json:"content"`
	ActionNotes      string        `json:"actionNotes"`
	DefinitivePillar string        `json:"definitivePillar" validate:"max=100"`
	Media            *domain.Media `json:"media"`
	IsEvergreen      bool          `json:"isEvergreen"`
}

func (req createPostRequest) input() lifecycle.PostInput {
	return lifecycle.PostInput{
		Platform:         domain.Platform(strings.ToLower(req.Platform)),
		PostType:         req.PostType,
		PostTitle:        req.PostTitle,
		Content:          req.Content,
		ActionNotes:      req.ActionNotes,
		DefinitivePillar: req.DefinitivePillar,
		Media:            req.Media,
		IsEvergreen:      req.IsEvergreen,
	}
}

type updatePostRequest struct {
	Platform         *string       `json:"platform"`
	PostType         *string       `json:"postType" validate:"omitempty,max=50"`
	PostTitle        *string       `json:"postTitle" validate:"omitempty,max=255"`
	Content          *string       `json:"content"`
	ActionNotes      *string       `json:"actionNotes"`
	DefinitivePillar *string       `json:"definitivePillar" validate:"omitempty,max=100"`
	Media            *domain.Media `json:"media"`
	ClearMedia       bool          `json:"clearMedia"`
}

type scheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time"`
}

type lockRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// ideaSummary - идея, встроенная в пост при expand=idea.
type ideaSummary struct {
	ID         string            `json:"id"`
	IdeaNumber int64             `json:"ideaNumber"`
	Title      string            `json:"title"`
	Status     domain.IdeaStatus `json:"status"`
}

type postView struct {
	*domain.Post
	Idea *ideaSummary `json:"idea,omitempty"`
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := s.postFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	posts, err := s.Posts.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]postView, len(posts))
	for i, p := range posts {
		views[i] = postView{Post: p}
	}
	if r.URL.Query().Get("expand") == "idea" {
		if loaders := dataloader.For(r.Context()); loaders != nil {
			byID, err := loaders.IdeasFor(r.Context(), posts)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			for i, p := range posts {
				if p.IsDirectEntry() {
					continue
				}
				if idea, ok := byID[*p.IdeaID]; ok {
					views[i].Idea = &ideaSummary{ID: idea.ID, IdeaNumber: idea.IdeaNumber, Title: idea.Title, Status: idea.Status}
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) postFilter(r *http.Request) (storage.PostFilter, error) {
	q := r.URL.Query()
	var f storage.PostFilter

	if raw := q.Get("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			status := domain.PostStatus(strings.TrimSpace(st))
			switch status {
			case domain.PostDraft, domain.PostScheduled, domain.PostPublished, domain.PostArchived:
				f.Statuses = append(f.Statuses, status)
			default:
				return f, domain.NewValidationError("status", "unknown status %q", st)
			}
		}
	}
	if id := q.Get("ideaId"); id != "" {
		f.IdeaID = &id
	}
	if raw := q.Get("from"); raw != "" {
		from, err := s.Validator.ParseDate(raw)
		if err != nil {
			return f, err
		}
		f.PublishedFrom = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := s.Validator.ParseDate(raw)
		if err != nil {
			return f, err
		}
		end := s.Validator.AddDays(to, 1).Add(-1)
		f.PublishedTo = &end
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(field, "must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		post *domain.Post
		err  error
	)
	if req.IdeaID != nil && *req.IdeaID != "" {
		post, err = s.Posts.CreateForIdea(r.Context(), *req.IdeaID, req.input())
	} else {
		post, err = s.Posts.CreateDirect(r.Context(), req.input())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicPosts, "created", post.ID, post)
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) createIdeaPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := s.Posts.CreateForIdea(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicPosts, "created", post.ID, post)
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.Posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch := lifecycle.ContentPatch{
		PostType:         req.PostType,
		PostTitle:        req.PostTitle,
		Content:          req.Content,
		ActionNotes:      req.ActionNotes,
		DefinitivePillar: req.DefinitivePillar,
		Media:            req.Media,
		ClearMedia:       req.ClearMedia,
	}
	if req.Platform != nil {
		p := domain.Platform(strings.ToLower(*req.Platform))
		patch.Platform = &p
	}
	s.respondPost(w, r, "updated")(s.Posts.UpdateContent(r.Context(), chi.URLParam(r, "id"), patch))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Posts.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(notify.TopicPosts, "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) schedulePost(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := s.Validator.ParseDate(req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPost(w, r, "scheduled")(s.Posts.Schedule(r.Context(), chi.URLParam(r, "id"), date, req.Time))
}

func (s *Server) returnToBacklog(w http.ResponseWriter, r *http.Request) {
	s.respondPost(w, r, "returned_to_backlog")(s.Posts.ReturnToBacklog(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) publishPost(w http.ResponseWriter, r *http.Request) {
	s.respondPost(w, r, "published")(s.Posts.Publish(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) archivePost(w http.ResponseWriter, r *http.Request) {
	s.respondPost(w, r, "archived")(s.Posts.Archive(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) restorePost(w http.ResponseWriter, r *http.Request) {
	s.respondPost(w, r, "restored")(s.Posts.Restore(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) lockPost(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPost(w, r, "locked")(s.Posts.SetLocked(r.Context(), chi.URLParam(r, "id"), *req.Locked))
}

func (s *Server) markEvergreen(w http.ResponseWriter, r *http.Request) {
	s.respondPost(w, r, "evergreen")(s.Posts.SetEvergreen(r.Context(), chi.URLParam(r, "id")))
}

// respondPost пишет результат операции над постом и уведомляет подписчиков.
func (s *Server) respondPost(w http.ResponseWriter, r *http.Request, action string) func(*domain.Post, error) {
	return func(post *domain.Post, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.publish(notify.TopicPosts, action, post.ID, post)
		writeJSON(w, http.StatusOK, post)
	}
}
