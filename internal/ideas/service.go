// Package ideas управляет банком идей.
package ideas

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/UkralStul/content-alchemy/internal/allocator"
	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/storage"
)

// Input - поля новой идеи.
type Input struct {
	Title     string
	Concept   string
	Pillar    string
	AudioMemo string
	Resources []ResourceInput
}

// ResourceInput - материал без типа; тип определяется по MIME или расширению.
type ResourceInput struct {
	Label    string
	URI      string
	MimeType string
}

// Service выполняет операции над идеями.
type Service struct {
	store  storage.Storage
	alloc  *allocator.Allocator
	now    func() time.Time
	logger *slog.Logger
}

// New создает Service. nil now означает time.Now.
func New(store storage.Storage, alloc *allocator.Allocator, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, alloc: alloc, now: now, logger: logger}
}

// Get возвращает идею по id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Idea, error) {
	return s.store.GetIdea(ctx, id)
}

// List возвращает идеи по убыванию номера.
func (s *Service) List(ctx context.Context) ([]*domain.Idea, error) {
	ideas, err := s.store.ListIdeas(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(ideas, func(i, j int) bool { return ideas[i].IdeaNumber > ideas[j].IdeaNumber })
	return ideas, nil
}

// Create сохраняет идею в статусе incubating со следующим номером.
func (s *Service) Create(ctx context.Context, in Input) (*domain.Idea, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	idea, err := s.alloc.CreateIdea(ctx, &domain.Idea{
		Title:       title,
		Concept:     in.Concept,
		Pillar:      settings.PillarID(strings.TrimSpace(in.Pillar)),
		AudioMemo:   in.AudioMemo,
		Status:      domain.IdeaIncubating,
		Resources:   classify(in.Resources),
		CreatedDate: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("idea created", "idea_id", idea.ID, "idea_number", idea.IdeaNumber)
	return idea, nil
}

func classify(in []ResourceInput) []domain.Resource {
	out := make([]domain.Resource, 0, len(in))
	for _, r := range in {
		uri := strings.TrimSpace(r.URI)
		if uri == "" {
			continue
		}
		label := r.Label
		if label == "" {
			label = uri
		}
		out = append(out, domain.Resource{Type: domain.ClassifyResource(uri, r.MimeType), Label: label, URI: uri})
	}
	return out
}

func (s *Service) mutate(ctx context.Context, id string, fn func(i *domain.Idea) error) (idea *domain.Idea, err error) {
	err = s.store.RunInTx(ctx, func(tx storage.Tx) error {
		i, err := tx.GetIdea(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(i); err != nil {
			return err
		}
		idea, err = tx.UpdateIdea(ctx, i)
		return err
	})
	return idea, err
}

// SetStatus меняет статус идеи.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.IdeaStatus) (*domain.Idea, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown idea status %q", status)
	}
	return s.mutate(ctx, id, func(i *domain.Idea) error {
		i.Status = status
		return nil
	})
}

// ToggleFavorite инвертирует отметку избранного.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (*domain.Idea, error) {
	return s.mutate(ctx, id, func(i *domain.Idea) error {
		i.IsFavorite = !i.IsFavorite
		return nil
	})
}

// UpdateResources заменяет список материалов идеи.
func (s *Service) UpdateResources(ctx context.Context, id string, resources []ResourceInput) (*domain.Idea, error) {
	return s.mutate(ctx, id, func(i *domain.Idea) error {
		i.Resources = classify(resources)
		return nil
	})
}

// Delete удаляет идею, если на нее не ссылается ни один пост.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetIdea(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountPostsByIdea(ctx, id)
		if err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		if n > 0 {
			return domain.NewValidationError("ideaId", "idea %s still has %d posts", id, n)
		}
		return tx.DeleteIdea(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("idea deleted", "idea_id", id)
	return nil
}

// Stale возвращает незавершенные идеи старше days дней, самые старые первыми.
func (s *Service) Stale(ctx context.Context, days int) ([]*domain.Idea, error) {
	ideas, err := s.store.ListIdeas(ctx)
	if err != nil {
		return nil, err
	}
	return StaleIdeas(ideas, s.now(), days), nil
}

// StaleIdeas отбирает незавершенные идеи, созданные раньше now - days.
func StaleIdeas(ideas []*domain.Idea, now time.Time, days int) []*domain.Idea {
	if days < 1 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -days)
	var out []*domain.Idea
	for _, i := range ideas {
		if i.Status != domain.IdeaCompleted && i.CreatedDate.Before(cutoff) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedDate.Before(out[b].CreatedDate) })
	return out
}
