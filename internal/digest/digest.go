// Package digest собирает и рассылает ежедневную сводку по календарю.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/ideas"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Digest - сводка на одну дату.
type Digest struct {
	Date       string         `json:"date"`
	DueToday   []*domain.Post `json:"dueToday"`
	Overdue    []*domain.Post `json:"overdue"`
	Evergreen  []*domain.Post `json:"evergreen"`
	StaleIdeas []*domain.Idea `json:"staleIdeas"`
}

// Empty сообщает, нечего ли рассылать.
func (d *Digest) Empty() bool {
	return len(d.DueToday) == 0 && len(d.Overdue) == 0 && len(d.Evergreen) == 0 && len(d.StaleIdeas) == 0
}

// Builder собирает Digest из хранилища.
type Builder struct {
	store     storage.Storage
	validator *schedule.Validator
	logger    *slog.Logger
}

// NewBuilder создает Builder.
func NewBuilder(store storage.Storage, validator *schedule.Validator, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, validator: validator, logger: logger}
}

// Build выполняет выборки параллельно и возвращает сводку на сегодня.
func (b *Builder) Build(ctx context.Context) (*Digest, error) {
	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	now := b.validator.Now()
	today := b.validator.Today()
	endOfToday := b.validator.AddDays(today, 1).Add(-1)
	yesterdayEnd := today.Add(-1)

	d := &Digest{Date: today.Format(schedule.DateLayout)}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		posts, err := b.store.ListPosts(gctx, storage.PostFilter{
			Statuses:      []domain.PostStatus{domain.PostScheduled},
			PublishedFrom: &today,
			PublishedTo:   &endOfToday,
		})
		if err != nil {
			return fmt.Errorf("due today: %w", err)
		}
		d.DueToday = byPublishSlot(posts)
		return nil
	})
	g.Go(func() error {
		posts, err := b.store.ListPosts(gctx, storage.PostFilter{
			Statuses:    []domain.PostStatus{domain.PostScheduled},
			PublishedTo: &yesterdayEnd,
		})
		if err != nil {
			return fmt.Errorf("overdue: %w", err)
		}
		d.Overdue = byPublishSlot(posts)
		return nil
	})
	g.Go(func() error {
		posts, err := b.store.ListPosts(gctx, storage.PostFilter{EligibleAt: &now})
		if err != nil {
			return fmt.Errorf("evergreen: %w", err)
		}
		d.Evergreen = posts
		return nil
	})
	g.Go(func() error {
		all, err := b.store.ListIdeas(gctx)
		if err != nil {
			return fmt.Errorf("stale ideas: %w", err)
		}
		d.StaleIdeas = ideas.StaleIdeas(all, now, settings.StaleIdeaDays)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.logger.Debug("digest built",
		"date", d.Date,
		"due_today", len(d.DueToday),
		"overdue", len(d.Overdue),
		"evergreen", len(d.Evergreen),
		"stale_ideas", len(d.StaleIdeas))
	return d, nil
}

func byPublishSlot(posts []*domain.Post) []*domain.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.PublishDate.Equal(*b.PublishDate) {
			return a.PublishDate.Before(*b.PublishDate)
		}
		return a.PublishTime < b.PublishTime
	})
	return posts
}
