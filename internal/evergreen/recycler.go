// Package evergreen повторно выпускает evergreen-посты, чей таймер истек.
//
// Пост готов к повтору, когда is_evergreen, repurpose_date <= сейчас и пост
// не черновик. Повтор создает запланированную копию и заново взводит таймер
// исходного поста; обе записи идут одной транзакцией.
package evergreen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/content-alchemy/internal/allocator"
	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/metrics"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
)

// RepurposedSuffix добавляется к заголовку копии.
const RepurposedSuffix = " (Repurposed)"

// Result - итог повтора: новая копия и исходный пост с новым таймером.
type Result struct {
	Clone  *domain.Post `json:"clone"`
	Source *domain.Post `json:"source"`
}

// Recycler выполняет действия над пулом evergreen-постов.
type Recycler struct {
	store     storage.Storage
	alloc     *allocator.Allocator
	validator *schedule.Validator
	logger    *slog.Logger
}

// New создает Recycler.
func New(store storage.Storage, alloc *allocator.Allocator, validator *schedule.Validator, logger *slog.Logger) *Recycler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recycler{store: store, alloc: alloc, validator: validator, logger: logger}
}

// Eligible возвращает посты, готовые к повтору сейчас.
func (r *Recycler) Eligible(ctx context.Context) ([]*domain.Post, error) {
	now := r.validator.Now()
	return r.store.ListPosts(ctx, storage.PostFilter{EligibleAt: &now})
}

// Recycle клонирует готовый к повтору пост на дату target (время clock,
// по умолчанию 09:00) и сдвигает таймер исходного поста на now + repurpose_cycle.
func (r *Recycler) Recycle(ctx context.Context, id string, target time.Time, clock string) (res *Result, err error) {
	defer func() {
		metrics.Recycles.WithLabelValues("clone", metrics.Result(err, domain.IsValidation)).Inc()
	}()

	if err := r.validator.Validate(target); err != nil {
		return nil, err
	}
	hhmm, err := schedule.NormalizeClock(clock, domain.DefaultPublishTime)
	if err != nil {
		return nil, err
	}
	publishDay := schedule.StartOfDay(target, r.validator.Location())
	now := r.validator.Now()

	err = r.alloc.InTx(ctx, func(tx storage.Tx) error {
		source, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if !source.EligibleForResurfacing(now) {
			return domain.NewValidationError("repurposeDate", "post %s is not eligible for resurfacing", id)
		}
		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}

		clone := cloneOf(source)
		clone.PublishDate = &publishDay
		clone.PublishTime = hhmm
		rd := r.validator.AddDays(publishDay, settings.RepurposeCycle)
		clone.RepurposeDate = &rd

		if source.IsDirectEntry() {
			// Копия прямого ввода получает свой номер, а не номер источника
			seq, err := allocator.Next(ctx, tx, domain.CounterDirectEntry)
			if err != nil {
				return err
			}
			clone.DirectEntrySequence = &seq
		} else {
			maxSeq, err := tx.MaxSiblingSequence(ctx, *source.IdeaID)
			if err != nil {
				return fmt.Errorf("sibling sequence: %w", err)
			}
			clone.Sequence = maxSeq + 1
		}

		created, err := tx.CreatePost(ctx, clone)
		if err != nil {
			return fmt.Errorf("create clone: %w", err)
		}

		rearm := r.validator.AddDays(now, settings.RepurposeCycle)
		source.RepurposeDate = &rearm
		updated, err := tx.UpdatePost(ctx, source)
		if err != nil {
			return fmt.Errorf("re-arm source: %w", err)
		}

		res = &Result{Clone: created, Source: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("evergreen post recycled",
		"source_id", res.Source.ID,
		"clone_id", res.Clone.ID,
		"publish_date", publishDay.Format(schedule.DateLayout),
		"next_repurpose", res.Source.RepurposeDate.Format(schedule.DateLayout))
	return res, nil
}

func cloneOf(source *domain.Post) *domain.Post {
	clone := &domain.Post{
		Platform:         source.Platform,
		PostType:         source.PostType,
		Content:          source.Content,
		DefinitivePillar: source.DefinitivePillar,
		PostTitle:        source.PostTitle + RepurposedSuffix,
		Status:           domain.PostScheduled,
		IsEvergreen:      true,
		MediaURI:         source.MediaURI,
		MediaType:        source.MediaType,
		MediaName:        source.MediaName,
	}
	if source.IdeaID != nil {
		id := *source.IdeaID
		clone.IdeaID = &id
	}
	return clone
}

// Snooze откладывает таймер на days дней от текущего момента без копирования.
// nil days берется из настроек (repurpose_snooze_days).
func (r *Recycler) Snooze(ctx context.Context, id string, days *int) (post *domain.Post, err error) {
	defer func() {
		metrics.Recycles.WithLabelValues("snooze", metrics.Result(err, domain.IsValidation)).Inc()
	}()

	if days != nil && *days < 1 {
		return nil, domain.NewValidationError("days", "snooze must be at least 1 day, got %d", *days)
	}

	err = r.store.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsEvergreen {
			return domain.NewValidationError("isEvergreen", "post %s is not evergreen", id)
		}

		n := 0
		if days != nil {
			n = *days
		} else {
			settings, err := tx.GetSettings(ctx)
			if err != nil {
				return fmt.Errorf("read settings: %w", err)
			}
			n = settings.RepurposeSnoozeDays
		}
		if n < 1 {
			n = 1
		}

		rd := r.validator.AddDays(r.validator.Now(), n)
		p.RepurposeDate = &rd
		post, err = tx.UpdatePost(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("evergreen post snoozed", "post_id", id, "repurpose_date", post.RepurposeDate.Format(schedule.DateLayout))
	return post, nil
}

// Dismiss навсегда убирает пост из пула повтора.
func (r *Recycler) Dismiss(ctx context.Context, id string) (post *domain.Post, err error) {
	defer func() {
		metrics.Recycles.WithLabelValues("dismiss", metrics.Result(err, domain.IsValidation)).Inc()
	}()

	err = r.store.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		p.IsEvergreen = false
		p.RepurposeDate = nil
		post, err = tx.UpdatePost(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("evergreen post dismissed", "post_id", id)
	return post, nil
}
