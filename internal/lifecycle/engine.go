// Package lifecycle владеет переходами состояний поста:
// draft -> scheduled -> published -> archived и обратно в черновики.
//
// Каждая операция - одна атомарная запись одного поста.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UkralStul/content-alchemy/internal/allocator"
	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/metrics"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
)

// PostInput - поля нового поста.
type PostInput struct {
	Platform         domain.Platform
	PostType         string
	PostTitle        string
	Content          string
	ActionNotes      string
	DefinitivePillar string
	Media            *domain.Media
	IsEvergreen      bool
}

func (in PostInput) validate() error {
	if !in.Platform.Valid() {
		return domain.NewValidationError("platform", "unsupported platform %q", in.Platform)
	}
	return nil
}

// ContentPatch - частичное обновление содержимого поста. nil поля не меняются.
type ContentPatch struct {
	Platform         *domain.Platform
	PostType         *string
	PostTitle        *string
	Content          *string
	ActionNotes      *string
	DefinitivePillar *string
	Media            *domain.Media
	ClearMedia       bool
}

// Engine выполняет операции жизненного цикла.
type Engine struct {
	store     storage.Storage
	alloc     *allocator.Allocator
	validator *schedule.Validator
	logger    *slog.Logger
}

// New создает Engine.
func New(store storage.Storage, alloc *allocator.Allocator, validator *schedule.Validator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, alloc: alloc, validator: validator, logger: logger}
}

func (e *Engine) observe(op string, err error) {
	metrics.Transitions.WithLabelValues(op, metrics.Result(err, domain.IsValidation)).Inc()
}

// Get возвращает пост по id.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Post, error) {
	return e.store.GetPost(ctx, id)
}

// List возвращает посты по фильтру.
func (e *Engine) List(ctx context.Context, filter storage.PostFilter) ([]*domain.Post, error) {
	return e.store.ListPosts(ctx, filter)
}

// CreateDirect создает черновик без идеи с новым номером прямого ввода.
func (e *Engine) CreateDirect(ctx context.Context, in PostInput) (post *domain.Post, err error) {
	defer func() { e.observe("create_direct", err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	post = newDraft(in, settings)
	post, err = e.alloc.CreateDirectEntryPost(ctx, post)
	if err != nil {
		return nil, err
	}
	e.logger.Info("post created", "post_id", post.ID, "direct_entry_sequence", *post.DirectEntrySequence)
	return post, nil
}

// CreateForIdea создает черновик идеи; sequence = 1 + максимум среди постов идеи.
func (e *Engine) CreateForIdea(ctx context.Context, ideaID string, in PostInput) (post *domain.Post, err error) {
	defer func() { e.observe("create_for_idea", err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	err = e.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetIdea(ctx, ideaID); err != nil {
			return err
		}
		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		maxSeq, err := tx.MaxSiblingSequence(ctx, ideaID)
		if err != nil {
			return fmt.Errorf("sibling sequence: %w", err)
		}

		p := newDraft(in, settings)
		id := ideaID
		p.IdeaID = &id
		p.Sequence = maxSeq + 1
		post, err = tx.CreatePost(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("post created", "post_id", post.ID, "idea_id", ideaID, "sequence", post.Sequence)
	return post, nil
}

func newDraft(in PostInput, settings *domain.Settings) *domain.Post {
	p := &domain.Post{
		Platform:         in.Platform,
		PostType:         in.PostType,
		PostTitle:        in.PostTitle,
		Content:          in.Content,
		ActionNotes:      in.ActionNotes,
		DefinitivePillar: settings.PillarID(strings.TrimSpace(in.DefinitivePillar)),
		Status:           domain.PostDraft,
		IsEvergreen:      in.IsEvergreen,
	}
	p.SetMedia(in.Media)
	return p
}

// mutate читает пост, применяет fn и записывает результат в одной транзакции.
func (e *Engine) mutate(ctx context.Context, op, id string, fn func(tx storage.Tx, p *domain.Post) error) (post *domain.Post, err error) {
	defer func() { e.observe(op, err) }()

	err = e.store.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, p); err != nil {
			return err
		}
		post, err = tx.UpdatePost(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("post updated", "operation", op, "post_id", post.ID, "status", post.Status)
	return post, nil
}

// Schedule ставит пост на дату date и время clock ("HH:MM").
// Пустое время берется из предыдущего размещения или 09:00.
// Дата раньше сегодняшнего дня отклоняется ValidationError без записи.
func (e *Engine) Schedule(ctx context.Context, id string, date time.Time, clock string) (*domain.Post, error) {
	if err := e.validator.Validate(date); err != nil {
		e.observe("schedule", err)
		return nil, err
	}
	day := schedule.StartOfDay(date, e.validator.Location())

	return e.mutate(ctx, "schedule", id, func(tx storage.Tx, p *domain.Post) error {
		switch p.Status {
		case domain.PostDraft, domain.PostScheduled, domain.PostPublished:
		default:
			return domain.InvalidTransition("schedule", p.Status)
		}

		fallback := p.PublishTime
		if fallback == "" {
			fallback = domain.DefaultPublishTime
		}
		hhmm, err := schedule.NormalizeClock(clock, fallback)
		if err != nil {
			return err
		}

		wasPublished := p.Status == domain.PostPublished
		p.PublishDate = &day
		p.PublishTime = hhmm
		p.Status = domain.PostScheduled
		if wasPublished {
			p.IsLocked = false
		}
		if p.IsEvergreen && p.RepurposeDate == nil {
			settings, err := tx.GetSettings(ctx)
			if err != nil {
				return fmt.Errorf("read settings: %w", err)
			}
			rd := e.validator.AddDays(day, settings.RepurposeCycle)
			p.RepurposeDate = &rd
		}
		return nil
	})
}

// ReturnToBacklog возвращает пост в черновики: дата и одобрение снимаются.
func (e *Engine) ReturnToBacklog(ctx context.Context, id string) (*domain.Post, error) {
	return e.mutate(ctx, "return_to_backlog", id, func(_ storage.Tx, p *domain.Post) error {
		if p.Status == domain.PostDraft {
			return domain.InvalidTransition("return to backlog", p.Status)
		}
		p.PublishDate = nil
		p.Status = domain.PostDraft
		p.IsLocked = false
		return nil
	})
}

// Publish отмечает запланированный пост опубликованным.
func (e *Engine) Publish(ctx context.Context, id string) (*domain.Post, error) {
	return e.mutate(ctx, "publish", id, func(_ storage.Tx, p *domain.Post) error {
		if p.Status != domain.PostScheduled {
			return domain.InvalidTransition("publish", p.Status)
		}
		if p.PublishDate == nil {
			return domain.NewValidationError("publishDate", "a published post needs a publish date")
		}
		p.Status = domain.PostPublished
		return nil
	})
}

// Archive скрывает опубликованный пост, сохраняя историю.
func (e *Engine) Archive(ctx context.Context, id string) (*domain.Post, error) {
	return e.mutate(ctx, "archive", id, func(_ storage.Tx, p *domain.Post) error {
		if p.Status != domain.PostPublished {
			return domain.InvalidTransition("archive", p.Status)
		}
		p.Status = domain.PostArchived
		return nil
	})
}

// Restore возвращает пост из архива в опубликованные.
func (e *Engine) Restore(ctx context.Context, id string) (*domain.Post, error) {
	return e.mutate(ctx, "restore", id, func(_ storage.Tx, p *domain.Post) error {
		if p.Status != domain.PostArchived {
			return domain.InvalidTransition("restore", p.Status)
		}
		p.Status = domain.PostPublished
		return nil
	})
}

// SetLocked ставит или снимает флаг одобрения.
func (e *Engine) SetLocked(ctx context.Context, id string, locked bool) (*domain.Post, error) {
	return e.mutate(ctx, "set_locked", id, func(_ storage.Tx, p *domain.Post) error {
		p.IsLocked = locked
		return nil
	})
}

// SetEvergreen включает переработку поста. Если у поста есть дата,
// таймер взводится на publish_date + repurpose_cycle дней.
func (e *Engine) SetEvergreen(ctx context.Context, id string) (*domain.Post, error) {
	return e.mutate(ctx, "set_evergreen", id, func(tx storage.Tx, p *domain.Post) error {
		p.IsEvergreen = true
		if p.RepurposeDate != nil || p.PublishDate == nil {
			return nil
		}
		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		rd := e.validator.AddDays(*p.PublishDate, settings.RepurposeCycle)
		p.RepurposeDate = &rd
		return nil
	})
}

// UpdateContent применяет patch к содержимому поста.
func (e *Engine) UpdateContent(ctx context.Context, id string, patch ContentPatch) (*domain.Post, error) {
	return e.mutate(ctx, "update_content", id, func(tx storage.Tx, p *domain.Post) error {
		if patch.Platform != nil {
			if !patch.Platform.Valid() {
				return domain.NewValidationError("platform", "unsupported platform %q", *patch.Platform)
			}
			p.Platform = *patch.Platform
		}
		if patch.PostType != nil {
			p.PostType = *patch.PostType
		}
		if patch.PostTitle != nil {
			p.PostTitle = *patch.PostTitle
		}
		if patch.Content != nil {
			p.Content = *patch.Content
		}
		if patch.ActionNotes != nil {
			p.ActionNotes = *patch.ActionNotes
		}
		if patch.DefinitivePillar != nil {
			settings, err := tx.GetSettings(ctx)
			if err != nil {
				return fmt.Errorf("read settings: %w", err)
			}
			p.DefinitivePillar = settings.PillarID(strings.TrimSpace(*patch.DefinitivePillar))
		}
		switch {
		case patch.ClearMedia:
			p.SetMedia(nil)
		case patch.Media != nil:
			p.SetMedia(patch.Media)
		}
		return nil
	})
}

// Delete удаляет пост безвозвратно. Ссылки на пост не проверяются.
func (e *Engine) Delete(ctx context.Context, id string) (err error) {
	defer func() { e.observe("delete", err) }()

	if err := e.store.DeletePost(ctx, id); err != nil {
		return err
	}
	e.logger.Info("post deleted", "post_id", id)
	return nil
}
