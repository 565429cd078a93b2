// Package allocator выдает последовательные номера идей и постов прямого ввода.
//
// Номер выдается условной записью (compare-and-swap) в документ настроек в той
// же транзакции, что и документ, который его получает. Проигранный CAS
// откатывает транзакцию целиком, и она повторяется с теми же входными данными.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/metrics"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/cenkalti/backoff/v5"
)

// DefaultMaxTries - число попыток транзакции при конфликтах по умолчанию.
const DefaultMaxTries = 8

// Allocator выдает номера и повторяет транзакции, проигравшие гонку.
type Allocator struct {
	store    storage.Storage
	logger   *slog.Logger
	maxTries uint
}

// New создает Allocator. maxTries == 0 означает DefaultMaxTries.
func New(store storage.Storage, logger *slog.Logger, maxTries uint) *Allocator {
	if maxTries == 0 {
		maxTries = DefaultMaxTries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{store: store, logger: logger, maxTries: maxTries}
}

// Next увеличивает счетчик внутри транзакции tx и возвращает новое значение.
// Если счетчик успел измениться, возвращается domain.ErrTransactionConflict.
func Next(ctx context.Context, tx storage.Tx, counter domain.Counter) (int64, error) {
	settings, err := tx.GetSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("read settings: %w", err)
	}

	current := settings.CounterValue(counter)
	base := current
	if counter == domain.CounterIdea && base < domain.MinIdeaCounter {
		base = domain.MinIdeaCounter
	}
	next := base + 1

	ok, err := tx.CompareAndSwapCounter(ctx, counter, current, next)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", counter, err)
	}
	if !ok {
		metrics.CounterConflicts.WithLabelValues(string(counter)).Inc()
		return 0, fmt.Errorf("%s moved past %d: %w", counter, current, domain.ErrTransactionConflict)
	}
	metrics.Allocations.WithLabelValues(string(counter)).Inc()
	return next, nil
}

// InTx выполняет fn в транзакции и повторяет ее при domain.ErrTransactionConflict
// с экспоненциальной задержкой. Остальные ошибки возвращаются сразу.
// fn может быть вызвана несколько раз и не должна копить состояние между вызовами.
func (a *Allocator) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := a.store.RunInTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, domain.ErrTransactionConflict):
			a.logger.Warn("transaction conflict, retrying", "attempt", attempt, "error", err)
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(a.maxTries))
	return err
}

// CreateDirectEntryPost сохраняет пост без идеи, присваивая ему номер прямого
// ввода в той же транзакции. Уже присвоенный номер не меняется.
func (a *Allocator) CreateDirectEntryPost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	var created *domain.Post
	err := a.InTx(ctx, func(tx storage.Tx) error {
		p := post.Clone()
		p.IdeaID = nil
		if p.DirectEntrySequence == nil {
			seq, err := Next(ctx, tx, domain.CounterDirectEntry)
			if err != nil {
				return err
			}
			p.DirectEntrySequence = &seq
		}
		out, err := tx.CreatePost(ctx, p)
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("direct entry post created", "post_id", created.ID, "sequence", *created.DirectEntrySequence)
	return created, nil
}

// CreateIdea сохраняет идею со следующим номером идеи.
func (a *Allocator) CreateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error) {
	var created *domain.Idea
	err := a.InTx(ctx, func(tx storage.Tx) error {
		i := idea.Clone()
		num, err := Next(ctx, tx, domain.CounterIdea)
		if err != nil {
			return err
		}
		i.IdeaNumber = num
		out, err := tx.CreateIdea(ctx, i)
		if err != nil {
			return fmt.Errorf("create idea: %w", err)
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
