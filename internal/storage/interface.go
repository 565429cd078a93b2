package storage

import (
	"context"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
)

// PostFilter - условия выборки постов. Нулевые поля не фильтруют.
type PostFilter struct {
	Statuses []domain.PostStatus
	IdeaID   *string
	// EligibleAt - evergreen-посты не в черновике, чей repurpose_date <= момента.
	EligibleAt *time.Time
	// PublishedFrom/PublishedTo - границы publish_date включительно.
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	Limit         int
	Offset        int
}

// Tx - операции над документами, доступные и внутри транзакции, и вне ее.
// Вне транзакции каждый вызов атомарен сам по себе.
type Tx interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	// SaveSettings записывает настройки. Счетчики следует менять
	// только через CompareAndSwapCounter.
	SaveSettings(ctx context.Context, settings *domain.Settings) error
	// CompareAndSwapCounter пишет next, только если счетчик все еще равен prev.
	// false означает, что другой писатель успел раньше.
	CompareAndSwapCounter(ctx context.Context, counter domain.Counter, prev, next int64) (bool, error)

	GetPost(ctx context.Context, id string) (*domain.Post, error)
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	MaxSiblingSequence(ctx context.Context, ideaID string) (int, error)
	CountPostsByIdea(ctx context.Context, ideaID string) (int64, error)

	GetIdea(ctx context.Context, id string) (*domain.Idea, error)
	CreateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error)
	UpdateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error)
	DeleteIdea(ctx context.Context, id string) error

	GetAllocationSet(ctx context.Context, id string) (*domain.AllocationSet, error)
	SaveAllocationSet(ctx context.Context, set *domain.AllocationSet) error
	ListAllocationSets(ctx context.Context) ([]*domain.AllocationSet, error)
	SavePillarTarget(ctx context.Context, target *domain.PillarTarget) error
	ListPillarTargets(ctx context.Context, setID string) ([]*domain.PillarTarget, error)
}

// Storage определяет контракт для хранилищ.
type Storage interface {
	Tx

	// RunInTx выполняет fn в одной транзакции "все или ничего".
	// Любая ошибка fn откатывает все записи.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	ListPosts(ctx context.Context, filter PostFilter) ([]*domain.Post, error)
	ListIdeas(ctx context.Context) ([]*domain.Idea, error)
	// Метод для Dataloader'а идей
	GetIdeasByIDs(ctx context.Context, ids []string) (map[string]*domain.Idea, error)

	Close() error
}
