package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/google/uuid"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite" // pure Go драйвер SQLite, CGO не нужен
)

// Store реализует интерфейс Storage поверх gorm (PostgreSQL или SQLite).
type Store struct {
	queries
}

var _ storage.Storage = (*Store)(nil)

// OpenPostgres создает хранилище PostgreSQL.
func OpenPostgres(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStore(db)
}

// OpenSQLite создает хранилище в файле SQLite.
func OpenSQLite(path string, logLevel logger.LogLevel) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite допускает одного писателя
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	// Выполняем миграцию схемы
	if err := db.AutoMigrate(
		&domain.Settings{},
		&domain.Idea{},
		&domain.Post{},
		&domain.AllocationSet{},
		&domain.PillarTarget{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Документ настроек должен существовать до первого CAS счетчика
	if err := db.FirstOrCreate(domain.DefaultSettings(), "id = ?", domain.SettingsID).Error; err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	return &Store{queries{db: db}}, nil
}

// RunInTx выполняет fn в транзакции gorm. Внутри fn используйте только tx:
// у SQLite одно соединение, и обращение к Store из fn заблокируется.
func (s *Store) RunInTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === Post Listing ===

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*domain.Post, error) {
	query := s.db.WithContext(ctx).Model(&domain.Post{})

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.IdeaID != nil {
		query = query.Where("idea_id = ?", *filter.IdeaID)
	}
	if filter.EligibleAt != nil {
		// Фильтр "готов к повтору" выполняется базой, а не приложением
		query = query.Where(
			"is_evergreen = ? AND repurpose_date IS NOT NULL AND repurpose_date <= ? AND status <> ?",
			true, *filter.EligibleAt, domain.PostDraft,
		)
	}
	if filter.PublishedFrom != nil {
		query = query.Where("publish_date >= ?", *filter.PublishedFrom)
	}
	if filter.PublishedTo != nil {
		query = query.Where("publish_date <= ?", *filter.PublishedTo)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var posts []*domain.Post
	err := query.Order("created_at ASC, id ASC").Find(&posts).Error
	return posts, err
}

func (s *Store) ListIdeas(ctx context.Context) ([]*domain.Idea, error) {
	var ideas []*domain.Idea
	err := s.db.WithContext(ctx).Order("idea_number ASC").Find(&ideas).Error
	return ideas, err
}

// === Dataloader Method ===

func (s *Store) GetIdeasByIDs(ctx context.Context, ids []string) (map[string]*domain.Idea, error) {
	result := make(map[string]*domain.Idea, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var ideas []*domain.Idea
	// Загружаем все идеи одним запросом
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&ideas).Error; err != nil {
		return nil, err
	}
	for _, i := range ideas {
		result[i.ID] = i
	}
	return result, nil
}

// queries реализует storage.Tx; db - либо корневое соединение, либо транзакция.
type queries struct {
	db *gorm.DB
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(kind, id)
	}
	return err
}

// === Settings ===

func (q *queries) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	if err := q.db.WithContext(ctx).First(&settings, "id = ?", domain.SettingsID).Error; err != nil {
		return nil, notFound(err, "settings", domain.SettingsID)
	}
	return &settings, nil
}

// SaveSettings не трогает счетчики: они меняются только через CompareAndSwapCounter,
// иначе запись настроек могла бы откатить номер, выданный параллельной транзакцией.
func (q *queries) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	settings.ID = domain.SettingsID
	return q.db.WithContext(ctx).
		Model(settings).
		Select("*").
		Omit("id", string(domain.CounterDirectEntry), string(domain.CounterIdea)).
		Updates(settings).Error
}

func (q *queries) CompareAndSwapCounter(ctx context.Context, counter domain.Counter, prev, next int64) (bool, error) {
	switch counter {
	case domain.CounterDirectEntry, domain.CounterIdea:
	default:
		return false, fmt.Errorf("unknown counter %q", counter)
	}
	column := string(counter)

	// Условная запись: строка обновится, только если никто не изменил счетчик
	res := q.db.WithContext(ctx).
		Model(&domain.Settings{}).
		Where("id = ? AND "+column+" = ?", domain.SettingsID, prev).
		Update(column, next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// === Post Methods ===

func (q *queries) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := q.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "post", id)
	}
	return &post, nil
}

func (q *queries) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	// GORM сам заполнит CreatedAt и UpdatedAt
	if err := q.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

func (q *queries) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	res := q.db.WithContext(ctx).Model(post).Select("*").Omit("created_at").Updates(post)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.NotFound("post", post.ID)
	}
	return post, nil
}

func (q *queries) DeletePost(ctx context.Context, id string) error {
	res := q.db.WithContext(ctx).Delete(&domain.Post{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("post", id)
	}
	return nil
}

func (q *queries) MaxSiblingSequence(ctx context.Context, ideaID string) (int, error) {
	var maxSeq int
	err := q.db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("idea_id = ?", ideaID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}

func (q *queries) CountPostsByIdea(ctx context.Context, ideaID string) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&domain.Post{}).Where("idea_id = ?", ideaID).Count(&n).Error
	return n, err
}

// === Idea Methods ===

func (q *queries) GetIdea(ctx context.Context, id string) (*domain.Idea, error) {
	var idea domain.Idea
	if err := q.db.WithContext(ctx).First(&idea, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "idea", id)
	}
	return &idea, nil
}

func (q *queries) CreateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error) {
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	if idea.CreatedDate.IsZero() {
		idea.CreatedDate = time.Now().UTC()
	}
	if err := q.db.WithContext(ctx).Create(idea).Error; err != nil {
		return nil, err
	}
	return idea, nil
}

func (q *queries) UpdateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error) {
	res := q.db.WithContext(ctx).Model(idea).Select("*").Updates(idea)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.NotFound("idea", idea.ID)
	}
	return idea, nil
}

func (q *queries) DeleteIdea(ctx context.Context, id string) error {
	res := q.db.WithContext(ctx).Delete(&domain.Idea{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("idea", id)
	}
	return nil
}

// === Allocation Methods ===

func (q *queries) GetAllocationSet(ctx context.Context, id string) (*domain.AllocationSet, error) {
	var set domain.AllocationSet
	if err := q.db.WithContext(ctx).First(&set, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "allocation set", id)
	}
	return &set, nil
}

func (q *queries) SaveAllocationSet(ctx context.Context, set *domain.AllocationSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	return q.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(set).Error
}

func (q *queries) ListAllocationSets(ctx context.Context) ([]*domain.AllocationSet, error) {
	var sets []*domain.AllocationSet
	err := q.db.WithContext(ctx).Order("name ASC").Find(&sets).Error
	return sets, err
}

func (q *queries) SavePillarTarget(ctx context.Context, target *domain.PillarTarget) error {
	return q.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(target).Error
}

func (q *queries) ListPillarTargets(ctx context.Context, setID string) ([]*domain.PillarTarget, error) {
	query := q.db.WithContext(ctx).Order("allocation_set_id ASC, pillar_id ASC")
	if setID != "" {
		query = query.Where("allocation_set_id = ?", setID)
	}
	var targets []*domain.PillarTarget
	err := query.Find(&targets).Error
	return targets, err
}
