package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/google/uuid"
)

// data - все документы хранилища. Транзакция работает с ним напрямую,
// а при ошибке подменяется снимком, снятым до начала.
type data struct {
	settings *domain.Settings
	posts    map[string]*domain.Post
	ideas    map[string]*domain.Idea
	sets     map[string]*domain.AllocationSet
	targets  map[string]*domain.PillarTarget // map[setID_pillarID]
}

func (d *data) snapshot() *data {
	cp := &data{
		settings: d.settings.Clone(),
		posts:    make(map[string]*domain.Post, len(d.posts)),
		ideas:    make(map[string]*domain.Idea, len(d.ideas)),
		sets:     make(map[string]*domain.AllocationSet, len(d.sets)),
		targets:  make(map[string]*domain.PillarTarget, len(d.targets)),
	}
	for id, p := range d.posts {
		cp.posts[id] = p.Clone()
	}
	for id, i := range d.ideas {
		cp.ideas[id] = i.Clone()
	}
	for id, s := range d.sets {
		v := *s
		cp.sets[id] = &v
	}
	for k, t := range d.targets {
		v := *t
		cp.targets[k] = &v
	}
	return cp
}

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu   sync.RWMutex
	data *data
}

var _ storage.Storage = (*Store)(nil)

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		data: &data{
			settings: domain.DefaultSettings(),
			posts:    make(map[string]*domain.Post),
			ideas:    make(map[string]*domain.Idea),
			sets:     make(map[string]*domain.AllocationSet),
			targets:  make(map[string]*domain.PillarTarget),
		},
	}
}

// RunInTx держит эксклюзивную блокировку на все время fn. Внутри fn можно
// обращаться только к tx: вызов методов Store из fn приведет к deadlock.
func (s *Store) RunInTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.data.snapshot()
	if err := fn(&view{d: s.data}); err != nil {
		s.data = before
		return err
	}
	return nil
}

func (s *Store) Close() error { return nil }

// read и write выполняют одиночную операцию как отдельную транзакцию.
func (s *Store) read(fn func(v *view) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&view{d: s.data})
}

func (s *Store) write(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{d: s.data})
}

// === Settings ===

func (s *Store) GetSettings(ctx context.Context) (out *domain.Settings, err error) {
	err = s.read(func(v *view) error {
		out, err = v.GetSettings(ctx)
		return err
	})
	return out, err
}

func (s *Store) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	return s.write(func(v *view) error { return v.SaveSettings(ctx, settings) })
}

func (s *Store) CompareAndSwapCounter(ctx context.Context, counter domain.Counter, prev, next int64) (ok bool, err error) {
	err = s.write(func(v *view) error {
		ok, err = v.CompareAndSwapCounter(ctx, counter, prev, next)
		return err
	})
	return ok, err
}

// === Post Methods ===

func (s *Store) GetPost(ctx context.Context, id string) (out *domain.Post, err error) {
	err = s.read(func(v *view) error {
		out, err = v.GetPost(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (out *domain.Post, err error) {
	err = s.write(func(v *view) error {
		out, err = v.CreatePost(ctx, post)
		return err
	})
	return out, err
}

func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (out *domain.Post, err error) {
	err = s.write(func(v *view) error {
		out, err = v.UpdatePost(ctx, post)
		return err
	})
	return out, err
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.write(func(v *view) error { return v.DeletePost(ctx, id) })
}

func (s *Store) MaxSiblingSequence(ctx context.Context, ideaID string) (out int, err error) {
	err = s.read(func(v *view) error {
		out, err = v.MaxSiblingSequence(ctx, ideaID)
		return err
	})
	return out, err
}

func (s *Store) CountPostsByIdea(ctx context.Context, ideaID string) (out int64, err error) {
	err = s.read(func(v *view) error {
		out, err = v.CountPostsByIdea(ctx, ideaID)
		return err
	})
	return out, err
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allPosts := make([]*domain.Post, 0, len(s.data.posts))
	for _, p := range s.data.posts {
		if matches(p, filter) {
			allPosts = append(allPosts, p.Clone())
		}
	}

	sort.Slice(allPosts, func(i, j int) bool {
		if !allPosts[i].CreatedAt.Equal(allPosts[j].CreatedAt) {
			return allPosts[i].CreatedAt.Before(allPosts[j].CreatedAt)
		}
		return allPosts[i].ID < allPosts[j].ID
	})

	start := filter.Offset
	if start >= len(allPosts) {
		return []*domain.Post{}, nil
	}
	end := len(allPosts)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return allPosts[start:end], nil
}

func matches(p *domain.Post, f storage.PostFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if p.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IdeaID != nil && (p.IdeaID == nil || *p.IdeaID != *f.IdeaID) {
		return false
	}
	if f.EligibleAt != nil && !p.EligibleForResurfacing(*f.EligibleAt) {
		return false
	}
	if f.PublishedFrom != nil && (p.PublishDate == nil || p.PublishDate.Before(*f.PublishedFrom)) {
		return false
	}
	if f.PublishedTo != nil && (p.PublishDate == nil || p.PublishDate.After(*f.PublishedTo)) {
		return false
	}
	return true
}

// === Idea Methods ===

func (s *Store) GetIdea(ctx context.Context, id string) (out *domain.Idea, err error) {
	err = s.read(func(v *view) error {
		out, err = v.GetIdea(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) CreateIdea(ctx context.Context, idea *domain.Idea) (out *domain.Idea, err error) {
	err = s.write(func(v *view) error {
		out, err = v.CreateIdea(ctx, idea)
		return err
	})
	return out, err
}

func (s *Store) UpdateIdea(ctx context.Context, idea *domain.Idea) (out *domain.Idea, err error) {
	err = s.write(func(v *view) error {
		out, err = v.UpdateIdea(ctx, idea)
		return err
	})
	return out, err
}

func (s *Store) DeleteIdea(ctx context.Context, id string) error {
	return s.write(func(v *view) error { return v.DeleteIdea(ctx, id) })
}

func (s *Store) ListIdeas(ctx context.Context) ([]*domain.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ideas := make([]*domain.Idea, 0, len(s.data.ideas))
	for _, i := range s.data.ideas {
		ideas = append(ideas, i.Clone())
	}
	sort.Slice(ideas, func(i, j int) bool {
		return ideas[i].IdeaNumber < ideas[j].IdeaNumber
	})
	return ideas, nil
}

// === Dataloader Methods ===

func (s *Store) GetIdeasByIDs(ctx context.Context, ids []string) (map[string]*domain.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.Idea, len(ids))
	for _, id := range ids {
		if i, ok := s.data.ideas[id]; ok {
			results[id] = i.Clone()
		}
	}
	return results, nil
}

// === Allocation Methods ===

func (s *Store) GetAllocationSet(ctx context.Context, id string) (out *domain.AllocationSet, err error) {
	err = s.read(func(v *view) error {
		out, err = v.GetAllocationSet(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) SaveAllocationSet(ctx context.Context, set *domain.AllocationSet) error {
	return s.write(func(v *view) error { return v.SaveAllocationSet(ctx, set) })
}

func (s *Store) ListAllocationSets(ctx context.Context) (out []*domain.AllocationSet, err error) {
	err = s.read(func(v *view) error {
		out, err = v.ListAllocationSets(ctx)
		return err
	})
	return out, err
}

func (s *Store) SavePillarTarget(ctx context.Context, target *domain.PillarTarget) error {
	return s.write(func(v *view) error { return v.SavePillarTarget(ctx, target) })
}

func (s *Store) ListPillarTargets(ctx context.Context, setID string) (out []*domain.PillarTarget, err error) {
	err = s.read(func(v *view) error {
		out, err = v.ListPillarTargets(ctx, setID)
		return err
	})
	return out, err
}

// view реализует storage.Tx поверх data без собственной блокировки:
// блокировку держит тот, кто создал view.
type view struct {
	d *data
}

func (v *view) GetSettings(ctx context.Context) (*domain.Settings, error) {
	return v.d.settings.Clone(), nil
}

func (v *view) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	cp := settings.Clone()
	cp.ID = domain.SettingsID
	v.d.settings = cp
	return nil
}

func (v *view) CompareAndSwapCounter(ctx context.Context, counter domain.Counter, prev, next int64) (bool, error) {
	if v.d.settings.CounterValue(counter) != prev {
		return false, nil
	}
	switch counter {
	case domain.CounterDirectEntry:
		v.d.settings.DirectEntryPostCounter = next
	case domain.CounterIdea:
		v.d.settings.IdeaCounter = next
	default:
		return false, errors.New("unknown counter " + string(counter))
	}
	return true, nil
}

func (v *view) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, ok := v.d.posts[id]
	if !ok {
		return nil, domain.NotFound("post", id)
	}
	return p.Clone(), nil
}

func (v *view) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if _, ok := v.d.posts[post.ID]; ok {
		return nil, errors.New("post " + post.ID + " already exists")
	}
	if post.DirectEntrySequence != nil {
		for _, other := range v.d.posts {
			if other.DirectEntrySequence != nil && *other.DirectEntrySequence == *post.DirectEntrySequence {
				return nil, errors.New("direct entry sequence is already assigned")
			}
		}
	}
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	v.d.posts[post.ID] = post.Clone()
	return post, nil
}

func (v *view) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if _, ok := v.d.posts[post.ID]; !ok {
		return nil, domain.NotFound("post", post.ID)
	}
	post.UpdatedAt = time.Now().UTC()
	v.d.posts[post.ID] = post.Clone()
	return post, nil
}

func (v *view) DeletePost(ctx context.Context, id string) error {
	if _, ok := v.d.posts[id]; !ok {
		return domain.NotFound("post", id)
	}
	delete(v.d.posts, id)
	return nil
}

func (v *view) MaxSiblingSequence(ctx context.Context, ideaID string) (int, error) {
	maxSeq := 0
	for _, p := range v.d.posts {
		if p.IdeaID != nil && *p.IdeaID == ideaID && p.Sequence > maxSeq {
			maxSeq = p.Sequence
		}
	}
	return maxSeq, nil
}

func (v *view) CountPostsByIdea(ctx context.Context, ideaID string) (int64, error) {
	var n int64
	for _, p := range v.d.posts {
		if p.IdeaID != nil && *p.IdeaID == ideaID {
			n++
		}
	}
	return n, nil
}

func (v *view) GetIdea(ctx context.Context, id string) (*domain.Idea, error) {
	i, ok := v.d.ideas[id]
	if !ok {
		return nil, domain.NotFound("idea", id)
	}
	return i.Clone(), nil
}

func (v *view) CreateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error) {
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	for _, other := range v.d.ideas {
		if other.IdeaNumber == idea.IdeaNumber {
			return nil, errors.New("idea number is already assigned")
		}
	}
	if idea.CreatedDate.IsZero() {
		idea.CreatedDate = time.Now().UTC()
	}
	v.d.ideas[idea.ID] = idea.Clone()
	return idea, nil
}

func (v *view) UpdateIdea(ctx context.Context, idea *domain.Idea) (*domain.Idea, error) {
	if _, ok := v.d.ideas[idea.ID]; !ok {
		return nil, domain.NotFound("idea", idea.ID)
	}
	v.d.ideas[idea.ID] = idea.Clone()
	return idea, nil
}

func (v *view) DeleteIdea(ctx context.Context, id string) error {
	if _, ok := v.d.ideas[id]; !ok {
		return domain.NotFound("idea", id)
	}
	delete(v.d.ideas, id)
	return nil
}

func (v *view) GetAllocationSet(ctx context.Context, id string) (*domain.AllocationSet, error) {
	set, ok := v.d.sets[id]
	if !ok {
		return nil, domain.NotFound("allocation set", id)
	}
	cp := *set
	return &cp, nil
}

func (v *view) SaveAllocationSet(ctx context.Context, set *domain.AllocationSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	cp := *set
	v.d.sets[set.ID] = &cp
	return nil
}

func (v *view) ListAllocationSets(ctx context.Context) ([]*domain.AllocationSet, error) {
	sets := make([]*domain.AllocationSet, 0, len(v.d.sets))
	for _, set := range v.d.sets {
		cp := *set
		sets = append(sets, &cp)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	return sets, nil
}

func (v *view) SavePillarTarget(ctx context.Context, target *domain.PillarTarget) error {
	cp := *target
	v.d.targets[target.Key()] = &cp
	return nil
}

func (v *view) ListPillarTargets(ctx context.Context, setID string) ([]*domain.PillarTarget, error) {
	targets := make([]*domain.PillarTarget, 0)
	for _, t := range v.d.targets {
		if setID != "" && t.AllocationSetID != setID {
			continue
		}
		cp := *t
		targets = append(targets, &cp)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Key() < targets[j].Key() })
	return targets, nil
}
