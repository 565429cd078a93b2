package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "alchemy.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SeedsSettings(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SettingsID, settings.ID)
	assert.Equal(t, int64(domain.MinIdeaCounter), settings.IdeaCounter)
	assert.Equal(t, 365, settings.RepurposeCycle)
	assert.Len(t, settings.Lanes, len(domain.Platforms))
}

func TestStore_SettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	settings.Pillars = append(settings.Pillars, domain.Pillar{ID: "p1", Name: "Education", Active: true})
	settings.DigestRecipients = append(settings.DigestRecipients, "me@example.com")
	require.NoError(t, store.SaveSettings(ctx, settings))

	reloaded, err := store.GetSettings(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded.Pillars, 1)
	assert.Equal(t, "Education", reloaded.Pillars[0].Name)
	assert.Equal(t, []string{"me@example.com"}, []string(reloaded.DigestRecipients))
}

func TestStore_SaveSettingsKeepsCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale, err := store.GetSettings(ctx)
	require.NoError(t, err)

	ok, err := store.CompareAndSwapCounter(ctx, domain.CounterDirectEntry, 0, 1)
	require.NoError(t, err)
	require.True(t, ok)

	stale.RepurposeCycle = 200
	require.NoError(t, store.SaveSettings(ctx, stale))

	reloaded, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, reloaded.RepurposeCycle)
	assert.Equal(t, int64(1), reloaded.DirectEntryPostCounter)
}

func TestStore_CompareAndSwapCounter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.CompareAndSwapCounter(ctx, domain.CounterDirectEntry, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwapCounter(ctx, domain.CounterDirectEntry, 0, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stale previous value must lose")

	_, err = store.CompareAndSwapCounter(ctx, domain.Counter("bogus"), 0, 1)
	assert.Error(t, err)
}

func TestStore_RunInTx_RollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.CompareAndSwapCounter(ctx, domain.CounterIdea, 100, 101); err != nil {
			return err
		}
		if _, err := tx.CreatePost(ctx, &domain.Post{Status: domain.PostDraft, Platform: domain.PlatformBlog}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), settings.IdeaCounter)

	posts, err := store.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestStore_PostCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idea, err := store.CreateIdea(ctx, &domain.Idea{IdeaNumber: 101, Title: "Idea", Status: domain.IdeaReady})
	require.NoError(t, err)

	post, err := store.CreatePost(ctx, &domain.Post{IdeaID: &idea.ID, Sequence: 1, Status: domain.PostDraft, Platform: domain.PlatformLinkedIn})
	require.NoError(t, err)
	require.NotEmpty(t, post.ID)

	post.PostTitle = "updated"
	post.IsLocked = true
	_, err = store.UpdatePost(ctx, post)
	require.NoError(t, err)

	got, err := store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.PostTitle)
	assert.True(t, got.IsLocked)

	// Сброс флага тоже должен записываться
	got.IsLocked = false
	_, err = store.UpdatePost(ctx, got)
	require.NoError(t, err)
	got, err = store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)

	maxSeq, err := store.MaxSiblingSequence(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, maxSeq)

	n, err := store.CountPostsByIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.UpdatePost(ctx, &domain.Post{ID: "missing", Status: domain.PostDraft})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.DeletePost(ctx, post.ID))
	_, err = store.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.DeletePost(ctx, post.ID), domain.ErrNotFound)
}

func TestStore_ListPosts_EligibleFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	elapsed := now.AddDate(0, 0, -2)
	pending := now.AddDate(0, 0, 2)

	eligible, err := store.CreatePost(ctx, &domain.Post{Status: domain.PostPublished, IsEvergreen: true, RepurposeDate: &elapsed})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, &domain.Post{Status: domain.PostDraft, IsEvergreen: true, RepurposeDate: &elapsed})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, &domain.Post{Status: domain.PostScheduled, IsEvergreen: true, RepurposeDate: &pending})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, &domain.Post{Status: domain.PostPublished, IsEvergreen: false})
	require.NoError(t, err)

	got, err := store.ListPosts(ctx, storage.PostFilter{EligibleAt: &now})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, eligible.ID, got[0].ID)

	got, err = store.ListPosts(ctx, storage.PostFilter{Statuses: []domain.PostStatus{domain.PostPublished}})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_IdeasAndTargets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idea, err := store.CreateIdea(ctx, &domain.Idea{
		IdeaNumber: 101,
		Title:      "With resources",
		Status:     domain.IdeaIncubating,
		Resources:  []domain.Resource{{Type: domain.ResourceLink, Label: "ref", URI: "https://example.com"}},
	})
	require.NoError(t, err)

	byID, err := store.GetIdeasByIDs(ctx, []string{idea.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "ref", byID[idea.ID].Resources[0].Label)

	set := &domain.AllocationSet{Name: "growth_mode"}
	require.NoError(t, store.SaveAllocationSet(ctx, set))
	set.IsActive = true
	require.NoError(t, store.SaveAllocationSet(ctx, set))

	got, err := store.GetAllocationSet(ctx, set.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, store.SavePillarTarget(ctx, &domain.PillarTarget{AllocationSetID: set.ID, PillarID: "p1", TargetPercentage: 30}))
	require.NoError(t, store.SavePillarTarget(ctx, &domain.PillarTarget{AllocationSetID: set.ID, PillarID: "p1", TargetPercentage: 45}))

	targets, err := store.ListPillarTargets(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, 45.0, targets[0].TargetPercentage)
}
