package evergreen

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/content-alchemy/internal/allocator"
	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/logging"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/UkralStul/content-alchemy/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func newTestRecycler(t *testing.T) (*Recycler, *inmemory.Store) {
	store := inmemory.New()
	logger := logging.Discard()
	validator := schedule.NewValidator(time.UTC, func() time.Time { return testNow })
	return New(store, allocator.New(store, logger, 0), validator, logger), store
}

// seedIdeaPosts создает идею 101 с постами sequence 1 и 2; второй - evergreen с истекшим таймером.
func seedIdeaPosts(t *testing.T, store *inmemory.Store) (*domain.Idea, *domain.Post) {
	ctx := context.Background()
	idea, err := store.CreateIdea(ctx, &domain.Idea{IdeaNumber: 101, Title: "Idea"})
	require.NoError(t, err)

	_, err = store.CreatePost(ctx, &domain.Post{IdeaID: &idea.ID, Sequence: 1, Status: domain.PostPublished, Platform: domain.PlatformBlog})
	require.NoError(t, err)

	published := day(2025, 10, 1)
	source, err := store.CreatePost(ctx, &domain.Post{
		IdeaID:           &idea.ID,
		Sequence:         2,
		Status:           domain.PostPublished,
		Platform:         domain.PlatformLinkedIn,
		PostType:         "carousel",
		PostTitle:        "Five lessons",
		Content:          "body",
		DefinitivePillar: "p-edu",
		PublishDate:      &published,
		PublishTime:      "08:15",
		IsEvergreen:      true,
		IsLocked:         true,
		RepurposeDate:    ptr(day(2026, 10, 1)),
		MediaURI:         "gs://bucket/cover.png",
		MediaType:        "image/png",
	})
	require.NoError(t, err)
	return idea, source
}

func TestRecycle_IdeaLinkedPost(t *testing.T) {
	r, store := newTestRecycler(t)
	ctx := context.Background()
	idea, source := seedIdeaPosts(t, store)

	target := day(2026, 11, 2)
	res, err := r.Recycle(ctx, source.ID, target, "")
	require.NoError(t, err)

	clone := res.Clone
	assert.NotEqual(t, source.ID, clone.ID)
	assert.Equal(t, 3, clone.Sequence)
	assert.Equal(t, idea.ID, *clone.IdeaID)
	assert.Nil(t, clone.DirectEntrySequence)
	assert.Equal(t, "Five lessons (Repurposed)", clone.PostTitle)
	assert.Equal(t, domain.PostScheduled, clone.Status)
	assert.Equal(t, target, *clone.PublishDate)
	assert.Equal(t, "09:00", clone.PublishTime)
	assert.True(t, clone.IsEvergreen)
	assert.False(t, clone.IsLocked)
	assert.Equal(t, domain.PlatformLinkedIn, clone.Platform)
	assert.Equal(t, "carousel", clone.PostType)
	assert.Equal(t, "body", clone.Content)
	assert.Equal(t, "p-edu", clone.DefinitivePillar)
	assert.Equal(t, "gs://bucket/cover.png", clone.MediaURI)
	assert.Equal(t, target.AddDate(0, 0, 365), *clone.RepurposeDate)

	reloaded, err := store.GetPost(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 0, 365), *reloaded.RepurposeDate)
	// Статус и расписание источника не меняются
	assert.Equal(t, domain.PostPublished, reloaded.Status)
	assert.Equal(t, day(2025, 10, 1), *reloaded.PublishDate)
	assert.Equal(t, "08:15", reloaded.PublishTime)

	// После повтора источник больше не готов к повтору, а копия еще не готова
	eligible, err := r.Eligible(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestRecycle_DirectEntryGetsFreshSequence(t *testing.T) {
	r, store := newTestRecycler(t)
	ctx := context.Background()

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	settings.DirectEntryPostCounter = 41
	settings.RepurposeCycle = 180
	require.NoError(t, store.SaveSettings(ctx, settings))

	source, err := store.CreatePost(ctx, &domain.Post{
		DirectEntrySequence: ptr(int64(7)),
		Status:              domain.PostScheduled,
		Platform:            domain.PlatformTwitter,
		PostTitle:           "Thread",
		PublishDate:         ptr(day(2026, 1, 5)),
		IsEvergreen:         true,
		RepurposeDate:       ptr(testNow),
	})
	require.NoError(t, err)

	res, err := r.Recycle(ctx, source.ID, day(2026, 10, 16), "18:45")
	require.NoError(t, err)
	require.NotNil(t, res.Clone.DirectEntrySequence)
	assert.Equal(t, int64(42), *res.Clone.DirectEntrySequence)
	assert.Nil(t, res.Clone.IdeaID)
	assert.Equal(t, "18:45", res.Clone.PublishTime)
	assert.Equal(t, day(2026, 10, 16).AddDate(0, 0, 180), *res.Clone.RepurposeDate)
	assert.Equal(t, testNow.AddDate(0, 0, 180), *res.Source.RepurposeDate)
	assert.Equal(t, int64(7), *res.Source.DirectEntrySequence)
}

func TestRecycle_RejectsIneligible(t *testing.T) {
	r, store := newTestRecycler(t)
	ctx := context.Background()

	notYet, err := store.CreatePost(ctx, &domain.Post{Status: domain.PostPublished, IsEvergreen: true, RepurposeDate: ptr(day(2026, 12, 1))})
	require.NoError(t, err)
	draft, err := store.CreatePost(ctx, &domain.Post{Status: domain.PostDraft, IsEvergreen: true, RepurposeDate: ptr(day(2026, 1, 1))})
	require.NoError(t, err)

	for _, id := range []string{notYet.ID, draft.ID} {
		_, err := r.Recycle(ctx, id, day(2026, 10, 20), "")
		assert.True(t, domain.IsValidation(err))
	}

	posts, err := store.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 2, "no clone may be written")
}

func TestRecycle_RejectsPastTarget(t *testing.T) {
	r, store := newTestRecycler(t)
	_, source := seedIdeaPosts(t, store)

	_, err := r.Recycle(context.Background(), source.ID, day(2026, 10, 15), "")
	assert.True(t, domain.IsValidation(err))
}

func TestRecycle_NotFound(t *testing.T) {
	r, _ := newTestRecycler(t)

	_, err := r.Recycle(context.Background(), "missing", day(2026, 10, 20), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnooze(t *testing.T) {
	r, store := newTestRecycler(t)
	ctx := context.Background()
	_, source := seedIdeaPosts(t, store)

	got, err := r.Snooze(ctx, source.ID, ptr(14))
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 0, 14), *got.RepurposeDate)

	eligible, err := r.Eligible(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	got, err = r.Snooze(ctx, source.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 0, 90), *got.RepurposeDate, "default comes from settings")
}

func TestSnooze_Validation(t *testing.T) {
	r, store := newTestRecycler(t)
	ctx := context.Background()
	_, source := seedIdeaPosts(t, store)

	_, err := r.Snooze(ctx, source.ID, ptr(0))
	assert.True(t, domain.IsValidation(err))

	plain, err := store.CreatePost(ctx, &domain.Post{Status: domain.PostPublished})
	require.NoError(t, err)
	_, err = r.Snooze(ctx, plain.ID, ptr(3))
	assert.True(t, domain.IsValidation(err))
}

func TestDismiss_RemovesFromEligible(t *testing.T) {
	r, store := newTestRecycler(t)
	ctx := context.Background()
	_, source := seedIdeaPosts(t, store)

	eligible, err := r.Eligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)

	got, err := r.Dismiss(ctx, source.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEvergreen)
	assert.Nil(t, got.RepurposeDate)

	eligible, err = r.Eligible(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	_, err = r.Recycle(ctx, source.ID, day(2026, 10, 20), "")
	assert.True(t, domain.IsValidation(err))
}
