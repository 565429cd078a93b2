package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/content-alchemy/internal/allocator"
	"github.com/UkralStul/content-alchemy/internal/digest"
	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/evergreen"
	"github.com/UkralStul/content-alchemy/internal/ideas"
	"github.com/UkralStul/content-alchemy/internal/lifecycle"
	"github.com/UkralStul/content-alchemy/internal/logging"
	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage/inmemory"
	"github.com/UkralStul/content-alchemy/internal/strategy"
	"github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

type testAPI struct {
	store   *inmemory.Store
	server  *Server
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	store := inmemory.New()
	logger := logging.Discard()
	validator := schedule.NewValidator(time.UTC, func() time.Time { return testNow })
	alloc := allocator.New(store, logger, 0)

	srv := NewServer(Server{
		Store:     store,
		Posts:     lifecycle.New(store, alloc, validator, logger),
		Evergreen: evergreen.New(store, alloc, validator, logger),
		Ideas:     ideas.New(store, alloc, validator.Now, logger),
		Strategy:  strategy.New(store, validator, logger),
		Digest:    digest.NewBuilder(store, validator, logger),
		Observer:  notify.NewObserver(8),
		Validator: validator,
	}, logger)
	return &testAPI{store: store, server: srv, handler: srv.Router()}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/posts", map[string]any{"platform": "LinkedIn", "postTitle": "Hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decodeBody[domain.Post](t, rec)
	require.NotNil(t, post.DirectEntrySequence)
	assert.Equal(t, int64(1), *post.DirectEntrySequence)
	assert.Equal(t, domain.PostDraft, post.Status)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/schedule", map[string]string{"date": "2026-10-20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	post = decodeBody[domain.Post](t, rec)
	assert.Equal(t, domain.PostScheduled, post.Status)
	assert.Equal(t, "09:00", post.PublishTime)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.PostArchived, decodeBody[domain.Post](t, rec).Status)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/archive", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "status", decodeBody[errorBody](t, rec).Field)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/posts/"+post.ID+"/lock", map[string]bool{"locked": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[domain.Post](t, rec).IsLocked)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/backlog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	post = decodeBody[domain.Post](t, rec)
	assert.Equal(t, domain.PostDraft, post.Status)
	assert.Nil(t, post.PublishDate)
	assert.False(t, post.IsLocked)

	rec = api.do(t, http.MethodDelete, "/api/posts/"+post.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/posts/"+post.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedule_RejectsPastDate(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/posts", map[string]any{"platform": "blog"})
	post := decodeBody[domain.Post](t, rec)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/schedule", map[string]string{"date": "2026-10-15"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "publishDate", decodeBody[errorBody](t, rec).Field)

	rec = api.do(t, http.MethodPost, "/api/posts/"+post.ID+"/schedule", map[string]string{"date": "16/10/2026"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPayloadValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/posts", map[string]any{"postTitle": "no platform"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "platform", decodeBody[errorBody](t, rec).Field)

	rec = api.do(t, http.MethodPost, "/api/posts", map[string]any{"platform": "myspace"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/posts", map[string]any{"platform": "blog", "unknown": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/settings", map[string]any{"digestRecipients": []string{"not-an-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/posts?status=lost", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestIdeaPostsAndExpand(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/ideas", map[string]any{
		"title":     "Series",
		"resources": []map[string]string{{"uri": "https://cdn.example.com/a.mp4"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	idea := decodeBody[domain.Idea](t, rec)
	assert.Equal(t, int64(101), idea.IdeaNumber)
	assert.Equal(t, domain.ResourceVideo, idea.Resources[0].Type)

	for i := 0; i < 2; i++ {
		rec = api.do(t, http.MethodPost, "/api/ideas/"+idea.ID+"/posts", map[string]any{"platform": "twitter"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, i+1, decodeBody[domain.Post](t, rec).Sequence)
	}
	rec = api.do(t, http.MethodPost, "/api/posts", map[string]any{"platform": "blog"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/posts?expand=idea", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeBody[[]struct {
		ID   string       `json:"id"`
		Idea *ideaSummary `json:"idea"`
	}](t, rec)
	require.Len(t, views, 3)
	withIdea := 0
	for _, v := range views {
		if v.Idea != nil {
			withIdea++
			assert.Equal(t, int64(101), v.Idea.IdeaNumber)
		}
	}
	assert.Equal(t, 2, withIdea)

	rec = api.do(t, http.MethodGet, "/api/posts?ideaId="+idea.ID+"&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Post](t, rec), 1)

	rec = api.do(t, http.MethodDelete, "/api/ideas/"+idea.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/ideas/"+idea.ID+"/status", map[string]string{"status": "ready"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.IdeaReady, decodeBody[domain.Idea](t, rec).Status)

	rec = api.do(t, http.MethodPost, "/api/ideas/"+idea.ID+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[domain.Idea](t, rec).IsFavorite)
}

func TestEvergreenOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	published := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	seq := int64(5)
	source, err := api.store.CreatePost(ctx, &domain.Post{
		DirectEntrySequence: &seq,
		Status:              domain.PostPublished,
		Platform:            domain.PlatformBlog,
		PostTitle:           "Guide",
		PublishDate:         &published,
		IsEvergreen:         true,
		RepurposeDate:       &due,
	})
	require.NoError(t, err)

	rec := api.do(t, http.MethodGet, "/api/evergreen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Post](t, rec), 1)

	rec = api.do(t, http.MethodPost, "/api/evergreen/"+source.ID+"/recycle", map[string]string{"date": "2026-10-30", "time": "07:30"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[evergreen.Result](t, rec)
	assert.Equal(t, "Guide (Repurposed)", res.Clone.PostTitle)
	assert.Equal(t, "07:30", res.Clone.PublishTime)
	assert.NotEqual(t, int64(5), *res.Clone.DirectEntrySequence)

	rec = api.do(t, http.MethodGet, "/api/evergreen", nil)
	assert.Empty(t, decodeBody[[]domain.Post](t, rec))

	rec = api.do(t, http.MethodPost, "/api/evergreen/"+source.ID+"/snooze", map[string]int{"days": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/evergreen/"+source.ID+"/snooze", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, testNow.AddDate(0, 0, 90), *decodeBody[domain.Post](t, rec).RepurposeDate)

	rec = api.do(t, http.MethodPost, "/api/evergreen/"+source.ID+"/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dismissed := decodeBody[domain.Post](t, rec)
	assert.False(t, dismissed.IsEvergreen)
	assert.Nil(t, dismissed.RepurposeDate)
}

func TestStrategyOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/api/settings/pillars", map[string]any{"id": "p-edu", "name": "Education", "color": "#00ff00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/strategy/sets", map[string]string{"name": "Growth"})
	require.Equal(t, http.StatusCreated, rec.Code)
	set := decodeBody[domain.AllocationSet](t, rec)
	assert.True(t, set.IsActive)

	rec = api.do(t, http.MethodPut, "/api/strategy/sets/"+set.ID+"/targets/Education", map[string]float64{"percentage": 200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	target := decodeBody[domain.PillarTarget](t, rec)
	assert.Equal(t, "p-edu", target.PillarID)
	assert.Equal(t, float64(150), target.TargetPercentage)

	rec = api.do(t, http.MethodGet, "/api/strategy/sets/"+set.ID+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[strategy.Balance](t, rec).Balanced)

	rec = api.do(t, http.MethodGet, "/api/strategy/variance?window=30d", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[struct {
		Rows []struct {
			Target int `json:"target"`
			Actual int `json:"actual"`
		} `json:"rows"`
		InsufficientData bool `json:"insufficientData"`
	}](t, rec)
	assert.True(t, report.InsufficientData)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, 150, report.Rows[0].Target)
	assert.Equal(t, 0, report.Rows[0].Actual)

	rec = api.do(t, http.MethodGet, "/api/strategy/variance?window=14d", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/strategy/sets/missing/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDigestPreviewAndHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/digest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-10-16", decodeBody[digest.Digest](t, rec).Date)

	rec = api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrTransactionConflict))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.NotFound("post", "x")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.NewValidationError("f", "bad")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestSubscribe_ReceivesPostEvents(t *testing.T) {
	api := newTestAPI(t)
	ts := httptest.NewServer(api.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/subscribe?topics=posts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return api.server.Observer.Subscribers(notify.TopicPosts) == 1
	}, time.Second, 5*time.Millisecond)

	rec := api.do(t, http.MethodPost, "/api/posts", map[string]any{"platform": "blog"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[domain.Post](t, rec)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e notify.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, notify.TopicPosts, e.Topic)
	assert.Equal(t, "created", e.Action)
	assert.Equal(t, created.ID, e.ID)
}
