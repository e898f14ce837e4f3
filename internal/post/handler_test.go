package post_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shongeorg/posts-api/internal/post"
	"github.com/shongeorg/posts-api/internal/post/posttest"
)

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]post.Post
	versions    map[string]int64
	invalidated []string
	failGet     bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries:  make(map[string]post.Post),
		versions: make(map[string]int64),
	}
}

func (c *fakeCache) Get(_ context.Context, id string) (*post.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("redis down")
	}
	p, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *fakeCache) Version(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id], nil
}

func (c *fakeCache) SetIfVersion(_ context.Context, p *post.Post, version int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[p.ID] != version {
		return false, nil
	}
	c.entries[p.ID] = *p
	return true, nil
}

func (c *fakeCache) cached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	delete(c.entries, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// gatedStore holds every Get between reading the row and returning it
// until release is closed.
type gatedStore struct {
	*posttest.MemStore
	read    chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemStore: posttest.NewMemStore(),
		read:     make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (s *gatedStore) Get(ctx context.Context, id string) (*post.Post, error) {
	p, err := s.MemStore.Get(ctx, id)
	select {
	case s.read <- struct{}{}:
	default:
	}
	<-s.release
	return p, err
}

type fakePublisher struct {
	events []string
	err    error
}

func (p *fakePublisher) Publish(event string, _ *post.Post) error {
	p.events = append(p.events, event)
	return p.err
}

func newRouter(h *post.Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/posts", h.ListPosts)
	r.POST("/posts", h.CreatePost)
	r.GET("/posts/:postId", h.GetPost)
	r.PATCH("/posts/:postId", h.UpdatePost)
	r.DELETE("/posts/:postId", h.DeletePost)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreatePostRequiresEveryField(t *testing.T) {
	r := newRouter(post.NewHandler(posttest.NewMemStore()))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "complete", body: `{"title":"Test","content":"c","author":"a"}`, status: http.StatusOK},
		{name: "empty content allowed", body: `{"title":"Test","content":"","author":"a"}`, status: http.StatusOK},
		{name: "missing content", body: `{"title":"Test","author":"a"}`, status: http.StatusInternalServerError},
		{name: "empty author allowed", body: `{"title":"Test","content":"c","author":""}`, status: http.StatusOK},
		{name: "missing author", body: `{"title":"Test","content":"c"}`, status: http.StatusInternalServerError},
		{name: "missing title", body: `{"content":"c","author":"a"}`, status: http.StatusInternalServerError},
		{name: "malformed json", body: `{"title":`, status: http.StatusInternalServerError},
		{name: "wrong type", body: `{"title":42,"content":"c","author":"a"}`, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/posts", tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusInternalServerError {
				assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
			}
		})
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	store := posttest.NewMemStore()
	store.Err = errors.New("connection refused")
	r := newRouter(post.NewHandler(store))

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/posts", ""},
		{http.MethodPost, "/posts", `{"title":"t","content":"c","author":"a"}`},
		{http.MethodGet, "/posts/abc", ""},
		{http.MethodPatch, "/posts/abc", `{"title":"t","content":"c","author":"a"}`},
		{http.MethodDelete, "/posts/abc", ""},
	} {
		w := do(r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.method+" "+tc.path)
		assert.NotContains(t, w.Body.String(), "connection refused")
	}
}

func TestListPostsEmptyIsArray(t *testing.T) {
	r := newRouter(post.NewHandler(posttest.NewMemStore()))

	w := do(r, http.MethodGet, "/posts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNotFoundResponses(t *testing.T) {
	r := newRouter(post.NewHandler(posttest.NewMemStore()))
	body := `{"title":"t","content":"c","author":"a"}`

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		w := do(r, method, "/posts/0b3f4e2a-6f0e-4c59-9d53-1f8b5b8f3a01", body)
		assert.Equal(t, http.StatusNotFound, w.Code, method)
		assert.JSONEq(t, `{"error":"Post not found"}`, w.Body.String())
	}
}

func TestGetPostUsesCache(t *testing.T) {
	store := posttest.NewMemStore()
	cache := newFakeCache()
	r := newRouter(post.NewHandler(store, post.WithCache(cache)))

	created := decode[post.Post](t, do(r, http.MethodPost, "/posts", `{"title":"Cached","content":"c","author":"a"}`))

	w := do(r, http.MethodGet, "/posts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, cache.cached(created.ID))

	// A cache hit answers without touching the store.
	store.Err = errors.New("store must not be called")
	w = do(r, http.MethodGet, "/posts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[post.Post](t, w).ID)
	store.Err = nil

	w = do(r, http.MethodPatch, "/posts/"+created.ID, `{"title":"Fresh","content":"c","author":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{created.ID}, cache.invalidated)

	w = do(r, http.MethodGet, "/posts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", decode[post.Post](t, w).Slug)
}

func TestSlowReadDoesNotRecacheUpdatedPost(t *testing.T) {
	store := newGatedStore()
	cache := newFakeCache()
	r := newRouter(post.NewHandler(store, post.WithCache(cache)))

	created := decode[post.Post](t, do(r, http.MethodPost, "/posts", `{"title":"Test","content":"c","author":"a"}`))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(r, http.MethodGet, "/posts/"+created.ID, "") }()
	<-store.read

	// The update lands while the read above still holds the old row.
	w := do(r, http.MethodPatch, "/posts/"+created.ID, `{"title":"Test 2","content":"c","author":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)

	close(store.release)
	stale := <-done
	require.Equal(t, http.StatusOK, stale.Code)
	assert.Equal(t, "test", decode[post.Post](t, stale).Slug)
	assert.False(t, cache.cached(created.ID))

	w = do(r, http.MethodGet, "/posts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-2", decode[post.Post](t, w).Slug)
}

func TestSlowReadDoesNotRecacheDeletedPost(t *testing.T) {
	store := newGatedStore()
	cache := newFakeCache()
	r := newRouter(post.NewHandler(store, post.WithCache(cache)))

	created := decode[post.Post](t, do(r, http.MethodPost, "/posts", `{"title":"Test","content":"c","author":"a"}`))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(r, http.MethodGet, "/posts/"+created.ID, "") }()
	<-store.read

	w := do(r, http.MethodDelete, "/posts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	close(store.release)
	require.Equal(t, http.StatusOK, (<-done).Code)
	assert.False(t, cache.cached(created.ID))

	w = do(r, http.MethodGet, "/posts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPostFallsBackWhenCacheFails(t *testing.T) {
	store := posttest.NewMemStore()
	cache := newFakeCache()
	cache.failGet = true
	r := newRouter(post.NewHandler(store, post.WithCache(cache)))

	created := decode[post.Post](t, do(r, http.MethodPost, "/posts", `{"title":"T","content":"c","author":"a"}`))

	w := do(r, http.MethodGet, "/posts/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWritesPublishEvents(t *testing.T) {
	pub := &fakePublisher{}
	r := newRouter(post.NewHandler(posttest.NewMemStore(), post.WithPublisher(pub)))

	created := decode[post.Post](t, do(r, http.MethodPost, "/posts", `{"title":"T","content":"c","author":"a"}`))
	do(r, http.MethodPatch, "/posts/"+created.ID, `{"title":"T2","content":"c","author":"a"}`)
	do(r, http.MethodDelete, "/posts/"+created.ID, "")
	do(r, http.MethodDelete, "/posts/"+created.ID, "")

	assert.Equal(t, []string{post.EventCreated, post.EventUpdated, post.EventDeleted}, pub.events)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	r := newRouter(post.NewHandler(posttest.NewMemStore(), post.WithPublisher(pub)))

	w := do(r, http.MethodPost, "/posts", `{"title":"T","content":"c","author":"a"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, pub.events, 1)
}
