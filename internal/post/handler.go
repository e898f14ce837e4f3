package post

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shongeorg/posts-api/internal/logs"
)

const (
	EventCreated = "post.created"
	EventUpdated = "post.updated"
	EventDeleted = "post.deleted"
)

// Store is the persistence the handlers need. *Repo implements it.
type Store interface {
	List(ctx context.Context) ([]Post, error)
	Get(ctx context.Context, id string) (*Post, error)
	Create(ctx context.Context, f Fields) (*Post, error)
	Update(ctx context.Context, id string, f Fields) (*Post, error)
	Delete(ctx context.Context, id string) (*Post, error)
}

// Cache is an optional read-through cache for single posts. Get returns
// (nil, nil) on a miss.
//
// Every write bumps the id's version in Invalidate. A reader takes Version
// before reading the store and fills with SetIfVersion, which is a no-op
// once a write has landed in between, so a late fill can never put back a
// row that an update or delete already replaced.
type Cache interface {
	Get(ctx context.Context, id string) (*Post, error)
	Version(ctx context.Context, id string) (int64, error)
	SetIfVersion(ctx context.Context, p *Post, version int64) (bool, error)
	Invalidate(ctx context.Context, id string) error
}

// Publisher receives a notification after every successful write.
type Publisher interface {
	Publish(event string, p *Post) error
}

type Handler struct {
	store  Store
	cache  Cache
	events Publisher
}

type Option func(*Handler)

func WithCache(c Cache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.events = p }
}

func NewHandler(store Store, opts ...Option) *Handler {
	h := &Handler{store: store}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Home GET /api
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Post service is up and running"})
}

// ListPosts GET /api/posts
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.store.List(c.Request.Context())
	if err != nil {
		internalError(c, "Error fetching posts", err, nil)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost GET /api/posts/:postId
func (h *Handler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("postId")

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, postID)
		if err != nil {
			logs.LogJSON("WARN", "Cache read failed", map[string]interface{}{
				"error":  err.Error(),
				"postID": postID,
			})
		} else if cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	var (
		version    int64
		versionErr error
	)
	if h.cache != nil {
		version, versionErr = h.cache.Version(ctx, postID)
	}

	post, err := h.store.Get(ctx, postID)
	if err != nil {
		h.fail(c, "Error fetching post", postID, err)
		return
	}

	if h.cache != nil && versionErr == nil {
		if _, err := h.cache.SetIfVersion(ctx, post, version); err != nil {
			logs.LogJSON("WARN", "Cache write failed", map[string]interface{}{
				"error":  err.Error(),
				"postID": postID,
			})
		}
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost POST /api/posts
func (h *Handler) CreatePost(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	post, err := h.store.Create(c.Request.Context(), fields)
	if err != nil {
		internalError(c, "Error creating post", err, nil)
		return
	}

	h.publish(EventCreated, post)
	c.JSON(http.StatusOK, post)
}

// UpdatePost PATCH /api/posts/:postId
func (h *Handler) UpdatePost(c *gin.Context) {
	postID := c.Param("postId")
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	post, err := h.store.Update(c.Request.Context(), postID, fields)
	if err != nil {
		h.fail(c, "Error updating post", postID, err)
		return
	}

	h.invalidate(c.Request.Context(), postID)
	h.publish(EventUpdated, post)
	c.JSON(http.StatusOK, gin.H{
		"message":     "Post updated successfully",
		"updatedPost": post,
	})
}

// DeletePost DELETE /api/posts/:postId
func (h *Handler) DeletePost(c *gin.Context) {
	postID := c.Param("postId")

	post, err := h.store.Delete(c.Request.Context(), postID)
	if err != nil {
		h.fail(c, "Error deleting post", postID, err)
		return
	}

	h.invalidate(c.Request.Context(), postID)
	h.publish(EventDeleted, post)
	c.JSON(http.StatusOK, gin.H{
		"message":     "Post deleted successfully",
		"deletedPost": post,
	})
}

func bindFields(c *gin.Context) (Fields, bool) {
	var input Input
	if err := c.ShouldBindJSON(&input); err != nil {
		// No separate validation error kind: a bad body is an internal error.
		internalError(c, "Invalid request body", err, nil)
		return Fields{}, false
	}
	return Fields{
		Title:   input.Title,
		Content: *input.Content,
		Author:  *input.Author,
	}, true
}

func (h *Handler) fail(c *gin.Context, message, postID string, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		logs.LogJSON("WARN", "Post not found", map[string]interface{}{
			"route":  c.FullPath(),
			"postID": postID,
		})
		return
	}
	internalError(c, message, err, map[string]interface{}{"postID": postID})
}

func internalError(c *gin.Context, message string, err error, extra map[string]interface{}) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	fields := ErrorFields(err)
	fields["route"] = c.FullPath()
	for k, v := range extra {
		fields[k] = v
	}
	logs.LogJSON("ERROR", message, fields)
}

func (h *Handler) invalidate(ctx context.Context, postID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, postID); err != nil {
		logs.LogJSON("ERROR", "Cache invalidation failed", map[string]interface{}{
			"error":  err.Error(),
			"postID": postID,
		})
	}
}

func (h *Handler) publish(event string, post *Post) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(event, post); err != nil {
		logs.LogJSON("ERROR", "Event publish failed", map[string]interface{}{
			"error":  err.Error(),
			"event":  event,
			"postID": post.ID,
		})
	}
}
