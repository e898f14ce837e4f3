package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shongeorg/posts-api/internal/middleware"
	"github.com/shongeorg/posts-api/internal/post"
)

// Pinger reports database reachability for /healthz.
type Pinger func(ctx context.Context) error

// NewRouter builds the engine with the middleware every response goes through.
func NewRouter(container *Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware())

	r.GET("/healthz", healthz(container.Ping))
	RegisterRoutes(r.Group("/api"), container.PostHandler)
	return r
}

func RegisterRoutes(router *gin.RouterGroup, h *post.Handler) {
	router.GET("", h.Home)
	router.GET("/", h.Home)

	postRoutes := router.Group("/posts")
	postRoutes.GET("", h.ListPosts)
	postRoutes.POST("", h.CreatePost)
	postRoutes.GET("/:postId", h.GetPost)
	postRoutes.PATCH("/:postId", h.UpdatePost)
	postRoutes.DELETE("/:postId", h.DeletePost)
}

func healthz(ping Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
