package api

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shongeorg/posts-api/internal/cache"
	"github.com/shongeorg/posts-api/internal/config"
	"github.com/shongeorg/posts-api/internal/database"
	"github.com/shongeorg/posts-api/internal/events"
	"github.com/shongeorg/posts-api/internal/logs"
	"github.com/shongeorg/posts-api/internal/post"
)

// Container holds the process-wide resources built once at start-up.
type Container struct {
	DB          *gorm.DB
	PostHandler *post.Handler
	Ping        Pinger

	closers []func()
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	db, err := database.Connect(cfg.DSN(), cfg.DBLog)
	if err != nil {
		return nil, err
	}

	c := &Container{
		DB: db,
		Ping: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}

	var opts []post.Option
	if cfg.RedisAddr != "" {
		postCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = postCache.Close() })
		opts = append(opts, post.WithCache(postCache))
		logs.LogJSON("INFO", "Redis cache enabled", map[string]interface{}{"addr": cfg.RedisAddr})
	}
	if cfg.NatsURL != "" {
		publisher, err := events.NewNATS(cfg.NatsURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		c.closers = append(c.closers, publisher.Close)
		opts = append(opts, post.WithPublisher(publisher))
		logs.LogJSON("INFO", "NATS events enabled", nil)
	}

	c.PostHandler = post.NewHandler(post.NewRepo(db), opts...)
	return c, nil
}

// Close releases the optional collaborators. The database pool lives until exit.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
