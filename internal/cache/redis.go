package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shongeorg/posts-api/internal/post"
)

// DefaultTTL bounds how long a stale entry can survive a failed invalidation.
const DefaultTTL = 5 * time.Minute

// versionTTL must stay well above any GET's store round trip.
const versionTTL = 24 * time.Hour

// setIfVersion writes KEYS[2] only while KEYS[1] still holds ARGV[1].
var setIfVersion = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') == ARGV[1] then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

// PostCache keeps single posts in Redis under "post:<id>" and a write
// counter for each id under "postver:<id>".
type PostCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, addr, password string) (*PostCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, DefaultTTL), nil
}

func New(client *redis.Client, ttl time.Duration) *PostCache {
	return &PostCache{client: client, ttl: ttl}
}

func key(postID string) string {
	return fmt.Sprintf("post:%s", postID)
}

func versionKey(postID string) string {
	return fmt.Sprintf("postver:%s", postID)
}

// Get returns (nil, nil) on a miss.
func (c *PostCache) Get(ctx context.Context, postID string) (*post.Post, error) {
	result, err := c.client.Get(ctx, key(postID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var p post.Post
	if err := json.Unmarshal(result, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Version returns the write counter for postID, 0 if it was never written.
func (c *PostCache) Version(ctx context.Context, postID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(postID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetIfVersion caches p unless a write bumped its version since version was
// read. It reports whether the entry was stored.
func (c *PostCache) SetIfVersion(ctx context.Context, p *post.Post, version int64) (bool, error) {
	postJSON, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	stored, err := setIfVersion.Run(ctx, c.client,
		[]string{versionKey(p.ID), key(p.ID)},
		version, postJSON, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate bumps the version and drops the cached entry in one transaction.
func (c *PostCache) Invalidate(ctx context.Context, postID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(postID))
		pipe.Expire(ctx, versionKey(postID), versionTTL)
		pipe.Del(ctx, key(postID))
		return nil
	})
	return err
}

func (c *PostCache) Close() error {
	return c.client.Close()
}
