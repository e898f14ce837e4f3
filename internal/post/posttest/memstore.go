// Package posttest provides an in-memory post.Store for handler tests.
package posttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shongeorg/posts-api/internal/post"
)

type MemStore struct {
	mu    sync.Mutex
	posts map[string]post.Post
	clock time.Time

	// Err, when set, is returned by every operation.
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{
		posts: make(map[string]post.Post),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so successive writes get distinct timestamps.
func (s *MemStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *MemStore) List(_ context.Context) ([]post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdateAt.After(out[j].UpdateAt)
	})
	return out, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	return &p, nil
}

func (s *MemStore) Create(_ context.Context, f post.Fields) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	now := s.tick()
	p := post.Post{
		ID:       uuid.NewString(),
		Title:    f.Title,
		Content:  f.Content,
		Author:   f.Author,
		Slug:     post.Slugify(f.Title),
		CreateAt: now,
		UpdateAt: now,
	}
	s.posts[p.ID] = p
	return &p, nil
}

func (s *MemStore) Update(_ context.Context, id string, f post.Fields) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	p.Title = f.Title
	p.Content = f.Content
	p.Author = f.Author
	p.Slug = post.Slugify(f.Title)
	p.UpdateAt = s.tick()
	s.posts[id] = p
	return &p, nil
}

func (s *MemStore) Delete(_ context.Context, id string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	delete(s.posts, id)
	return &p, nil
}
