package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when an id-scoped statement matched no row.
var ErrNotFound = errors.New("post not found")

// Fields are the caller-supplied columns of a post. All of them are written
// on create and on every update.
type Fields struct {
	Title   string
	Content string
	Author  string
}

// Repo issues exactly one SQL statement per operation against the Post table.
type Repo struct {
	DB    *gorm.DB
	now   func() time.Time
	newID func() string
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{
		DB:    db,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: uuid.NewString,
	}
}

// List returns every post, most recently updated first.
func (r *Repo) List(ctx context.Context) ([]Post, error) {
	posts := []Post{}
	if err := r.DB.WithContext(ctx).Order("update_at DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Post, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var post Post
	err := r.DB.WithContext(ctx).Where("post_id = ?", id).Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return &post, nil
}

func (r *Repo) Create(ctx context.Context, f Fields) (*Post, error) {
	now := r.now()
	post := Post{
		ID:       r.newID(),
		Title:    f.Title,
		Content:  f.Content,
		Author:   f.Author,
		Slug:     Slugify(f.Title),
		CreateAt: now,
		UpdateAt: now,
	}
	if err := r.DB.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

// Update overwrites every mutable column and refreshes update_at in a single
// UPDATE ... RETURNING statement. create_at is never touched.
func (r *Repo) Update(ctx context.Context, id string, f Fields) (*Post, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var post Post
	res := r.DB.WithContext(ctx).
		Model(&post).
		Clauses(clause.Returning{}).
		Where("post_id = ?", id).
		Updates(map[string]interface{}{
			"title":     f.Title,
			"content":   f.Content,
			"author":    f.Author,
			"slug":      Slugify(f.Title),
			"update_at": r.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &post, nil
}

// Delete hard-deletes the row and returns it as it was just before removal.
func (r *Repo) Delete(ctx context.Context, id string) (*Post, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var post Post
	res := r.DB.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("post_id = ?", id).
		Delete(&post)
	if res.Error != nil {
		return nil, fmt.Errorf("delete post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &post, nil
}

// validID reports whether id can ever match a minted post_id.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ErrorFields extracts loggable detail from a driver error.
func ErrorFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields["sqlstate"] = pgErr.Code
		if pgErr.ConstraintName != "" {
			fields["constraint"] = pgErr.ConstraintName
		}
	}
	return fields
}
