package post

import (
	"time"
)

type Post struct {
	ID       string    `json:"post_id" gorm:"column:post_id;primaryKey"`
	Title    string    `json:"title" gorm:"column:title;not null"`
	Content  string    `json:"content" gorm:"column:content"`
	Author   string    `json:"author" gorm:"column:author"`
	Slug     string    `json:"slug" gorm:"column:slug"`
	CreateAt time.Time `json:"create_at" gorm:"column:create_at"`
	UpdateAt time.Time `json:"update_at" gorm:"column:update_at"`
}

// TableName keeps the quoted, capitalised table name used by the existing schema.
func (Post) TableName() string {
	return "Post"
}

// Input is the body accepted by create and update. Every field must be present.
// Title must be non-empty; content and author may be the empty string.
type Input struct {
	Title   string  `json:"title" binding:"required"`
	Content *string `json:"content" binding:"required"`
	Author  *string `json:"author" binding:"required"`
}
