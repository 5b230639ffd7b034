package model

import "time"

// Post is authored content owned by a user and always attached to a club.
// LikesCount and CommentsCount are resolved from the relation tables at read
// time; SharesCount is maintained transactionally alongside the share insert.
type Post struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	ClubID      string    `gorm:"column:club_id;size:190;not null;index"`
	AuthorID    string    `gorm:"column:author_id;size:190;not null;index:idx_post_author_time"`
	Content     string    `gorm:"column:content;type:text;not null"`
	ImageURL    string    `gorm:"column:image_url;size:512"`
	SharesCount int64     `gorm:"column:shares_count;not null;default:0"`
	IsPinned    bool      `gorm:"column:is_pinned;not null;default:false"`
	CreatedAt   time.Time `gorm:"index:idx_post_author_time"`
	UpdatedAt   time.Time
}

func (Post) TableName() string {
	return "posts"
}

// Comment carries a denormalized like counter kept in lockstep with the
// comment_likes relation set inside the same transaction.
type Comment struct {
	ID         string `gorm:"column:id;primaryKey;size:190;not null"`
	PostID     string `gorm:"column:post_id;size:190;not null;index"`
	UserID     string `gorm:"column:user_id;size:190;not null;index"`
	Content    string `gorm:"column:content;type:text;not null"`
	LikesCount int64  `gorm:"column:likes_count;not null;default:0"`
	CreatedAt  time.Time
}

func (Comment) TableName() string {
	return "comments"
}

// PostLike presence is the like state; there is no separate boolean.
type PostLike struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	PostID    string `gorm:"column:post_id;size:190;not null;index;uniqueIndex:ux_post_like_pair"`
	UserID    string `gorm:"column:user_id;size:190;not null;uniqueIndex:ux_post_like_pair"`
	CreatedAt time.Time
}

func (PostLike) TableName() string {
	return "post_likes"
}

type CommentLike struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	CommentID string `gorm:"column:comment_id;size:190;not null;index;uniqueIndex:ux_comment_like_pair"`
	UserID    string `gorm:"column:user_id;size:190;not null;uniqueIndex:ux_comment_like_pair"`
	CreatedAt time.Time
}

func (CommentLike) TableName() string {
	return "comment_likes"
}

// Share is one-way: the first share per user increments the post counter,
// later attempts report the existing row.
type Share struct {
	ID        string `gorm:"column:id;primaryKey;size:190;not null"`
	PostID    string `gorm:"column:post_id;size:190;not null;index;uniqueIndex:ux_share_pair"`
	UserID    string `gorm:"column:user_id;size:190;not null;uniqueIndex:ux_share_pair"`
	CreatedAt time.Time
}

func (Share) TableName() string {
	return "post_shares"
}
