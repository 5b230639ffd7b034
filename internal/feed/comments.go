package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
)

// Comment is a post comment enriched with author and viewer context.
type Comment struct {
	CommentID      string    `json:"commentId"`
	PostID         string    `json:"postId"`
	UserID         string    `json:"userId"`
	AuthorName     string    `json:"authorName"`
	AuthorPhotoURL string    `json:"authorPhotoUrl"`
	Content        string    `json:"content"`
	LikesCount     int64     `json:"likesCount"`
	IsLikedByUser  bool      `json:"isLikedByUser"`
	CreatedAt      time.Time `json:"createdAt"`
}

type commentRow struct {
	model.Comment
	AuthorName     string
	AuthorPhotoURL string
}

// ListComments returns a post's comments, most recent first, each annotated
// with the viewer's like state.
func (s *Service) ListComments(ctx context.Context, viewerID, postID string) ([]Comment, int64, error) {
	var rows []commentRow
	err := s.db.WithContext(ctx).Model(&model.Comment{}).
		Select("comments.*, u.display_name AS author_name, u.photo_url AS author_photo_url").
		Joins("LEFT JOIN users u ON comments.user_id = u.uid").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	comments := make([]Comment, 0, len(rows))
	for _, row := range rows {
		var likedCount int64
		if err := s.db.WithContext(ctx).Model(&model.CommentLike{}).
			Where("comment_id = ? AND user_id = ?", row.ID, viewerID).
			Count(&likedCount).Error; err != nil {
			return nil, 0, err
		}
		comments = append(comments, Comment{
			CommentID:      row.ID,
			PostID:         row.PostID,
			UserID:         row.UserID,
			AuthorName:     row.AuthorName,
			AuthorPhotoURL: row.AuthorPhotoURL,
			Content:        row.Content,
			LikesCount:     row.LikesCount,
			IsLikedByUser:  likedCount > 0,
			CreatedAt:      row.CreatedAt,
		})
	}
	return comments, int64(len(comments)), nil
}

// AddComment validates and persists a comment, then notifies the post owner.
func (s *Service) AddComment(ctx context.Context, author model.User, postID, content string) (Comment, error) {
	if strings.TrimSpace(content) == "" {
		return Comment{}, fmt.Errorf("%w: comment content cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > maxCommentContentLength {
		return Comment{}, fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidContent, maxCommentContentLength)
	}

	var post model.Post
	if err := s.db.WithContext(ctx).Select("id", "author_id").Where("id = ?", postID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Comment{}, ErrPostNotFound
		}
		return Comment{}, err
	}

	commentID, err := s.ids.NewID()
	if err != nil {
		return Comment{}, err
	}
	now := s.now().UTC()
	comment := model.Comment{
		ID:        commentID,
		PostID:    postID,
		UserID:    author.UID,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return Comment{}, err
	}

	if s.notifier != nil && post.AuthorID != author.UID {
		s.notifier.CommentAdded(ctx, author, post.AuthorID, postID, preview(content))
	}

	return Comment{
		CommentID:      commentID,
		PostID:         postID,
		UserID:         author.UID,
		AuthorName:     author.DisplayName,
		AuthorPhotoURL: author.PhotoURL,
		Content:        content,
		LikesCount:     0,
		IsLikedByUser:  false,
		CreatedAt:      now,
	}, nil
}

// DeleteComment removes a comment and its likes. Only the author may delete.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID string) error {
	var comment model.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	if comment.UserID != actorID {
		return fmt.Errorf("%w: only the author can delete a comment", ErrForbidden)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", commentID).Delete(&model.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", commentID).Delete(&model.Comment{}).Error
	})
}
