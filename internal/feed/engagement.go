package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeState is the outcome of a symmetric engagement toggle: the post-toggle
// boolean and the refreshed count.
type LikeState struct {
	Liked bool  `json:"isLikedByUser"`
	Count int64 `json:"likesCount"`
}

// RSVPState is the outcome of an RSVP toggle.
type RSVPState struct {
	Going bool  `json:"hasRSVPd"`
	Count int64 `json:"rsvpCount"`
}

// ShareResult reports a one-way share. AlreadyShared is true when the pair
// existed before the call; the count is unchanged in that case.
type ShareResult struct {
	ShareID       string `json:"shareId"`
	SharesCount   int64  `json:"sharesCount"`
	AlreadyShared bool   `json:"alreadyShared"`
}

// TogglePostLike alternates the (post, user) like state. The unique pair
// index on post_likes guards concurrent double-submission; the count is
// resolved from the relation table after the write.
func (s *Service) TogglePostLike(ctx context.Context, actor model.User, postID string) (LikeState, error) {
	var post model.Post
	if err := s.db.WithContext(ctx).Select("id", "author_id").Where("id = ?", postID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LikeState{}, ErrPostNotFound
		}
		return LikeState{}, err
	}

	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removal := tx.Where("post_id = ? AND user_id = ?", postID, actor.UID).Delete(&model.PostLike{})
		if removal.Error != nil {
			return removal.Error
		}
		if removal.RowsAffected > 0 {
			return nil
		}
		like := model.PostLike{PostID: postID, UserID: actor.UID, CreatedAt: s.now().UTC()}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if insert.Error != nil {
			return insert.Error
		}
		// RowsAffected == 0 means a racing insert won; the pair is engaged
		// either way.
		liked = true
		return nil
	})
	if err != nil {
		return LikeState{}, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.PostLike{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return LikeState{}, err
	}

	if liked && s.notifier != nil && post.AuthorID != actor.UID {
		s.notifier.PostLiked(ctx, actor, post.AuthorID, postID)
	}
	return LikeState{Liked: liked, Count: count}, nil
}

// ToggleCommentLike alternates the (comment, user) like state and maintains
// the comment's denormalized counter in the same transaction, clamped at
// zero to tolerate prior drift.
func (s *Service) ToggleCommentLike(ctx context.Context, actor model.User, commentID string) (LikeState, error) {
	var comment model.Comment
	if err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", commentID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LikeState{}, ErrCommentNotFound
		}
		return LikeState{}, err
	}

	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removal := tx.Where("comment_id = ? AND user_id = ?", commentID, actor.UID).Delete(&model.CommentLike{})
		if removal.Error != nil {
			return removal.Error
		}
		if removal.RowsAffected > 0 {
			return s.adjustCommentLikes(tx, commentID, -1)
		}
		like := model.CommentLike{CommentID: commentID, UserID: actor.UID, CreatedAt: s.now().UTC()}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if insert.Error != nil {
			return insert.Error
		}
		liked = true
		if insert.RowsAffected == 0 {
			// A racing like already incremented the counter.
			return nil
		}
		return s.adjustCommentLikes(tx, commentID, +1)
	})
	if err != nil {
		return LikeState{}, err
	}

	var refreshed model.Comment
	if err := s.db.WithContext(ctx).Select("likes_count").Where("id = ?", commentID).First(&refreshed).Error; err != nil {
		return LikeState{}, err
	}

	if liked && s.notifier != nil && comment.UserID != actor.UID {
		s.notifier.CommentLiked(ctx, actor, comment.UserID, commentID)
	}
	return LikeState{Liked: liked, Count: refreshed.LikesCount}, nil
}

func (s *Service) adjustCommentLikes(tx *gorm.DB, commentID string, delta int64) error {
	return tx.Model(&model.Comment{}).
		Where("id = ?", commentID).
		UpdateColumn("likes_count", gorm.Expr("MAX(likes_count + ?, 0)", delta)).Error
}

// SharePost records a one-way share. The first share per user increments the
// post's counter inside the insert transaction; repeats are idempotent
// no-ops reporting the existing share.
func (s *Service) SharePost(ctx context.Context, userID, postID string) (ShareResult, error) {
	var post model.Post
	if err := s.db.WithContext(ctx).Select("id", "shares_count").Where("id = ?", postID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ShareResult{}, ErrPostNotFound
		}
		return ShareResult{}, err
	}

	shareID, err := s.ids.NewID()
	if err != nil {
		return ShareResult{}, err
	}
	share := model.Share{ID: shareID, PostID: postID, UserID: userID, CreatedAt: s.now().UTC()}

	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&share)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("shares_count", gorm.Expr("shares_count + 1")).Error
	})
	if err != nil {
		return ShareResult{}, err
	}

	var refreshed model.Post
	if err := s.db.WithContext(ctx).Select("shares_count").Where("id = ?", postID).First(&refreshed).Error; err != nil {
		return ShareResult{}, err
	}
	if created {
		return ShareResult{ShareID: shareID, SharesCount: refreshed.SharesCount, AlreadyShared: false}, nil
	}

	var existing model.Share
	if err := s.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error; err != nil {
		return ShareResult{}, err
	}
	return ShareResult{ShareID: existing.ID, SharesCount: refreshed.SharesCount, AlreadyShared: true}, nil
}

// ToggleRSVP alternates the (event, user) RSVP state with the same
// transactional counter maintenance as comment likes.
func (s *Service) ToggleRSVP(ctx context.Context, userID, eventID string) (RSVPState, error) {
	var event model.Event
	if err := s.db.WithContext(ctx).Select("id").Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RSVPState{}, ErrEventNotFound
		}
		return RSVPState{}, err
	}

	going := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removal := tx.Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&model.EventRSVP{})
		if removal.Error != nil {
			return removal.Error
		}
		if removal.RowsAffected > 0 {
			return s.adjustRSVPCount(tx, eventID, -1)
		}
		rsvp := model.EventRSVP{EventID: eventID, UserID: userID, CreatedAt: s.now().UTC()}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rsvp)
		if insert.Error != nil {
			return insert.Error
		}
		going = true
		if insert.RowsAffected == 0 {
			return nil
		}
		return s.adjustRSVPCount(tx, eventID, +1)
	})
	if err != nil {
		return RSVPState{}, err
	}

	var refreshed model.Event
	if err := s.db.WithContext(ctx).Select("rsvp_count").Where("id = ?", eventID).First(&refreshed).Error; err != nil {
		return RSVPState{}, err
	}
	return RSVPState{Going: going, Count: refreshed.RSVPCount}, nil
}

func (s *Service) adjustRSVPCount(tx *gorm.DB, eventID string, delta int64) error {
	return tx.Model(&model.Event{}).
		Where("id = ?", eventID).
		UpdateColumn("rsvp_count", gorm.Expr("MAX(rsvp_count + ?, 0)", delta)).Error
}

// IsLikedBy reports whether user has liked the post.
func (s *Service) IsLikedBy(ctx context.Context, userID, postID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("feed: like lookup: %w", err)
	}
	return n > 0, nil
}
