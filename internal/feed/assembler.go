package feed

import (
	"context"

	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
)

const defaultFeedLimit = 20

const feedVisibilityCondition = `posts.author_id = ?
	OR posts.author_id IN (SELECT followee_id FROM user_follows WHERE follower_id = ?)
	OR posts.club_id IN (SELECT club_id FROM user_following_clubs WHERE user_id = ?)`

// Feed returns the viewer's home feed: posts authored by the viewer, by any
// user the viewer follows, or owned by any club the viewer follows, unioned
// without duplicates and ordered by recency. An empty follow graph leaves
// only self-authored posts. Read-only, side-effect free.
func (s *Service) Feed(ctx context.Context, viewerID string, limit, offset int) ([]Post, int64, error) {
	limit, offset = normalizePage(limit, offset)
	var total int64
	err := s.db.WithContext(ctx).Model(&model.Post{}).
		Where(feedVisibilityCondition, viewerID, viewerID, viewerID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var rows []postRow
	err = s.enrichedQuery(ctx).
		Where(feedVisibilityCondition, viewerID, viewerID, viewerID).
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	posts, err := s.decorateAll(ctx, viewerID, rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Explore returns the unfiltered post set ordered by recency with the same
// viewer enrichment as Feed. It intentionally ignores the follow graph.
func (s *Service) Explore(ctx context.Context, viewerID string, limit, offset int) ([]Post, int64, error) {
	limit, offset = normalizePage(limit, offset)
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Post{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []postRow
	err := s.enrichedQuery(ctx).
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	posts, err := s.decorateAll(ctx, viewerID, rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) scopedPosts(ctx context.Context, viewerID string, scope func(*gorm.DB) *gorm.DB, limit, offset int) ([]Post, int64, error) {
	limit, offset = normalizePage(limit, offset)
	var total int64
	if err := scope(s.db.WithContext(ctx).Model(&model.Post{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []postRow
	err := scope(s.enrichedQuery(ctx)).
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	posts, err := s.decorateAll(ctx, viewerID, rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}
