// Package graph persists directed follow edges (user to user, user to club)
// and resolves derived relationship counts at read time.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSelfFollow indicates an attempted follow edge with identical endpoints.
	ErrSelfFollow = errors.New("graph: cannot follow self")
	// ErrUserNotFound indicates the follow target user does not exist.
	ErrUserNotFound = errors.New("graph: user not found")
	// ErrClubNotFound indicates the follow target club does not exist.
	ErrClubNotFound = errors.New("graph: club not found")
	// ErrNotFollowing indicates an unfollow of a relation that does not exist.
	ErrNotFollowing = errors.New("graph: not following")
	// ErrAlreadyFollowing indicates a follow of a relation that already exists.
	ErrAlreadyFollowing = errors.New("graph: already following")
)

// ServiceConfig describes the dependencies required by the relationship store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages follow edges and answers relationship count queries.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the relationship store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("graph: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// UserCounts are resolved from the relation tables on every read; there is
// no cached column and therefore no staleness window.
type UserCounts struct {
	FollowersCount int64 `json:"followersCount"`
	FollowingCount int64 `json:"followingCount"`
	PostsCount     int64 `json:"postsCount"`
	ClubsFollowing int64 `json:"clubsFollowingCount"`
}

// ClubCounts aggregates a club's relation tables.
type ClubCounts struct {
	FollowersCount int64 `json:"followersCount"`
	MembersCount   int64 `json:"membersCount"`
	PostsCount     int64 `json:"postsCount"`
}

// PostCounts mixes strategies deliberately: likes and comments are counted
// from their relation tables, shares come from the transactionally
// maintained column. See the counter notes in DESIGN.md.
type PostCounts struct {
	LikesCount    int64 `json:"likesCount"`
	CommentsCount int64 `json:"commentsCount"`
	SharesCount   int64 `json:"sharesCount"`
}

// Follow creates the directed edge follower->followee. The unique pair index
// is the only concurrency guard: a duplicate insert under race is ignored
// and reported as ErrAlreadyFollowing.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) (UserCounts, error) {
	if followerID == followeeID {
		return UserCounts{}, ErrSelfFollow
	}
	var target model.User
	if err := s.db.WithContext(ctx).Select("uid").Where("uid = ?", followeeID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserCounts{}, ErrUserNotFound
		}
		return UserCounts{}, err
	}

	edge := model.FollowEdge{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: s.now().UTC()}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge)
	if result.Error != nil {
		return UserCounts{}, result.Error
	}
	if result.RowsAffected == 0 {
		return UserCounts{}, ErrAlreadyFollowing
	}
	return s.ResolveUserCounts(ctx, followeeID)
}

// Unfollow removes the directed edge. Removing an absent edge reports
// ErrNotFollowing and changes no counts.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) (UserCounts, error) {
	result := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&model.FollowEdge{})
	if result.Error != nil {
		return UserCounts{}, result.Error
	}
	if result.RowsAffected == 0 {
		return UserCounts{}, ErrNotFollowing
	}
	return s.ResolveUserCounts(ctx, followeeID)
}

// FollowClub creates the user->club edge.
func (s *Service) FollowClub(ctx context.Context, userID, clubID string) (ClubCounts, error) {
	var club model.Club
	if err := s.db.WithContext(ctx).Select("id").Where("id = ?", clubID).First(&club).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClubCounts{}, ErrClubNotFound
		}
		return ClubCounts{}, err
	}

	follow := model.ClubFollow{UserID: userID, ClubID: clubID, CreatedAt: s.now().UTC()}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&follow)
	if result.Error != nil {
		return ClubCounts{}, result.Error
	}
	if result.RowsAffected == 0 {
		return ClubCounts{}, ErrAlreadyFollowing
	}
	return s.ResolveClubCounts(ctx, clubID)
}

// UnfollowClub removes the user->club edge.
func (s *Service) UnfollowClub(ctx context.Context, userID, clubID string) (ClubCounts, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND club_id = ?", userID, clubID).
		Delete(&model.ClubFollow{})
	if result.Error != nil {
		return ClubCounts{}, result.Error
	}
	if result.RowsAffected == 0 {
		return ClubCounts{}, ErrNotFollowing
	}
	return s.ResolveClubCounts(ctx, clubID)
}

// IsFollowing reports whether follower->followee exists.
func (s *Service) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.FollowEdge{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// IsMutual reports whether both directed edges exist. Mutuality is derived,
// never stored.
func (s *Service) IsMutual(ctx context.Context, a, b string) (bool, error) {
	forward, err := s.IsFollowing(ctx, a, b)
	if err != nil || !forward {
		return false, err
	}
	return s.IsFollowing(ctx, b, a)
}

// IsFollowingClub reports whether user->club exists.
func (s *Service) IsFollowingClub(ctx context.Context, userID, clubID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.ClubFollow{}).
		Where("user_id = ? AND club_id = ?", userID, clubID).
		Count(&n).Error
	return n > 0, err
}

// FollowerIDs enumerates every follower of the user, the recipient set for
// new-post fan-out.
func (s *Service) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.FollowEdge{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// ResolveUserCounts aggregates a user's relationship tables. A missing user
// resolves to zero counts; absence of counts is not an error.
func (s *Service) ResolveUserCounts(ctx context.Context, userID string) (UserCounts, error) {
	var counts UserCounts
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.FollowEdge{}).Where("followee_id = ?", userID).Count(&counts.FollowersCount).Error; err != nil {
		return UserCounts{}, err
	}
	if err := db.Model(&model.FollowEdge{}).Where("follower_id = ?", userID).Count(&counts.FollowingCount).Error; err != nil {
		return UserCounts{}, err
	}
	if err := db.Model(&model.Post{}).Where("author_id = ?", userID).Count(&counts.PostsCount).Error; err != nil {
		return UserCounts{}, err
	}
	if err := db.Model(&model.ClubFollow{}).Where("user_id = ?", userID).Count(&counts.ClubsFollowing).Error; err != nil {
		return UserCounts{}, err
	}
	return counts, nil
}

// ResolveClubCounts aggregates a club's relationship tables.
func (s *Service) ResolveClubCounts(ctx context.Context, clubID string) (ClubCounts, error) {
	var counts ClubCounts
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.ClubFollow{}).Where("club_id = ?", clubID).Count(&counts.FollowersCount).Error; err != nil {
		return ClubCounts{}, err
	}
	if err := db.Model(&model.User{}).Where("assigned_club_id = ?", clubID).Count(&counts.MembersCount).Error; err != nil {
		return ClubCounts{}, err
	}
	if err := db.Model(&model.Post{}).Where("club_id = ?", clubID).Count(&counts.PostsCount).Error; err != nil {
		return ClubCounts{}, err
	}
	return counts, nil
}

// ResolvePostCounts aggregates likes and comments and reads the maintained
// shares column. A deleted post id resolves to all-zero counts.
func (s *Service) ResolvePostCounts(ctx context.Context, postID string) (PostCounts, error) {
	var counts PostCounts
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.PostLike{}).Where("post_id = ?", postID).Count(&counts.LikesCount).Error; err != nil {
		return PostCounts{}, err
	}
	if err := db.Model(&model.Comment{}).Where("post_id = ?", postID).Count(&counts.CommentsCount).Error; err != nil {
		return PostCounts{}, err
	}
	var post model.Post
	err := db.Select("shares_count").Where("id = ?", postID).First(&post).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return PostCounts{}, err
	}
	counts.SharesCount = post.SharesCount
	return counts, nil
}

// FollowerPage is one page of a follower or following listing.
type FollowerPage struct {
	Users   []RelatedUser
	Total   int64
	HasMore bool
}

// RelatedUser is a listing entry annotated with the viewer's relation to it.
type RelatedUser struct {
	UID            string  `json:"uid"`
	DisplayName    string  `json:"displayName"`
	PhotoURL       string  `json:"photoURL"`
	LeoID          *string `json:"leoId"`
	IsFollowing    bool    `json:"isFollowing"`
	IsMutualFollow bool    `json:"isMutualFollow"`
}

// ListFollowers pages through the users following userID, newest edge first,
// annotated with the viewer's own relation to each entry.
func (s *Service) ListFollowers(ctx context.Context, viewerID, userID string, limit, offset int) (FollowerPage, error) {
	return s.listRelated(ctx, viewerID, userID, "followee_id", "follower_id", limit, offset)
}

// ListFollowing pages through the users userID follows.
func (s *Service) ListFollowing(ctx context.Context, viewerID, userID string, limit, offset int) (FollowerPage, error) {
	return s.listRelated(ctx, viewerID, userID, "follower_id", "followee_id", limit, offset)
}

func (s *Service) listRelated(ctx context.Context, viewerID, userID, anchorColumn, pickColumn string, limit, offset int) (FollowerPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", userID).Count(&exists).Error; err != nil {
		return FollowerPage{}, err
	}
	if exists == 0 {
		return FollowerPage{}, ErrUserNotFound
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.FollowEdge{}).
		Where(anchorColumn+" = ?", userID).
		Count(&total).Error; err != nil {
		return FollowerPage{}, err
	}

	var rows []model.User
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Joins(fmt.Sprintf("JOIN user_follows uf ON uf.%s = users.uid", pickColumn)).
		Where(fmt.Sprintf("uf.%s = ?", anchorColumn), userID).
		Order("uf.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return FollowerPage{}, err
	}

	page := FollowerPage{Total: total, HasMore: int64(offset+limit) < total, Users: make([]RelatedUser, 0, len(rows))}
	for _, row := range rows {
		entry, err := s.annotate(ctx, viewerID, row)
		if err != nil {
			return FollowerPage{}, err
		}
		page.Users = append(page.Users, entry)
	}
	return page, nil
}

// ListClubFollowers pages through the users following a club.
func (s *Service) ListClubFollowers(ctx context.Context, viewerID, clubID string, limit, offset int) (FollowerPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.Club{}).Where("id = ?", clubID).Count(&exists).Error; err != nil {
		return FollowerPage{}, err
	}
	if exists == 0 {
		return FollowerPage{}, ErrClubNotFound
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.ClubFollow{}).Where("club_id = ?", clubID).Count(&total).Error; err != nil {
		return FollowerPage{}, err
	}

	var rows []model.User
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN user_following_clubs ufc ON ufc.user_id = users.uid").
		Where("ufc.club_id = ?", clubID).
		Order("ufc.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return FollowerPage{}, err
	}

	page := FollowerPage{Total: total, HasMore: int64(offset+limit) < total, Users: make([]RelatedUser, 0, len(rows))}
	for _, row := range rows {
		entry, err := s.annotate(ctx, viewerID, row)
		if err != nil {
			return FollowerPage{}, err
		}
		page.Users = append(page.Users, entry)
	}
	return page, nil
}

func (s *Service) annotate(ctx context.Context, viewerID string, row model.User) (RelatedUser, error) {
	isFollowing, err := s.IsFollowing(ctx, viewerID, row.UID)
	if err != nil {
		return RelatedUser{}, err
	}
	mutual := false
	if isFollowing {
		mutual, err = s.IsFollowing(ctx, row.UID, viewerID)
		if err != nil {
			return RelatedUser{}, err
		}
	}
	return RelatedUser{
		UID:            row.UID,
		DisplayName:    row.DisplayName,
		PhotoURL:       row.PhotoURL,
		LeoID:          row.LeoID,
		IsFollowing:    isFollowing,
		IsMutualFollow: mutual,
	}, nil
}
