// Package users manages member profiles: creation on first login,
// onboarding, profile reads and updates, search, and account removal.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/leoconnect/backend/internal/auth"
	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
)

const (
	maxDisplayNameLength = 100
	maxBioLength         = 1000
	maxLeoIDLength       = 64
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUserNotFound indicates the subject user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidProfile indicates a profile field failed validation.
	ErrInvalidProfile = errors.New("users: invalid profile")
)

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Graph    *graph.Service
	IDs      ids.Provider
	Clock    func() time.Time
}

// Service manages member profiles keyed by the Google identity subject.
type Service struct {
	db    *gorm.DB
	graph *graph.Service
	ids   ids.Provider
	now   func() time.Time
	known sync.Map
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("users: graph service required")
	}
	provider := cfg.IDs
	if provider == nil {
		provider = ids.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		graph: cfg.Graph,
		ids:   provider,
		now:   clock,
	}, nil
}

// EnsureUser resolves the member row for validated Google claims, creating
// it on the first exchange and refreshing identity fields on later logins.
func (s *Service) EnsureUser(ctx context.Context, claims auth.GoogleClaims) (model.User, error) {
	uid := normalize(claims.Subject)
	if uid == "" {
		return model.User{}, ErrInvalidIdentity
	}

	var user model.User
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := s.now().UTC()
		user = model.User{
			UID:         uid,
			Email:       normalize(claims.Email),
			DisplayName: firstNonEmpty(normalize(claims.Name), normalize(claims.Email), uid),
			PhotoURL:    normalize(claims.Picture),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return model.User{}, err
		}
		s.known.Store(uid, struct{}{})
		return user, nil
	}
	if err != nil {
		return model.User{}, err
	}

	updates := map[string]any{}
	if email := normalize(claims.Email); email != "" && email != user.Email {
		updates["email"] = email
		user.Email = email
	}
	if picture := normalize(claims.Picture); picture != "" && user.PhotoURL == "" {
		updates["photo_url"] = picture
		user.PhotoURL = picture
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now().UTC()
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", uid).Updates(updates).Error; err != nil {
			return model.User{}, err
		}
	}
	s.known.Store(uid, struct{}{})
	return user, nil
}

// Get returns the member row by uid.
func (s *Service) Get(ctx context.Context, uid string) (model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Exists reports whether the uid names a member, consulting a process-local
// cache before the database.
func (s *Service) Exists(ctx context.Context, uid string) (bool, error) {
	if _, ok := s.known.Load(uid); ok {
		return true, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		s.known.Store(uid, struct{}{})
	}
	return count > 0, nil
}

// Profile is a member profile enriched with graph counts and, when viewed by
// another member, the relationship between viewer and subject.
type Profile struct {
	UID                 string    `json:"uid"`
	Email               string    `json:"email,omitempty"`
	DisplayName         string    `json:"displayName"`
	PhotoURL            string    `json:"photoUrl"`
	LeoID               *string   `json:"leoId"`
	Bio                 string    `json:"bio"`
	IsWebmaster         bool      `json:"isWebmaster"`
	AssignedClubID      *string   `json:"assignedClubId"`
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	FollowersCount      int64     `json:"followersCount"`
	FollowingCount      int64     `json:"followingCount"`
	PostsCount          int64     `json:"postsCount"`
	ClubsFollowing      int64     `json:"clubsFollowing"`
	IsFollowing         bool      `json:"isFollowing"`
	IsMutualFollow      bool      `json:"isMutualFollow"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Profile assembles the enriched profile of uid as seen by viewerID. The
// email field is included only when the viewer is the subject.
func (s *Service) Profile(ctx context.Context, viewerID, uid string) (Profile, error) {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	counts, err := s.graph.ResolveUserCounts(ctx, uid)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{
		UID:                 user.UID,
		DisplayName:         user.DisplayName,
		PhotoURL:            user.PhotoURL,
		LeoID:               user.LeoID,
		Bio:                 user.Bio,
		IsWebmaster:         user.IsWebmaster,
		AssignedClubID:      user.AssignedClubID,
		OnboardingCompleted: user.OnboardingCompleted,
		FollowersCount:      counts.FollowersCount,
		FollowingCount:      counts.FollowingCount,
		PostsCount:          counts.PostsCount,
		ClubsFollowing:      counts.ClubsFollowing,
		CreatedAt:           user.CreatedAt,
	}
	if viewerID == uid {
		profile.Email = user.Email
		return profile, nil
	}
	if viewerID != "" {
		following, err := s.graph.IsFollowing(ctx, viewerID, uid)
		if err != nil {
			return Profile{}, err
		}
		profile.IsFollowing = following
		if following {
			mutual, err := s.graph.IsMutual(ctx, viewerID, uid)
			if err != nil {
				return Profile{}, err
			}
			profile.IsMutualFollow = mutual
		}
	}
	return profile, nil
}

// UpdateProfileInput carries a partial profile update; nil fields are
// untouched.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
	PhotoURL    *string
	LeoID       *string
}

// UpdateProfile applies a partial update to the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, uid string, input UpdateProfileInput) (model.User, error) {
	if _, err := s.Get(ctx, uid); err != nil {
		return model.User{}, err
	}

	updates := map[string]any{}
	if input.DisplayName != nil {
		name := normalize(*input.DisplayName)
		if name == "" {
			return model.User{}, fmt.Errorf("%w: display name cannot be empty", ErrInvalidProfile)
		}
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return model.User{}, fmt.Errorf("%w: display name exceeds %d characters", ErrInvalidProfile, maxDisplayNameLength)
		}
		updates["display_name"] = name
	}
	if input.Bio != nil {
		if utf8.RuneCountInString(*input.Bio) > maxBioLength {
			return model.User{}, fmt.Errorf("%w: bio exceeds %d characters", ErrInvalidProfile, maxBioLength)
		}
		updates["bio"] = *input.Bio
	}
	if input.PhotoURL != nil {
		updates["photo_url"] = normalize(*input.PhotoURL)
	}
	if input.LeoID != nil {
		leoID := normalize(*input.LeoID)
		if utf8.RuneCountInString(leoID) > maxLeoIDLength {
			return model.User{}, fmt.Errorf("%w: leo id exceeds %d characters", ErrInvalidProfile, maxLeoIDLength)
		}
		updates["leo_id"] = leoID
	}
	if len(updates) == 0 {
		return s.Get(ctx, uid)
	}
	updates["updated_at"] = s.now().UTC()

	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", uid).Updates(updates).Error; err != nil {
		return model.User{}, err
	}
	return s.Get(ctx, uid)
}

// QuickStartInput carries the onboarding fields.
type QuickStartInput struct {
	DisplayName string
	LeoID       string
	ClubID      string
}

// QuickStart completes onboarding in one step: name the member, attach the
// home club, follow it, and mark onboarding done.
func (s *Service) QuickStart(ctx context.Context, uid string, input QuickStartInput) (model.User, error) {
	if _, err := s.Get(ctx, uid); err != nil {
		return model.User{}, err
	}
	name := normalize(input.DisplayName)
	if name == "" {
		return model.User{}, fmt.Errorf("%w: display name required", ErrInvalidProfile)
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return model.User{}, fmt.Errorf("%w: display name exceeds %d characters", ErrInvalidProfile, maxDisplayNameLength)
	}
	clubID := normalize(input.ClubID)
	if clubID == "" {
		return model.User{}, fmt.Errorf("%w: club required", ErrInvalidProfile)
	}
	var clubCount int64
	if err := s.db.WithContext(ctx).Model(&model.Club{}).Where("id = ?", clubID).Count(&clubCount).Error; err != nil {
		return model.User{}, err
	}
	if clubCount == 0 {
		return model.User{}, graph.ErrClubNotFound
	}

	updates := map[string]any{
		"display_name":         name,
		"assigned_club_id":     clubID,
		"onboarding_completed": true,
		"updated_at":           s.now().UTC(),
	}
	if leoID := normalize(input.LeoID); leoID != "" {
		if utf8.RuneCountInString(leoID) > maxLeoIDLength {
			return model.User{}, fmt.Errorf("%w: leo id exceeds %d characters", ErrInvalidProfile, maxLeoIDLength)
		}
		updates["leo_id"] = leoID
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", uid).Updates(updates).Error; err != nil {
		return model.User{}, err
	}

	if _, err := s.graph.FollowClub(ctx, uid, clubID); err != nil && !errors.Is(err, graph.ErrAlreadyFollowing) {
		return model.User{}, err
	}
	return s.Get(ctx, uid)
}

// Summary is a compact user representation for search results and listings.
type Summary struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	PhotoURL    string  `json:"photoUrl"`
	LeoID       *string `json:"leoId"`
}

// Search matches display names and leo ids, case-insensitively.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	query = normalize(query)
	if query == "" {
		return []Summary{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var rows []model.User
	err := s.db.WithContext(ctx).
		Where("LOWER(display_name) LIKE ? OR LOWER(COALESCE(leo_id, '')) LIKE ?", pattern, pattern).
		Order("display_name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, Summary{
			UID:         row.UID,
			DisplayName: row.DisplayName,
			PhotoURL:    row.PhotoURL,
			LeoID:       row.LeoID,
		})
	}
	return summaries, nil
}

// Account is the admin directory view of a member.
type Account struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	LeoID       *string   `json:"leoId"`
	IsWebmaster bool      `json:"isWebmaster"`
	CreatedAt   time.Time `json:"createdAt"`
}

// List pages the member directory for the admin surface, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Account, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.User
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	accounts := make([]Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, Account{
			UID:         row.UID,
			Email:       row.Email,
			DisplayName: row.DisplayName,
			LeoID:       row.LeoID,
			IsWebmaster: row.IsWebmaster,
			CreatedAt:   row.CreatedAt,
		})
	}
	return accounts, total, nil
}

// CreateInput carries an admin-provisioned member.
type CreateInput struct {
	DisplayName string
	Email       string
	LeoID       string
	IsWebmaster bool
}

// Create provisions a member outside the Google exchange. Admin surface
// only; the uid is generated rather than taken from an identity token.
func (s *Service) Create(ctx context.Context, input CreateInput) (model.User, error) {
	name := normalize(input.DisplayName)
	if name == "" {
		return model.User{}, fmt.Errorf("%w: display name required", ErrInvalidProfile)
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return model.User{}, fmt.Errorf("%w: display name exceeds %d characters", ErrInvalidProfile, maxDisplayNameLength)
	}
	uid, err := s.ids.NewID()
	if err != nil {
		return model.User{}, err
	}
	now := s.now().UTC()
	user := model.User{
		UID:         uid,
		Email:       normalize(input.Email),
		DisplayName: name,
		IsWebmaster: input.IsWebmaster,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if leoID := normalize(input.LeoID); leoID != "" {
		if utf8.RuneCountInString(leoID) > maxLeoIDLength {
			return model.User{}, fmt.Errorf("%w: leo id exceeds %d characters", ErrInvalidProfile, maxLeoIDLength)
		}
		user.LeoID = &leoID
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return model.User{}, err
	}
	s.known.Store(uid, struct{}{})
	return user, nil
}

// Delete removes a member and everything attached to them. Admin surface
// only. The cascade covers authored content, engagement rows, the follow
// graph in both directions, messages, and notification state.
func (s *Service) Delete(ctx context.Context, uid string) error {
	if _, err := s.Get(ctx, uid); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id IN (SELECT id FROM comments WHERE post_id IN (SELECT id FROM posts WHERE author_id = ?))", uid).
			Delete(&model.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (SELECT id FROM posts WHERE author_id = ?)", uid).
			Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (SELECT id FROM posts WHERE author_id = ?)", uid).
			Delete(&model.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (SELECT id FROM posts WHERE author_id = ?)", uid).
			Delete(&model.Share{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", uid).Delete(&model.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.Share{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.EventRSVP{}).Error; err != nil {
			return err
		}
		if err := tx.Where("follower_id = ? OR followee_id = ?", uid, uid).Delete(&model.FollowEdge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.ClubFollow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sender_id = ? OR receiver_id = ?", uid, uid).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.NotificationPreferences{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", uid).Delete(&model.PushToken{}).Error; err != nil {
			return err
		}
		return tx.Where("uid = ?", uid).Delete(&model.User{}).Error
	})
	if err != nil {
		return err
	}
	s.known.Delete(uid)
	return nil
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
