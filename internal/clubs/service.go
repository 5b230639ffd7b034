// Package clubs manages the club and district directory: listings, search,
// and the admin CRUD that keeps district totals consistent.
package clubs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxClubNameLength = 190

var (
	// ErrClubNotFound indicates the subject club does not exist.
	ErrClubNotFound = errors.New("clubs: club not found")
	// ErrInvalidClub indicates a club field failed validation.
	ErrInvalidClub = errors.New("clubs: invalid club")
	// ErrDistrictNotFound indicates the subject district does not exist.
	ErrDistrictNotFound = errors.New("clubs: district not found")
	// ErrDistrictExists indicates a district with the name already exists.
	ErrDistrictExists = errors.New("clubs: district already exists")
)

// ServiceConfig describes the dependencies of the club service.
type ServiceConfig struct {
	Database *gorm.DB
	Graph    *graph.Service
	IDs      ids.Provider
	Clock    func() time.Time
}

// Service reads the club directory and applies admin mutations.
type Service struct {
	db    *gorm.DB
	graph *graph.Service
	ids   ids.Provider
	now   func() time.Time
}

// NewService constructs the club service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("clubs: database connection required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("clubs: graph service required")
	}
	provider := cfg.IDs
	if provider == nil {
		provider = ids.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, graph: cfg.Graph, ids: provider, now: clock}, nil
}

// Club is a directory entry enriched with counts and viewer follow state.
type Club struct {
	ClubID         string    `json:"clubId"`
	Name           string    `json:"name"`
	District       string    `json:"district"`
	DistrictID     string    `json:"districtId"`
	Description    string    `json:"description"`
	LogoURL        string    `json:"logoUrl"`
	CoverImageURL  string    `json:"coverImageUrl"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	FacebookURL    string    `json:"facebookUrl"`
	InstagramURL   string    `json:"instagramUrl"`
	TwitterURL     string    `json:"twitterUrl"`
	IsOfficial     bool      `json:"isOfficial"`
	FollowersCount int64     `json:"followersCount"`
	MembersCount   int64     `json:"membersCount"`
	PostsCount     int64     `json:"postsCount"`
	IsFollowing    bool      `json:"isFollowing"`
	CreatedAt      time.Time `json:"createdAt"`
}

// List returns clubs ordered by name, optionally scoped to one district.
func (s *Service) List(ctx context.Context, viewerID, district string, limit, offset int) ([]Club, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&model.Club{})
	if district != "" {
		query = query.Where("district = ?", district)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.Club
	if err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	clubs, err := s.decorateAll(ctx, viewerID, rows)
	if err != nil {
		return nil, 0, err
	}
	return clubs, total, nil
}

// Get returns one enriched club.
func (s *Service) Get(ctx context.Context, viewerID, clubID string) (Club, error) {
	var row model.Club
	err := s.db.WithContext(ctx).Where("id = ?", clubID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Club{}, ErrClubNotFound
	}
	if err != nil {
		return Club{}, err
	}
	return s.decorate(ctx, viewerID, row)
}

// Search matches club names and districts, case-insensitively.
func (s *Service) Search(ctx context.Context, viewerID, query string, limit int) ([]Club, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Club{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var rows []model.Club
	err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(district) LIKE ?", pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.decorateAll(ctx, viewerID, rows)
}

// Member is a user assigned to the club as their home club.
type Member struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	PhotoURL    string  `json:"photoUrl"`
	LeoID       *string `json:"leoId"`
}

// Members lists the club's assigned members ordered by display name.
func (s *Service) Members(ctx context.Context, clubID string, limit, offset int) ([]Member, int64, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.Club{}).Where("id = ?", clubID).Count(&exists).Error; err != nil {
		return nil, 0, err
	}
	if exists == 0 {
		return nil, 0, ErrClubNotFound
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	scope := s.db.WithContext(ctx).Model(&model.User{}).Where("assigned_club_id = ?", clubID)
	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.User
	err := scope.Session(&gorm.Session{}).
		Order("display_name ASC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, Member{
			UID:         row.UID,
			DisplayName: row.DisplayName,
			PhotoURL:    row.PhotoURL,
			LeoID:       row.LeoID,
		})
	}
	return members, total, nil
}

// Districts returns all districts ordered by name.
func (s *Service) Districts(ctx context.Context) ([]model.District, error) {
	var districts []model.District
	err := s.db.WithContext(ctx).Order("name ASC").Find(&districts).Error
	return districts, err
}

// CreateDistrict registers a district ahead of its first club. The unique
// name key guards racing creates.
func (s *Service) CreateDistrict(ctx context.Context, name string) (model.District, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.District{}, fmt.Errorf("%w: district name required", ErrInvalidClub)
	}
	district := model.District{Name: name}
	insert := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&district)
	if insert.Error != nil {
		return model.District{}, insert.Error
	}
	if insert.RowsAffected == 0 {
		return model.District{}, ErrDistrictExists
	}
	return district, nil
}

// DeleteDistrict removes an empty district. Districts that still hold clubs
// are refused so the club totals stay attached to a live row.
func (s *Service) DeleteDistrict(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	var clubCount int64
	if err := s.db.WithContext(ctx).Model(&model.Club{}).Where("district = ?", name).Count(&clubCount).Error; err != nil {
		return err
	}
	if clubCount > 0 {
		return fmt.Errorf("%w: district still has %d clubs", ErrInvalidClub, clubCount)
	}
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&model.District{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDistrictNotFound
	}
	return nil
}

// UpsertInput carries the admin-editable club fields.
type UpsertInput struct {
	Name          string
	District      string
	DistrictID    string
	Description   string
	LogoURL       string
	CoverImageURL string
	Email         string
	Phone         string
	Address       string
	FacebookURL   string
	InstagramURL  string
	TwitterURL    string
	IsOfficial    bool
}

// Create inserts a club and bumps its district's club total, creating the
// district row on first use.
func (s *Service) Create(ctx context.Context, input UpsertInput) (Club, error) {
	if err := validateUpsert(input); err != nil {
		return Club{}, err
	}
	clubID, err := s.ids.NewID()
	if err != nil {
		return Club{}, err
	}
	now := s.now().UTC()
	club := model.Club{
		ID:            clubID,
		Name:          strings.TrimSpace(input.Name),
		District:      strings.TrimSpace(input.District),
		DistrictID:    strings.TrimSpace(input.DistrictID),
		Description:   input.Description,
		LogoURL:       input.LogoURL,
		CoverImageURL: input.CoverImageURL,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		FacebookURL:   input.FacebookURL,
		InstagramURL:  input.InstagramURL,
		TwitterURL:    input.TwitterURL,
		IsOfficial:    input.IsOfficial,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&club).Error; err != nil {
			return err
		}
		return s.adjustDistrictTotal(tx, club.District, +1)
	})
	if err != nil {
		return Club{}, err
	}
	return s.Get(ctx, "", clubID)
}

// Update replaces the admin-editable fields of a club. A district change
// moves the club between district totals.
func (s *Service) Update(ctx context.Context, clubID string, input UpsertInput) (Club, error) {
	if err := validateUpsert(input); err != nil {
		return Club{}, err
	}
	var existing model.Club
	err := s.db.WithContext(ctx).Where("id = ?", clubID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Club{}, ErrClubNotFound
	}
	if err != nil {
		return Club{}, err
	}

	newDistrict := strings.TrimSpace(input.District)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"name":            strings.TrimSpace(input.Name),
			"district":        newDistrict,
			"district_id":     strings.TrimSpace(input.DistrictID),
			"description":     input.Description,
			"logo_url":        input.LogoURL,
			"cover_image_url": input.CoverImageURL,
			"email":           input.Email,
			"phone":           input.Phone,
			"address":         input.Address,
			"facebook_url":    input.FacebookURL,
			"instagram_url":   input.InstagramURL,
			"twitter_url":     input.TwitterURL,
			"is_official":     input.IsOfficial,
			"updated_at":      s.now().UTC(),
		}
		if err := tx.Model(&model.Club{}).Where("id = ?", clubID).Updates(updates).Error; err != nil {
			return err
		}
		if newDistrict != existing.District {
			if err := s.adjustDistrictTotal(tx, existing.District, -1); err != nil {
				return err
			}
			return s.adjustDistrictTotal(tx, newDistrict, +1)
		}
		return nil
	})
	if err != nil {
		return Club{}, err
	}
	return s.Get(ctx, "", clubID)
}

// Delete removes a club, its follow edges, and decrements its district's
// club total. Posts and events keep their club id and fall back to empty
// club names on read.
func (s *Service) Delete(ctx context.Context, clubID string) error {
	var existing model.Club
	err := s.db.WithContext(ctx).Where("id = ?", clubID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrClubNotFound
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("club_id = ?", clubID).Delete(&model.ClubFollow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", clubID).Delete(&model.Club{}).Error; err != nil {
			return err
		}
		return s.adjustDistrictTotal(tx, existing.District, -1)
	})
}

// Stats summarizes the directory for the admin dashboard.
type Stats struct {
	TotalUsers     int64 `json:"totalUsers"`
	TotalClubs     int64 `json:"totalClubs"`
	TotalDistricts int64 `json:"totalDistricts"`
	TotalPosts     int64 `json:"totalPosts"`
	TotalEvents    int64 `json:"totalEvents"`
	TotalMessages  int64 `json:"totalMessages"`
}

// Stats counts the major entity tables.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		target any
		out    *int64
	}{
		{&model.User{}, &stats.TotalUsers},
		{&model.Club{}, &stats.TotalClubs},
		{&model.District{}, &stats.TotalDistricts},
		{&model.Post{}, &stats.TotalPosts},
		{&model.Event{}, &stats.TotalEvents},
		{&model.Message{}, &stats.TotalMessages},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.target).Count(c.out).Error; err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

func (s *Service) adjustDistrictTotal(tx *gorm.DB, district string, delta int64) error {
	if district == "" {
		return nil
	}
	var row model.District
	err := tx.Where("name = ?", district).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if delta <= 0 {
			return nil
		}
		return tx.Create(&model.District{Name: district, TotalClubs: delta}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&model.District{}).
		Where("name = ?", district).
		UpdateColumn("total_clubs", gorm.Expr("MAX(total_clubs + ?, 0)", delta)).Error
}

func (s *Service) decorate(ctx context.Context, viewerID string, row model.Club) (Club, error) {
	counts, err := s.graph.ResolveClubCounts(ctx, row.ID)
	if err != nil {
		return Club{}, err
	}
	following := false
	if viewerID != "" {
		following, err = s.graph.IsFollowingClub(ctx, viewerID, row.ID)
		if err != nil {
			return Club{}, err
		}
	}
	return Club{
		ClubID:         row.ID,
		Name:           row.Name,
		District:       row.District,
		DistrictID:     row.DistrictID,
		Description:    row.Description,
		LogoURL:        row.LogoURL,
		CoverImageURL:  row.CoverImageURL,
		Email:          row.Email,
		Phone:          row.Phone,
		Address:        row.Address,
		FacebookURL:    row.FacebookURL,
		InstagramURL:   row.InstagramURL,
		TwitterURL:     row.TwitterURL,
		IsOfficial:     row.IsOfficial,
		FollowersCount: counts.FollowersCount,
		MembersCount:   counts.MembersCount,
		PostsCount:     counts.PostsCount,
		IsFollowing:    following,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (s *Service) decorateAll(ctx context.Context, viewerID string, rows []model.Club) ([]Club, error) {
	clubs := make([]Club, 0, len(rows))
	for _, row := range rows {
		club, err := s.decorate(ctx, viewerID, row)
		if err != nil {
			return nil, err
		}
		clubs = append(clubs, club)
	}
	return clubs, nil
}

func validateUpsert(input UpsertInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidClub)
	}
	if len(name) > maxClubNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidClub, maxClubNameLength)
	}
	if strings.TrimSpace(input.District) == "" {
		return fmt.Errorf("%w: district required", ErrInvalidClub)
	}
	return nil
}
