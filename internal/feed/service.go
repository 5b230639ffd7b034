// Package feed owns posts, comments and events: authoring, engagement
// toggles, and the ranked home/explore feed assembly.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxPostContentLength    = 5000
	maxCommentContentLength = 2000
	maxEventNameLength      = 200
	maxEventDescLength      = 5000
	previewLength           = 100
)

var (
	// ErrPostNotFound indicates the subject post does not exist.
	ErrPostNotFound = errors.New("feed: post not found")
	// ErrCommentNotFound indicates the subject comment does not exist.
	ErrCommentNotFound = errors.New("feed: comment not found")
	// ErrEventNotFound indicates the subject event does not exist.
	ErrEventNotFound = errors.New("feed: event not found")
	// ErrForbidden indicates the actor lacks ownership or admin rights.
	ErrForbidden = errors.New("feed: forbidden")
	// ErrInvalidContent indicates missing, empty-after-trim or oversized content.
	ErrInvalidContent = errors.New("feed: invalid content")
	// ErrNoClubs indicates no club exists to assign authored content to.
	ErrNoClubs = errors.New("feed: no clubs available")
)

// MediaRelay stores raw image bytes with an external service and returns a
// durable URL. Relay failure means "continue without image", never a fatal
// error for the surrounding write.
type MediaRelay interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Notifier receives engagement events for notification fan-out. All calls
// are best-effort from the caller's point of view.
type Notifier interface {
	PostCreated(ctx context.Context, author model.User, postID, preview string)
	PostLiked(ctx context.Context, actor model.User, ownerID, postID string)
	CommentLiked(ctx context.Context, actor model.User, ownerID, commentID string)
	CommentAdded(ctx context.Context, actor model.User, ownerID, postID, preview string)
}

// ServiceConfig describes the dependencies of the feed service.
type ServiceConfig struct {
	Database *gorm.DB
	Graph    *graph.Service
	Media    MediaRelay
	Notifier Notifier
	IDs      ids.Provider
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service assembles feeds and manages post, comment and event lifecycles.
type Service struct {
	db       *gorm.DB
	graph    *graph.Service
	media    MediaRelay
	notifier Notifier
	ids      ids.Provider
	now      func() time.Time
	logger   *zap.Logger
}

// NewService constructs the feed service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("feed: database connection required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("feed: graph service required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	provider := cfg.IDs
	if provider == nil {
		provider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		graph:    cfg.Graph,
		media:    cfg.Media,
		notifier: cfg.Notifier,
		ids:      provider,
		now:      clock,
		logger:   logger,
	}, nil
}

// Post is a feed entry enriched with author, club and viewer context.
type Post struct {
	PostID        string    `json:"postId"`
	ClubID        string    `json:"clubId"`
	ClubName      string    `json:"clubName"`
	AuthorID      string    `json:"authorId"`
	AuthorName    string    `json:"authorName"`
	AuthorLogo    string    `json:"authorLogo"`
	Content       string    `json:"content"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Images        []string  `json:"images"`
	LikesCount    int64     `json:"likesCount"`
	CommentsCount int64     `json:"commentsCount"`
	SharesCount   int64     `json:"sharesCount"`
	IsLikedByUser bool      `json:"isLikedByUser"`
	IsPinned      bool      `json:"isPinned"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type postRow struct {
	model.Post
	AuthorName string
	AuthorLogo string
	ClubName   string
}

// CreatePostInput carries a new post's content and optional inline image.
type CreatePostInput struct {
	Content       string
	ClubID        string
	ImageBytes    []byte
	ImageMimeType string
}

// CreatePost validates and persists a post, relays the optional image, and
// fires the new-post fan-out without blocking the caller's response.
func (s *Service) CreatePost(ctx context.Context, author model.User, input CreatePostInput) (Post, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return Post{}, fmt.Errorf("%w: post content cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(input.Content) > maxPostContentLength {
		return Post{}, fmt.Errorf("%w: post content exceeds %d characters", ErrInvalidContent, maxPostContentLength)
	}

	imageURL := s.relayImage(ctx, input.ImageBytes, input.ImageMimeType)

	clubID := input.ClubID
	if clubID == "" {
		var club model.Club
		err := s.db.WithContext(ctx).Order("RANDOM()").Select("id").First(&club).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Post{}, ErrNoClubs
			}
			return Post{}, err
		}
		clubID = club.ID
	}

	postID, err := s.ids.NewID()
	if err != nil {
		return Post{}, err
	}
	now := s.now().UTC()
	post := model.Post{
		ID:        postID,
		ClubID:    clubID,
		AuthorID:  author.UID,
		Content:   input.Content,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return Post{}, err
	}

	if s.notifier != nil {
		s.notifier.PostCreated(ctx, author, postID, preview(input.Content))
	}

	return s.GetPost(ctx, author.UID, postID)
}

// GetPost returns one enriched post.
func (s *Service) GetPost(ctx context.Context, viewerID, postID string) (Post, error) {
	var row postRow
	err := s.enrichedQuery(ctx).Where("posts.id = ?", postID).Scan(&row).Error
	if err != nil {
		return Post{}, err
	}
	if row.ID == "" {
		return Post{}, ErrPostNotFound
	}
	return s.decorate(ctx, viewerID, row)
}

// DeletePost removes a post and cascades to its comments, comment likes,
// post likes and shares. Permitted for the author or an administrator.
func (s *Service) DeletePost(ctx context.Context, actor model.User, postID string) error {
	var post model.Post
	if err := s.db.WithContext(ctx).Select("id", "author_id").Where("id = ?", postID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	if post.AuthorID != actor.UID && !actor.IsWebmaster {
		return fmt.Errorf("%w: only the author or an administrator can delete a post", ErrForbidden)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id IN (SELECT id FROM comments WHERE post_id = ?)", postID).
			Delete(&model.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.Share{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", postID).Delete(&model.Post{}).Error
	})
}

// ListUserPosts returns a user's posts, most recent first.
func (s *Service) ListUserPosts(ctx context.Context, viewerID, authorID string, limit, offset int) ([]Post, int64, error) {
	return s.scopedPosts(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id = ?", authorID)
	}, limit, offset)
}

// ListClubPosts returns a club's posts, most recent first.
func (s *Service) ListClubPosts(ctx context.Context, viewerID, clubID string, limit, offset int) ([]Post, int64, error) {
	return s.scopedPosts(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.club_id = ?", clubID)
	}, limit, offset)
}

// SearchPosts matches post content, most recent first.
func (s *Service) SearchPosts(ctx context.Context, viewerID, query string, limit, offset int) ([]Post, int64, error) {
	return s.scopedPosts(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.content LIKE ?", "%"+query+"%")
	}, limit, offset)
}

func (s *Service) enrichedQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Post{}).
		Select("posts.*, u.display_name AS author_name, u.photo_url AS author_logo, c.name AS club_name").
		Joins("LEFT JOIN users u ON posts.author_id = u.uid").
		Joins("LEFT JOIN clubs c ON posts.club_id = c.id")
}

func (s *Service) decorate(ctx context.Context, viewerID string, row postRow) (Post, error) {
	counts, err := s.graph.ResolvePostCounts(ctx, row.ID)
	if err != nil {
		return Post{}, err
	}
	liked := false
	if viewerID != "" {
		liked, err = s.IsLikedBy(ctx, viewerID, row.ID)
		if err != nil {
			return Post{}, err
		}
	}
	images := []string{}
	if row.ImageURL != "" {
		images = append(images, row.ImageURL)
	}
	return Post{
		PostID:        row.ID,
		ClubID:        row.ClubID,
		ClubName:      row.ClubName,
		AuthorID:      row.AuthorID,
		AuthorName:    row.AuthorName,
		AuthorLogo:    row.AuthorLogo,
		Content:       row.Content,
		ImageURL:      row.ImageURL,
		Images:        images,
		LikesCount:    counts.LikesCount,
		CommentsCount: counts.CommentsCount,
		SharesCount:   counts.SharesCount,
		IsLikedByUser: liked,
		IsPinned:      row.IsPinned,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (s *Service) decorateAll(ctx context.Context, viewerID string, rows []postRow) ([]Post, error) {
	posts := make([]Post, 0, len(rows))
	for _, row := range rows {
		post, err := s.decorate(ctx, viewerID, row)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Service) relayImage(ctx context.Context, data []byte, mimeType string) string {
	if len(data) == 0 || s.media == nil {
		return ""
	}
	url, err := s.media.Upload(ctx, data, mimeType)
	if err != nil {
		s.logger.Warn("image relay failed, continuing without image", zap.Error(err))
		return ""
	}
	return url
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
