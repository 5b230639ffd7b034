package database

import (
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/leoconnect/backend/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestBackfillEngagementCountersRepairsDrift(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrations_backfill?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.Post{}, &model.Comment{}, &model.CommentLike{}, &model.Share{},
		&model.Event{}, &model.EventRSVP{}, &migrationRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	seeds := []any{
		&model.Post{ID: "post-1", ClubID: "club-1", AuthorID: "alice", Content: "p", SharesCount: 99},
		&model.Share{ID: "s-1", PostID: "post-1", UserID: "bob"},
		&model.Share{ID: "s-2", PostID: "post-1", UserID: "carol"},
		&model.Comment{ID: "c-1", PostID: "post-1", UserID: "bob", Content: "c", LikesCount: 0},
		&model.CommentLike{CommentID: "c-1", UserID: "alice"},
		&model.Event{ID: "e-1", ClubID: "club-1", AuthorID: "alice", Name: "n", Description: "d", RSVPCount: 5},
		&model.EventRSVP{EventID: "e-1", UserID: "bob"},
	}
	for _, seed := range seeds {
		if err := db.Create(seed).Error; err != nil {
			t.Fatalf("failed to seed %T: %v", seed, err)
		}
	}

	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}

	var post model.Post
	if err := db.Where("id = ?", "post-1").First(&post).Error; err != nil {
		t.Fatalf("failed to load post: %v", err)
	}
	if post.SharesCount != 2 {
		t.Fatalf("expected shares_count recomputed to 2, got %d", post.SharesCount)
	}
	var comment model.Comment
	if err := db.Where("id = ?", "c-1").First(&comment).Error; err != nil {
		t.Fatalf("failed to load comment: %v", err)
	}
	if comment.LikesCount != 1 {
		t.Fatalf("expected likes_count recomputed to 1, got %d", comment.LikesCount)
	}
	var event model.Event
	if err := db.Where("id = ?", "e-1").First(&event).Error; err != nil {
		t.Fatalf("failed to load event: %v", err)
	}
	if event.RSVPCount != 1 {
		t.Fatalf("expected rsvp_count recomputed to 1, got %d", event.RSVPCount)
	}

	var applied int64
	if err := db.Model(&migrationRecord{}).Where("name = ?", migrationBackfillEngagementCounters).Count(&applied).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected one applied-migration record, got %d", applied)
	}
}

func TestApplyMigrationsRunsOnlyOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrations_once?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.Post{}, &model.Comment{}, &model.CommentLike{}, &model.Share{},
		&model.Event{}, &model.EventRSVP{}, &migrationRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}

	// Drift introduced after the first run must survive a second pass.
	post := model.Post{ID: "post-1", ClubID: "club-1", AuthorID: "alice", Content: "p", SharesCount: 42}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("unexpected second migration error: %v", err)
	}

	var reloaded model.Post
	if err := db.Where("id = ?", "post-1").First(&reloaded).Error; err != nil {
		t.Fatalf("failed to load post: %v", err)
	}
	if reloaded.SharesCount != 42 {
		t.Fatalf("an already-applied migration must not run again, got %d", reloaded.SharesCount)
	}
}
