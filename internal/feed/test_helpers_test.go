package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
)

var fixtureClock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

type capturedEvent struct {
	Kind    string
	ActorID string
	OwnerID string
	Subject string
	Preview string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (r *recordingNotifier) PostCreated(_ context.Context, author model.User, postID, preview string) {
	r.append(capturedEvent{Kind: "post_created", ActorID: author.UID, Subject: postID, Preview: preview})
}

func (r *recordingNotifier) PostLiked(_ context.Context, actor model.User, ownerID, postID string) {
	r.append(capturedEvent{Kind: "post_liked", ActorID: actor.UID, OwnerID: ownerID, Subject: postID})
}

func (r *recordingNotifier) CommentLiked(_ context.Context, actor model.User, ownerID, commentID string) {
	r.append(capturedEvent{Kind: "comment_liked", ActorID: actor.UID, OwnerID: ownerID, Subject: commentID})
}

func (r *recordingNotifier) CommentAdded(_ context.Context, actor model.User, ownerID, postID, preview string) {
	r.append(capturedEvent{Kind: "comment_added", ActorID: actor.UID, OwnerID: ownerID, Subject: postID, Preview: preview})
}

func (r *recordingNotifier) append(event capturedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) captured() []capturedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedEvent(nil), r.events...)
}

type fixture struct {
	db       *gorm.DB
	service  *Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T, name string, identifiers ...string) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.User{}, &model.Club{}, &model.FollowEdge{}, &model.ClubFollow{},
		&model.Post{}, &model.Comment{}, &model.PostLike{}, &model.CommentLike{},
		&model.Share{}, &model.Event{}, &model.EventRSVP{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	graphService, err := graph.NewService(graph.ServiceConfig{Database: db, Clock: fixtureClock})
	if err != nil {
		t.Fatalf("unexpected graph service error: %v", err)
	}
	notifier := &recordingNotifier{}
	service, err := NewService(ServiceConfig{
		Database: db,
		Graph:    graphService,
		Notifier: notifier,
		IDs:      ids.Fixed(identifiers...),
		Clock:    fixtureClock,
	})
	if err != nil {
		t.Fatalf("unexpected feed service error: %v", err)
	}
	return &fixture{db: db, service: service, notifier: notifier}
}

func (f *fixture) graph(t *testing.T) *graph.Service {
	t.Helper()
	graphService, err := graph.NewService(graph.ServiceConfig{Database: f.db, Clock: fixtureClock})
	if err != nil {
		t.Fatalf("unexpected graph service error: %v", err)
	}
	return graphService
}

func (f *fixture) seedUser(t *testing.T, uid, name string) model.User {
	t.Helper()
	user := model.User{UID: uid, DisplayName: name}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", uid, err)
	}
	return user
}

func (f *fixture) seedClub(t *testing.T, id, name string) {
	t.Helper()
	if err := f.db.Create(&model.Club{ID: id, Name: name, District: "D1"}).Error; err != nil {
		t.Fatalf("failed to seed club %s: %v", id, err)
	}
}

func (f *fixture) seedPost(t *testing.T, id, clubID, authorID, content string, createdAt time.Time) {
	t.Helper()
	post := model.Post{
		ID:        id,
		ClubID:    clubID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := f.db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post %s: %v", id, err)
	}
}
