package notify

import (
	"context"
	"encoding/json"
	"errors"
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

type recordedPush struct {
	Token model.PushToken
	Title string
	Body  string
}

type recordingPush struct {
	mu         sync.Mutex
	deliveries []recordedPush
}

func (r *recordingPush) Deliver(_ context.Context, token model.PushToken, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, recordedPush{Token: token, Title: title, Body: body})
	return nil
}

func (r *recordingPush) captured() []recordedPush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedPush(nil), r.deliveries...)
}

type recordedSignal struct {
	UserID    string
	EventType string
}

type recordingSink struct {
	mu      sync.Mutex
	signals []recordedSignal
}

func (r *recordingSink) Publish(userID, eventType string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, recordedSignal{UserID: userID, EventType: eventType})
}

func (r *recordingSink) captured() []recordedSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedSignal(nil), r.signals...)
}

type notifyFixture struct {
	db         *gorm.DB
	service    *Service
	dispatcher *Dispatcher
	graph      *graph.Service
	push       *recordingPush
	sink       *recordingSink
}

func newNotifyFixture(t *testing.T, name string, identifiers ...string) *notifyFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.User{}, &model.Club{}, &model.FollowEdge{}, &model.ClubFollow{}, &model.Post{},
		&model.Notification{}, &model.NotificationPreferences{}, &model.PushToken{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	graphService, err := graph.NewService(graph.ServiceConfig{Database: db, Clock: fixtureClock})
	if err != nil {
		t.Fatalf("unexpected graph service error: %v", err)
	}
	dispatcher := NewDispatcher(DispatcherConfig{QueueSize: 32, Workers: 1})
	push := &recordingPush{}
	sink := &recordingSink{}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Graph:      graphService,
		Dispatcher: dispatcher,
		Push:       push,
		Sink:       sink,
		IDs:        ids.Fixed(identifiers...),
		Clock:      fixtureClock,
	})
	if err != nil {
		t.Fatalf("unexpected notify service error: %v", err)
	}
	return &notifyFixture{db: db, service: service, dispatcher: dispatcher, graph: graphService, push: push, sink: sink}
}

func (f *notifyFixture) seedUser(t *testing.T, uid, name string) model.User {
	t.Helper()
	user := model.User{UID: uid, DisplayName: name}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", uid, err)
	}
	return user
}

func TestRecordStoresNotificationAndSignals(t *testing.T) {
	f := newNotifyFixture(t, "notify_record", "n-1")
	f.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	if err := f.db.Create(&model.PushToken{UserID: "alice", Token: "tok-1", DeviceType: "ios"}).Error; err != nil {
		t.Fatalf("failed to seed push token: %v", err)
	}

	err := f.service.record(ctx, "alice", TypeLike, "Bob liked your post", "", map[string]string{"postId": "post-1"})
	if err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	page, err := f.service.List(ctx, "alice", 10, 0, false)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one stored notification, got %+v", page)
	}
	item := page.Items[0]
	if item.Type != TypeLike || item.IsRead {
		t.Fatalf("unexpected notification: %+v", item)
	}
	var payload map[string]string
	if err := json.Unmarshal(item.Data, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["postId"] != "post-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	signals := f.sink.captured()
	if len(signals) != 1 || signals[0].UserID != "alice" || signals[0].EventType != TypeLike {
		t.Fatalf("expected one realtime signal, got %+v", signals)
	}
	deliveries := f.push.captured()
	if len(deliveries) != 1 || deliveries[0].Token.Token != "tok-1" {
		t.Fatalf("expected one push delivery, got %+v", deliveries)
	}
}

func TestRecordRespectsPreferenceGates(t *testing.T) {
	f := newNotifyFixture(t, "notify_gates", "n-1")
	f.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	disabled := false
	if _, err := f.service.UpdatePreferences(ctx, "alice", PreferencesUpdate{Likes: &disabled}); err != nil {
		t.Fatalf("unexpected preferences error: %v", err)
	}

	if err := f.service.record(ctx, "alice", TypeLike, "gated", "", nil); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	page, err := f.service.List(ctx, "alice", 10, 0, false)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("gated category must not be stored, got %+v", page)
	}

	if err := f.service.record(ctx, "alice", TypeFollow, "allowed", "", nil); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	page, err = f.service.List(ctx, "alice", 10, 0, false)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("ungated category must be stored, got %+v", page)
	}
}

func TestPostCreatedFansOutToFollowers(t *testing.T) {
	f := newNotifyFixture(t, "notify_fanout", "n-1", "n-2")
	author := f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	f.seedUser(t, "carol", "Carol")
	ctx := context.Background()

	if _, err := f.graph.Follow(ctx, "bob", "alice"); err != nil {
		t.Fatalf("unexpected follow error: %v", err)
	}
	if _, err := f.graph.Follow(ctx, "carol", "alice"); err != nil {
		t.Fatalf("unexpected follow error: %v", err)
	}
	disabled := false
	if _, err := f.service.UpdatePreferences(ctx, "carol", PreferencesUpdate{Posts: &disabled}); err != nil {
		t.Fatalf("unexpected preferences error: %v", err)
	}

	f.dispatcher.Start()
	f.service.PostCreated(ctx, author, "post-1", "fresh post")
	f.dispatcher.Stop()

	bobPage, err := f.service.List(ctx, "bob", 10, 0, false)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if bobPage.Total != 1 || bobPage.Items[0].Type != TypeNewPost {
		t.Fatalf("expected a new_post notification for bob, got %+v", bobPage)
	}
	carolPage, err := f.service.List(ctx, "carol", 10, 0, false)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if carolPage.Total != 0 {
		t.Fatalf("carol disabled post notifications, got %+v", carolPage)
	}
}

func TestMarkReadAndMarkAllRead(t *testing.T) {
	f := newNotifyFixture(t, "notify_mark_read", "n-1", "n-2")
	f.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	if err := f.service.record(ctx, "alice", TypeFollow, "one", "", nil); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := f.service.record(ctx, "alice", TypeFollow, "two", "", nil); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	unread, err := f.service.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected unread error: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected 2 unread, got %d", unread)
	}

	if err := f.service.MarkRead(ctx, "alice", "n-1"); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if err := f.service.MarkRead(ctx, "alice", "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	if err := f.service.MarkRead(ctx, "bob", "n-2"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("another user's notification must be invisible, got %v", err)
	}

	if err := f.service.MarkAllRead(ctx, "alice"); err != nil {
		t.Fatalf("unexpected mark all error: %v", err)
	}
	unread, err = f.service.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected unread error: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected 0 unread after mark all, got %d", unread)
	}
}

func TestListUnreadOnlyFiltersReadRows(t *testing.T) {
	f := newNotifyFixture(t, "notify_list_unread", "n-1", "n-2")
	f.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	if err := f.service.record(ctx, "alice", TypeFollow, "one", "", nil); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := f.service.record(ctx, "alice", TypeFollow, "two", "", nil); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := f.service.MarkRead(ctx, "alice", "n-1"); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}

	page, err := f.service.List(ctx, "alice", 10, 0, true)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].NotificationID != "n-2" {
		t.Fatalf("expected only the unread notification, got %+v", page)
	}

	page, err = f.service.List(ctx, "alice", 10, 0, false)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected both notifications without the filter, got %+v", page)
	}
}

func TestPreferencesLazyCreateAllEnabled(t *testing.T) {
	f := newNotifyFixture(t, "notify_prefs_lazy")
	ctx := context.Background()

	prefs, err := f.service.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected preferences error: %v", err)
	}
	if !prefs.MessagesEnabled || !prefs.FollowsEnabled || !prefs.PostsEnabled || !prefs.LikesEnabled || !prefs.CommentsEnabled {
		t.Fatalf("expected all gates enabled on first access, got %+v", prefs)
	}

	var count int64
	if err := f.db.Model(&model.NotificationPreferences{}).Where("user_id = ?", "alice").Count(&count).Error; err != nil {
		t.Fatalf("failed to count preference rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one persisted preference row, got %d", count)
	}
}

func TestUpdatePreferencesPartial(t *testing.T) {
	f := newNotifyFixture(t, "notify_prefs_update")
	ctx := context.Background()

	disabled := false
	prefs, err := f.service.UpdatePreferences(ctx, "alice", PreferencesUpdate{Messages: &disabled})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if prefs.MessagesEnabled {
		t.Fatal("expected messages gate disabled")
	}
	if !prefs.FollowsEnabled || !prefs.PostsEnabled || !prefs.LikesEnabled || !prefs.CommentsEnabled {
		t.Fatalf("untouched gates must stay enabled, got %+v", prefs)
	}
}

func TestRegisterPushTokenUpsertsDeviceMetadata(t *testing.T) {
	f := newNotifyFixture(t, "notify_push_tokens")
	ctx := context.Background()

	if err := f.service.RegisterPushToken(ctx, "alice", "tok-1", "device-a", "ios"); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if err := f.service.RegisterPushToken(ctx, "alice", "tok-1", "device-b", "android"); err != nil {
		t.Fatalf("unexpected re-register error: %v", err)
	}

	var rows []model.PushToken
	if err := f.db.Where("user_id = ?", "alice").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load tokens: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("re-registration must not duplicate the row, got %d", len(rows))
	}
	if rows[0].DeviceID != "device-b" || rows[0].DeviceType != "android" {
		t.Fatalf("expected refreshed device metadata, got %+v", rows[0])
	}

	if err := f.service.RemovePushToken(ctx, "alice", "tok-1"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	var count int64
	if err := f.db.Model(&model.PushToken{}).Where("user_id = ?", "alice").Count(&count).Error; err != nil {
		t.Fatalf("failed to count tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected token removed, got %d rows", count)
	}

	if err := f.service.RegisterPushToken(ctx, "alice", "", "device", "ios"); err == nil {
		t.Fatal("expected an error for an empty token")
	}
}
