package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
)

var fixtureClock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

type recordedMessage struct {
	SenderID   string
	ReceiverID string
	MessageID  string
	Preview    string
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []recordedMessage
}

func (r *recordingNotifier) NewMessage(_ context.Context, sender model.User, receiverID, messageID, preview string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, recordedMessage{
		SenderID:   sender.UID,
		ReceiverID: receiverID,
		MessageID:  messageID,
		Preview:    preview,
	})
}

func (r *recordingNotifier) captured() []recordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedMessage(nil), r.messages...)
}

func newMessagingFixture(t *testing.T, name string, identifiers ...string) (*Service, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Message{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	notifier := &recordingNotifier{}
	service, err := NewService(ServiceConfig{
		Database: db,
		Notifier: notifier,
		IDs:      ids.Fixed(identifiers...),
		Clock:    fixtureClock,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service, db, notifier
}

func seedUser(t *testing.T, db *gorm.DB, uid, name string) model.User {
	t.Helper()
	user := model.User{UID: uid, DisplayName: name}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", uid, err)
	}
	return user
}

func seedMessage(t *testing.T, db *gorm.DB, id, senderID, receiverID, content string, at time.Time, read bool) {
	t.Helper()
	message := model.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		IsRead:     read,
		CreatedAt:  at,
	}
	if err := db.Create(&message).Error; err != nil {
		t.Fatalf("failed to seed message %s: %v", id, err)
	}
}

func TestSendPersistsAndNotifies(t *testing.T) {
	service, db, notifier := newMessagingFixture(t, "msg_send", "msg-1")
	alice := seedUser(t, db, "alice", "Alice")
	seedUser(t, db, "bob", "Bob")

	message, err := service.Send(context.Background(), alice, "bob", "hello bob")
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if message.MessageID != "msg-1" || message.IsRead {
		t.Fatalf("unexpected message: %+v", message)
	}

	recorded := notifier.captured()
	if len(recorded) != 1 {
		t.Fatalf("expected one notification, got %d", len(recorded))
	}
	if recorded[0].ReceiverID != "bob" || recorded[0].Preview != "hello bob" {
		t.Fatalf("unexpected notification: %+v", recorded[0])
	}
}

func TestSendValidation(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_validation")
	alice := seedUser(t, db, "alice", "Alice")
	ctx := context.Background()

	if _, err := service.Send(ctx, alice, "bob", "   "); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent for blank content, got %v", err)
	}
	oversized := strings.Repeat("x", maxMessageContentLength+1)
	if _, err := service.Send(ctx, alice, "bob", oversized); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent for oversized content, got %v", err)
	}
	if _, err := service.Send(ctx, alice, "alice", "hi me"); !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("expected ErrSelfMessage, got %v", err)
	}
	if _, err := service.Send(ctx, alice, "ghost", "anyone there"); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
}

func TestSendAcceptsMultibyteContentAtLimit(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_multibyte", "msg-1")
	alice := seedUser(t, db, "alice", "Alice")
	seedUser(t, db, "bob", "Bob")
	ctx := context.Background()

	content := strings.Repeat("ü", maxMessageContentLength)
	message, err := service.Send(ctx, alice, "bob", content)
	if err != nil {
		t.Fatalf("unexpected send error for %d-character content: %v", maxMessageContentLength, err)
	}
	if message.Content != content {
		t.Fatal("expected content stored unchanged")
	}
	if _, err := service.Send(ctx, alice, "bob", content+"ü"); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent one character over the limit, got %v", err)
	}
}

type stubDirectory struct {
	mu      sync.Mutex
	known   map[string]bool
	queried []string
}

func (d *stubDirectory) Exists(_ context.Context, uid string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queried = append(d.queried, uid)
	return d.known[uid], nil
}

func TestSendConsultsDirectoryForRecipient(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_directory", "msg-1")
	alice := seedUser(t, db, "alice", "Alice")
	directory := &stubDirectory{known: map[string]bool{"bob": true}}
	service.directory = directory
	ctx := context.Background()

	if _, err := service.Send(ctx, alice, "ghost", "anyone there"); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound for unknown recipient, got %v", err)
	}
	if _, err := service.Send(ctx, alice, "bob", "hello"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if len(directory.queried) != 2 || directory.queried[0] != "ghost" || directory.queried[1] != "bob" {
		t.Fatalf("expected directory lookups for both recipients, got %v", directory.queried)
	}
}

func TestConversationsFoldNewestFirstWithUnreadCounts(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_conversations")
	seedUser(t, db, "alice", "Alice")
	seedUser(t, db, "bob", "Bob")
	seedUser(t, db, "carol", "Carol")
	base := fixtureClock()

	seedMessage(t, db, "m1", "bob", "alice", "oldest from bob", base, false)
	seedMessage(t, db, "m2", "alice", "bob", "reply to bob", base.Add(time.Minute), true)
	seedMessage(t, db, "m3", "bob", "alice", "latest from bob", base.Add(2*time.Minute), false)
	seedMessage(t, db, "m4", "carol", "alice", "hi from carol", base.Add(3*time.Minute), false)

	conversations, err := service.Conversations(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected conversations error: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].UserID != "carol" || conversations[1].UserID != "bob" {
		t.Fatalf("expected newest activity first, got %s then %s", conversations[0].UserID, conversations[1].UserID)
	}
	if conversations[1].LastMessage != "latest from bob" {
		t.Fatalf("expected the latest message to summarize the thread, got %q", conversations[1].LastMessage)
	}
	if conversations[1].UnreadCount != 2 {
		t.Fatalf("expected 2 unread from bob, got %d", conversations[1].UnreadCount)
	}
	if conversations[0].DisplayName != "Carol" {
		t.Fatalf("expected counterpart profile data, got %+v", conversations[0])
	}
}

func TestThreadMarksCounterpartMessagesRead(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_thread")
	seedUser(t, db, "alice", "Alice")
	seedUser(t, db, "bob", "Bob")
	base := fixtureClock()
	seedMessage(t, db, "m1", "bob", "alice", "one", base, false)
	seedMessage(t, db, "m2", "alice", "bob", "two", base.Add(time.Minute), false)
	seedMessage(t, db, "m3", "bob", "alice", "three", base.Add(2*time.Minute), false)
	ctx := context.Background()

	thread, err := service.Thread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected thread error: %v", err)
	}
	if len(thread) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(thread))
	}
	if thread[0].MessageID != "m1" || thread[2].MessageID != "m3" {
		t.Fatalf("expected chronological order, got %s ... %s", thread[0].MessageID, thread[2].MessageID)
	}

	unread, err := service.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected unread error: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected thread read to clear unread count, got %d", unread)
	}
	unread, err = service.UnreadCount(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected unread error: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected bob's unread count untouched, got %d", unread)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_delete")
	seedUser(t, db, "alice", "Alice")
	seedUser(t, db, "bob", "Bob")
	seedMessage(t, db, "m1", "alice", "bob", "mine", fixtureClock(), false)
	ctx := context.Background()

	if err := service.DeleteMessage(ctx, "bob", "m1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for the receiver, got %v", err)
	}
	if err := service.DeleteMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := service.DeleteMessage(ctx, "alice", "m1"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound after delete, got %v", err)
	}
}

func TestDeleteConversationRemovesBothDirections(t *testing.T) {
	service, db, _ := newMessagingFixture(t, "msg_delete_conversation")
	seedUser(t, db, "alice", "Alice")
	seedUser(t, db, "bob", "Bob")
	seedUser(t, db, "carol", "Carol")
	base := fixtureClock()
	seedMessage(t, db, "m1", "alice", "bob", "to bob", base, false)
	seedMessage(t, db, "m2", "bob", "alice", "from bob", base.Add(time.Minute), false)
	seedMessage(t, db, "m3", "carol", "alice", "from carol", base.Add(2*time.Minute), false)
	ctx := context.Background()

	if err := service.DeleteConversation(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	var remaining int64
	if err := db.Model(&model.Message{}).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected only the carol message to survive, got %d", remaining)
	}
}
