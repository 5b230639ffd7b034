package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAddCommentNotifiesPostOwner(t *testing.T) {
	f := newFixture(t, "comments_add", "comment-1")
	f.seedUser(t, "alice", "Alice")
	bob := f.seedUser(t, "bob", "Bob")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-1", "club-1", "alice", "discuss", fixtureClock())

	comment, err := f.service.AddComment(context.Background(), bob, "post-1", "great idea")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if comment.CommentID != "comment-1" || comment.AuthorName != "Bob" {
		t.Fatalf("unexpected comment: %+v", comment)
	}

	events := f.notifier.captured()
	if len(events) != 1 || events[0].Kind != "comment_added" || events[0].OwnerID != "alice" {
		t.Fatalf("expected one comment_added event for the owner, got %+v", events)
	}
}

func TestAddCommentOwnPostSkipsNotification(t *testing.T) {
	f := newFixture(t, "comments_self")
	alice := f.seedUser(t, "alice", "Alice")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-1", "club-1", "alice", "self talk", fixtureClock())

	if _, err := f.service.AddComment(context.Background(), alice, "post-1", "note to self"); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if events := f.notifier.captured(); len(events) != 0 {
		t.Fatalf("commenting on own post must not notify, got %+v", events)
	}
}

func TestAddCommentValidation(t *testing.T) {
	f := newFixture(t, "comments_validation")
	bob := f.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	if _, err := f.service.AddComment(ctx, bob, "post-1", "  "); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent for blank comment, got %v", err)
	}
	oversized := strings.Repeat("é", maxCommentContentLength+1)
	if _, err := f.service.AddComment(ctx, bob, "post-1", oversized); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent for oversized comment, got %v", err)
	}
	if _, err := f.service.AddComment(ctx, bob, "missing", "hello"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestListCommentsWithViewerState(t *testing.T) {
	f := newFixture(t, "comments_list", "comment-1", "comment-2")
	alice := f.seedUser(t, "alice", "Alice")
	bob := f.seedUser(t, "bob", "Bob")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-1", "club-1", "alice", "thread", fixtureClock())
	ctx := context.Background()

	first, err := f.service.AddComment(ctx, alice, "post-1", "first")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if _, err := f.service.AddComment(ctx, bob, "post-1", "second"); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if _, err := f.service.ToggleCommentLike(ctx, bob, first.CommentID); err != nil {
		t.Fatalf("unexpected like error: %v", err)
	}

	comments, total, err := f.service.ListComments(ctx, "bob", "post-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 comments, got %d", total)
	}
	var firstEntry *Comment
	for i := range comments {
		if comments[i].CommentID == first.CommentID {
			firstEntry = &comments[i]
		}
	}
	if firstEntry == nil {
		t.Fatal("expected the first comment in the listing")
	}
	if !firstEntry.IsLikedByUser || firstEntry.LikesCount != 1 {
		t.Fatalf("expected viewer like state on the first comment, got %+v", firstEntry)
	}
}

func TestDeleteCommentAuthorOnly(t *testing.T) {
	f := newFixture(t, "comments_delete", "comment-1")
	alice := f.seedUser(t, "alice", "Alice")
	bob := f.seedUser(t, "bob", "Bob")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-1", "club-1", "alice", "thread", fixtureClock())
	ctx := context.Background()

	comment, err := f.service.AddComment(ctx, bob, "post-1", "mine")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if _, err := f.service.ToggleCommentLike(ctx, alice, comment.CommentID); err != nil {
		t.Fatalf("unexpected like error: %v", err)
	}

	if err := f.service.DeleteComment(ctx, "alice", comment.CommentID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a non-author, got %v", err)
	}
	if err := f.service.DeleteComment(ctx, "bob", comment.CommentID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	var likeCount int64
	if err := f.db.Table("comment_likes").Where("comment_id = ?", comment.CommentID).Count(&likeCount).Error; err != nil {
		t.Fatalf("failed to count comment likes: %v", err)
	}
	if likeCount != 0 {
		t.Fatalf("expected comment likes to cascade, found %d", likeCount)
	}
	if err := f.service.DeleteComment(ctx, "bob", comment.CommentID); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound after delete, got %v", err)
	}
}
