package feed

import (
	"context"
	"testing"
	"time"
)

func TestFeedWithEmptyGraphShowsOnlyOwnPosts(t *testing.T) {
	f := newFixture(t, "feed_solo")
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-alice", "club-1", "alice", "mine", fixtureClock())
	f.seedPost(t, "post-bob", "club-1", "bob", "not mine", fixtureClock())

	posts, total, err := f.service.Feed(context.Background(), "alice", 10, 0)
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("expected exactly the viewer's own post, got total=%d len=%d", total, len(posts))
	}
	if posts[0].PostID != "post-alice" {
		t.Fatalf("expected post-alice, got %s", posts[0].PostID)
	}
}

func TestFeedIncludesFollowedUsersAndClubs(t *testing.T) {
	f := newFixture(t, "feed_follow_union")
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	f.seedUser(t, "carol", "Carol")
	f.seedClub(t, "club-1", "Harbor")
	f.seedClub(t, "club-2", "Summit")
	base := fixtureClock()
	f.seedPost(t, "post-bob", "club-1", "bob", "followed author", base)
	f.seedPost(t, "post-club", "club-2", "carol", "followed club", base.Add(time.Minute))
	f.seedPost(t, "post-hidden", "club-1", "carol", "unrelated", base.Add(2*time.Minute))

	graphService := f.graph(t)
	ctx := context.Background()
	if _, err := graphService.Follow(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unexpected follow error: %v", err)
	}
	if _, err := graphService.FollowClub(ctx, "alice", "club-2"); err != nil {
		t.Fatalf("unexpected club follow error: %v", err)
	}

	posts, total, err := f.service.Feed(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 visible posts, got %d", total)
	}
	if posts[0].PostID != "post-club" || posts[1].PostID != "post-bob" {
		t.Fatalf("expected recency order post-club, post-bob; got %s, %s", posts[0].PostID, posts[1].PostID)
	}
	for _, post := range posts {
		if post.PostID == "post-hidden" {
			t.Fatal("post outside the follow graph leaked into the feed")
		}
	}
}

func TestFeedDoesNotDuplicateDoublyVisiblePosts(t *testing.T) {
	f := newFixture(t, "feed_dedupe")
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-1", "club-1", "bob", "both paths", fixtureClock())

	graphService := f.graph(t)
	ctx := context.Background()
	if _, err := graphService.Follow(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unexpected follow error: %v", err)
	}
	if _, err := graphService.FollowClub(ctx, "alice", "club-1"); err != nil {
		t.Fatalf("unexpected club follow error: %v", err)
	}

	posts, total, err := f.service.Feed(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("post visible via author and club must appear once, got total=%d len=%d", total, len(posts))
	}
}

func TestExploreIgnoresFollowGraph(t *testing.T) {
	f := newFixture(t, "feed_explore")
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	f.seedClub(t, "club-1", "Harbor")
	f.seedPost(t, "post-1", "club-1", "bob", "strangers welcome", fixtureClock())

	posts, total, err := f.service.Explore(context.Background(), "alice", 10, 0)
	if err != nil {
		t.Fatalf("unexpected explore error: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("expected the unfollowed post in explore, got total=%d len=%d", total, len(posts))
	}
}

func TestFeedPagination(t *testing.T) {
	f := newFixture(t, "feed_pagination")
	f.seedUser(t, "alice", "Alice")
	f.seedClub(t, "club-1", "Harbor")
	base := fixtureClock()
	for i := 0; i < 5; i++ {
		f.seedPost(t, postID(i), "club-1", "alice", "entry", base.Add(time.Duration(i)*time.Minute))
	}

	posts, total, err := f.service.Feed(context.Background(), "alice", 2, 0)
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(posts) != 2 {
		t.Fatalf("expected a page of 2, got %d", len(posts))
	}

	tail, _, err := f.service.Feed(context.Background(), "alice", 2, 4)
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if len(tail) != 1 {
		t.Fatalf("expected 1 entry on the last page, got %d", len(tail))
	}
}

func postID(i int) string {
	return "post-" + string(rune('a'+i))
}
