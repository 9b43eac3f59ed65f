package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/venuefeed/internal/engagement"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()

	users := []User{
		{ID: "user_me", Name: "Me"},
		{ID: "user_alice", Name: "Alice"},
		{ID: "user_bob", Name: "Bob"},
		{ID: "user_carol", Name: "Carol"},
	}
	for _, u := range users {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("upsert user: %v", err)
		}
	}

	// Me -- Alice -- Carol, Me -- Bob. Carol is a mutual, not a friend.
	if err := s.AddFriendship(ctx, "user_me", "user_alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddFriendship(ctx, "user_me", "user_bob"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddFriendship(ctx, "user_alice", "user_carol"); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertVideo(ctx, "video_1", "venue_1"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertVideo(ctx, "video_2", "venue_1"); err != nil {
		t.Fatal(err)
	}
	return s
}

// TestFriendsOfSymmetric verifies traversal in either direction resolves
// the same friendship exactly once.
func TestFriendsOfSymmetric(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	friends, err := s.FriendsOf(ctx, "user_me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("expected 2 friends, got %d: %+v", len(friends), friends)
	}

	// Re-adding in reverse order must not create a second edge.
	if err := s.AddFriendship(ctx, "user_alice", "user_me"); err != nil {
		t.Fatal(err)
	}
	friends, _ = s.FriendsOf(ctx, "user_me")
	if len(friends) != 2 {
		t.Errorf("reverse add duplicated a friendship: %+v", friends)
	}

	friendsOfAlice, _ := s.FriendsOf(ctx, "user_alice")
	if len(friendsOfAlice) != 2 {
		t.Errorf("expected Alice to have 2 friends, got %+v", friendsOfAlice)
	}
}

// TestStrongItemEngagements covers the strong-signal threshold and the
// per-(friend, action) deduplication.
func TestStrongItemEngagements(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	s.Log().Record("user_alice", "video_1", engagement.RawShare, 20)
	s.Log().Record("user_bob", "video_1", engagement.RawView, 8) // too short to count
	s.Log().Record("user_carol", "video_1", engagement.RawSave, 20) // not a direct friend

	got, err := s.StrongItemEngagements(ctx, "user_me", "video_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 engagement, got %+v", got)
	}
	if got[0].FriendName != "Alice" || got[0].Action != engagement.ActionShared {
		t.Errorf("unexpected engagement: %+v", got[0])
	}
}

// TestStrongVenueEngagements verifies spillover excludes the item itself.
func TestStrongVenueEngagements(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	s.Log().Record("user_alice", "video_2", engagement.RawSave, 20)
	s.Log().Record("user_bob", "video_1", engagement.RawSave, 20)

	got, err := s.StrongVenueEngagements(ctx, "user_me", "venue_1", "video_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "user_alice" {
		t.Errorf("expected only Alice via video_2, got %+v", got)
	}
}

// TestMutualFriendsEngaged verifies second-degree traversal excludes the
// user and direct friends.
func TestMutualFriendsEngaged(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	s.Log().Record("user_carol", "video_1", engagement.RawView, 15)
	s.Log().Record("user_bob", "video_1", engagement.RawSave, 20) // direct friend, excluded

	got, err := s.MutualFriendsEngaged(ctx, "user_me", "video_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "user_carol" {
		t.Errorf("expected only Carol, got %v", got)
	}
}

// TestVenueSharers verifies the received-share trust transfer is visible
// without any watch activity.
func TestVenueSharers(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	if err := s.RecordShare(ctx, "user_alice", "venue_1", []string{"user_carol"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordShare(ctx, "user_carol", "venue_1", []string{"user_alice"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.VenueSharers(ctx, "user_me", "venue_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Carol shared too, but she is not a direct friend of user_me.
	if len(got) != 1 || got[0].ID != "user_alice" {
		t.Errorf("expected only Alice, got %+v", got)
	}
}

// TestFriendEngagedItems verifies injection ordering and limits.
func TestFriendEngagedItems(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	s.Log().Record("user_alice", "video_1", engagement.RawView, 12)
	s.Log().Record("user_bob", "video_2", engagement.RawView, 40)
	s.Log().Record("user_bob", "video_3", engagement.RawView, 5) // weak, excluded

	got, err := s.FriendEngagedItems(ctx, "user_me", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %v", got)
	}
	if got[0] != "video_2" || got[1] != "video_1" {
		t.Errorf("expected most-watched first, got %v", got)
	}

	limited, _ := s.FriendEngagedItems(ctx, "user_me", 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %v", limited)
	}
}

// TestSeenItems verifies any action marks an item as seen.
func TestSeenItems(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	s.Log().Record("user_me", "video_1", engagement.RawSkip, 1)
	s.Log().Record("user_me", "video_2", engagement.RawSave, 20)

	got, err := s.SeenItems(ctx, "user_me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 seen items, got %v", got)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetUser(context.Background(), "user_ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
