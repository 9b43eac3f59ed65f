// Package graph defines the relationship store consumed by the feed
// pipeline: friendships, engagement edges, and venue share edges. The feed
// core only reads through Store; writes go through Recorder and are issued
// by the HTTP layer. Implementations may be backed by an in-memory
// adjacency list, a SQL database, or a remote graph database.
package graph

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/venuefeed/internal/engagement"
)

// ErrUserNotFound is returned when an operation references an unknown user.
var ErrUserNotFound = errors.New("user not found")

// User is a member of the social graph.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Interests []string `json:"interests,omitempty"`
	Archetype string   `json:"archetype,omitempty"`
}

// FriendEngagement is a friend's strong engagement with an item, deduplicated
// to at most one entry per (friend, action).
type FriendEngagement struct {
	FriendID   string
	FriendName string
	Action     engagement.Action
	WatchTime  int
}

// HistoryEntry is one row of a user's watch history.
type HistoryEntry struct {
	ItemID    string            `json:"item_id"`
	Action    engagement.Action `json:"action"`
	WatchTime int               `json:"watch_time"`
	Timestamp time.Time         `json:"timestamp"`
}

// Store is the read side of the relationship graph. All methods are
// read-only; feed computation never mutates graph state.
type Store interface {
	// FriendsOf returns the user's direct friends. Friendships are
	// symmetric and each friend appears exactly once regardless of which
	// direction the physical edge pair is traversed.
	FriendsOf(ctx context.Context, userID string) ([]User, error)

	// StrongItemEngagements returns the user's friends who strongly
	// engaged with the exact item (save, share, or a view of >= 10s).
	StrongItemEngagements(ctx context.Context, userID, itemID string) ([]FriendEngagement, error)

	// StrongVenueEngagements returns the distinct friends who strongly
	// engaged with any video of the venue other than excludeItemID.
	StrongVenueEngagements(ctx context.Context, userID, venueID, excludeItemID string) ([]User, error)

	// MutualFriendsEngaged returns friends-of-friends (excluding the
	// user and the user's direct friends) who strongly engaged with the
	// item.
	MutualFriendsEngaged(ctx context.Context, userID, itemID string) ([]string, error)

	// VenueSharers returns the distinct direct friends who pushed the
	// venue to someone via a share, independent of watch activity.
	VenueSharers(ctx context.Context, userID, venueID string) ([]User, error)

	// SeenItems returns the distinct item IDs the user has engaged with
	// through any action.
	SeenItems(ctx context.Context, userID string) ([]string, error)

	// FriendEngagedItems returns up to limit item IDs the user's direct
	// friends engaged with strongly, most engaged (highest watch time)
	// first.
	FriendEngagedItems(ctx context.Context, userID string, limit int) ([]string, error)

	// RecentEngagementCount returns the number of engagements recorded
	// against the item within the lookback window.
	RecentEngagementCount(ctx context.Context, itemID string, window time.Duration) (int, error)

	// WatchHistory returns the user's engagement history, newest first.
	WatchHistory(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)

	// Users returns all known users, ordered by name.
	Users(ctx context.Context) ([]User, error)

	// GetUser returns a single user. Returns ErrUserNotFound when absent.
	GetUser(ctx context.Context, userID string) (User, error)
}

// Recorder is the write side of the relationship graph, driven by
// ingestion endpoints outside the feed core.
type Recorder interface {
	// RecordEngagement classifies and persists an engagement observation
	// under the two-tier policy: weak actions merge into a latest-state
	// record, strong actions append. Returns the stored edge.
	RecordEngagement(ctx context.Context, userID, itemID, rawAction string, watchTimeSeconds int) (engagement.Edge, error)

	// AddFriendship creates a symmetric friendship between two users.
	// Creating an existing friendship is a no-op.
	AddFriendship(ctx context.Context, userA, userB string) error

	// RecordShare records that the user pushed the venue to each of the
	// given friends.
	RecordShare(ctx context.Context, userID, venueID string, sharedWith []string) error

	// UpsertUser stores a user's profile.
	UpsertUser(ctx context.Context, u User) error

	// UpsertVideo registers a video's venue ownership so venue-level
	// queries can resolve spillover.
	UpsertVideo(ctx context.Context, videoID, venueID string) error
}
