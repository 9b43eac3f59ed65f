package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/venuefeed/internal/engagement"
)

type friendPair struct {
	a, b string
}

// normalizePair orders a friendship pair so each friendship is stored once
// and traversal in either direction resolves the same edge.
func normalizePair(a, b string) friendPair {
	if a > b {
		a, b = b, a
	}
	return friendPair{a: a, b: b}
}

type shareEdge struct {
	fromUserID string
	toUserID   string
	venueID    string
	timestamp  time.Time
}

// MemoryStore is an in-memory Store and Recorder backed by adjacency maps
// and the two-tier engagement log. It is the reference implementation used
// in tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]User
	friendships map[friendPair]struct{}
	videoVenue  map[string]string
	venueVideos map[string][]string
	shares      []shareEdge
	log         *engagement.Log
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]User),
		friendships: make(map[friendPair]struct{}),
		videoVenue:  make(map[string]string),
		venueVideos: make(map[string][]string),
		log:         engagement.NewLog(),
		now:         time.Now,
	}
}

// Log exposes the underlying engagement log.
func (s *MemoryStore) Log() *engagement.Log {
	return s.log
}

// UpsertUser stores a user's profile.
func (s *MemoryStore) UpsertUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// UpsertVideo registers venue ownership for a video.
func (s *MemoryStore) UpsertVideo(_ context.Context, videoID, venueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.videoVenue[videoID]; ok && existing == venueID {
		return nil
	}
	s.videoVenue[videoID] = venueID
	s.venueVideos[venueID] = append(s.venueVideos[venueID], videoID)
	return nil
}

// AddFriendship creates a symmetric friendship. Idempotent.
func (s *MemoryStore) AddFriendship(_ context.Context, userA, userB string) error {
	if userA == userB {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[normalizePair(userA, userB)] = struct{}{}
	return nil
}

// RecordEngagement persists an observation through the engagement log.
func (s *MemoryStore) RecordEngagement(_ context.Context, userID, itemID, rawAction string, watchTimeSeconds int) (engagement.Edge, error) {
	return s.log.Record(userID, itemID, rawAction, watchTimeSeconds), nil
}

// RecordShare records share edges from the user to each recipient for the
// venue.
func (s *MemoryStore) RecordShare(_ context.Context, userID, venueID string, sharedWith []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	for _, friendID := range sharedWith {
		s.shares = append(s.shares, shareEdge{
			fromUserID: userID,
			toUserID:   friendID,
			venueID:    venueID,
			timestamp:  ts,
		})
	}
	return nil
}

// FriendsOf returns the user's direct friends, each exactly once.
func (s *MemoryStore) FriendsOf(_ context.Context, userID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.friendsOfLocked(userID), nil
}

func (s *MemoryStore) friendsOfLocked(userID string) []User {
	var out []User
	for pair := range s.friendships {
		var friendID string
		switch userID {
		case pair.a:
			friendID = pair.b
		case pair.b:
			friendID = pair.a
		default:
			continue
		}
		out = append(out, s.userOrPlaceholder(friendID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) userOrPlaceholder(userID string) User {
	if u, ok := s.users[userID]; ok {
		return u
	}
	return User{ID: userID, Name: userID}
}

// StrongItemEngagements returns friends who strongly engaged with the item,
// at most one entry per (friend, action).
func (s *MemoryStore) StrongItemEngagements(_ context.Context, userID, itemID string) ([]FriendEngagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []FriendEngagement
	for _, friend := range s.friendsOfLocked(userID) {
		seen := make(map[engagement.Action]bool)
		for _, e := range s.log.Edges(friend.ID, itemID) {
			if !engagement.IsStrongSignal(e.Action, e.WatchTime) {
				continue
			}
			if seen[e.Action] {
				continue
			}
			seen[e.Action] = true
			out = append(out, FriendEngagement{
				FriendID:   friend.ID,
				FriendName: friend.Name,
				Action:     e.Action,
				WatchTime:  e.WatchTime,
			})
		}
	}
	return out, nil
}

// StrongVenueEngagements returns distinct friends who strongly engaged with
// any other video belonging to the venue.
func (s *MemoryStore) StrongVenueEngagements(_ context.Context, userID, venueID, excludeItemID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []User
	for _, friend := range s.friendsOfLocked(userID) {
		engaged := false
		for _, videoID := range s.venueVideos[venueID] {
			if videoID == excludeItemID {
				continue
			}
			for _, e := range s.log.Edges(friend.ID, videoID) {
				if engagement.IsStrongSignal(e.Action, e.WatchTime) {
					engaged = true
					break
				}
			}
			if engaged {
				break
			}
		}
		if engaged {
			out = append(out, friend)
		}
	}
	return out, nil
}

// MutualFriendsEngaged returns second-degree connections with strong
// engagement on the item, excluding the user and direct friends.
func (s *MemoryStore) MutualFriendsEngaged(_ context.Context, userID, itemID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	direct := make(map[string]bool)
	for _, f := range s.friendsOfLocked(userID) {
		direct[f.ID] = true
	}

	mutuals := make(map[string]bool)
	for f := range direct {
		for _, m := range s.friendsOfLocked(f) {
			if m.ID == userID || direct[m.ID] {
				continue
			}
			mutuals[m.ID] = true
		}
	}

	var out []string
	for id := range mutuals {
		for _, e := range s.log.Edges(id, itemID) {
			if engagement.IsStrongSignal(e.Action, e.WatchTime) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// VenueSharers returns distinct direct friends who pushed the venue to
// someone, regardless of their own watch activity.
func (s *MemoryStore) VenueSharers(_ context.Context, userID, venueID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	direct := make(map[string]bool)
	for _, f := range s.friendsOfLocked(userID) {
		direct[f.ID] = true
	}

	seen := make(map[string]bool)
	var out []User
	for _, edge := range s.shares {
		if edge.venueID != venueID || !direct[edge.fromUserID] || seen[edge.fromUserID] {
			continue
		}
		seen[edge.fromUserID] = true
		out = append(out, s.userOrPlaceholder(edge.fromUserID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SeenItems returns the distinct items the user has engaged with.
func (s *MemoryStore) SeenItems(_ context.Context, userID string) ([]string, error) {
	return s.log.SeenItems(userID), nil
}

// FriendEngagedItems returns items the user's friends strongly engaged
// with, ordered by the highest watch time observed across friends.
func (s *MemoryStore) FriendEngagedItems(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxWatch := make(map[string]int)
	for _, friend := range s.friendsOfLocked(userID) {
		for _, e := range s.log.ByUser(friend.ID) {
			if !engagement.IsStrongSignal(e.Action, e.WatchTime) {
				continue
			}
			if cur, ok := maxWatch[e.ItemID]; !ok || e.WatchTime > cur {
				maxWatch[e.ItemID] = e.WatchTime
			}
		}
	}

	items := make([]string, 0, len(maxWatch))
	for id := range maxWatch {
		items = append(items, id)
	}
	sort.Slice(items, func(i, j int) bool {
		if maxWatch[items[i]] != maxWatch[items[j]] {
			return maxWatch[items[i]] > maxWatch[items[j]]
		}
		return items[i] < items[j]
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// RecentEngagementCount counts engagements against the item inside the
// lookback window.
func (s *MemoryStore) RecentEngagementCount(_ context.Context, itemID string, window time.Duration) (int, error) {
	s.mu.RLock()
	now := s.now
	s.mu.RUnlock()
	return s.log.RecentCount(itemID, now().Add(-window)), nil
}

// WatchHistory returns the user's engagement history, newest first.
func (s *MemoryStore) WatchHistory(_ context.Context, userID string, limit int) ([]HistoryEntry, error) {
	edges := s.log.ByUser(userID)
	if limit > 0 && len(edges) > limit {
		edges = edges[:limit]
	}
	out := make([]HistoryEntry, 0, len(edges))
	for _, e := range edges {
		out = append(out, HistoryEntry{
			ItemID:    e.ItemID,
			Action:    e.Action,
			WatchTime: e.WatchTime,
			Timestamp: e.Timestamp,
		})
	}
	return out, nil
}

// Users returns all known users ordered by name.
func (s *MemoryStore) Users(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetUser returns a user by ID.
func (s *MemoryStore) GetUser(_ context.Context, userID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// SetClock overrides the store's time source. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.log.SetClock(now)
}
