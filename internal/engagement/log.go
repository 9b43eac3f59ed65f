package engagement

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Edge is a recorded engagement between a user and an item (video or venue).
type Edge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Action    Action    `json:"action"`
	WatchTime int       `json:"watch_time"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

type pairKey struct {
	userID string
	itemID string
}

// Log stores engagement edges with two persistence tiers:
//
//   - Weak actions (viewed, skipped) merge into a single mutable
//     latest-state record per (user, item). Concurrent writers to the same
//     weak edge race and the last writer's watch_time and timestamp win,
//     which is accepted behavior.
//   - Strong actions (saved, shared) always append an independent edge,
//     preserving the full history of high-signal events.
//
// A weak write over a record whose label was upgraded by a strong action
// refreshes watch_time, weight and timestamp but never downgrades the label.
// This precedence rule lives here, and only here, so it can be tested
// independently of any database upsert semantics.
type Log struct {
	mu      sync.RWMutex
	latest  map[pairKey]*Edge
	history []Edge
	now     func() time.Time
}

// NewLog creates an empty engagement log.
func NewLog() *Log {
	return &Log{
		latest: make(map[pairKey]*Edge),
		now:    time.Now,
	}
}

// Record classifies a raw observation and persists it according to the
// two-tier policy. It returns the edge as stored (for strong actions, the
// newly appended edge).
func (l *Log) Record(userID, itemID, rawAction string, watchTimeSeconds int) Edge {
	action, weight := Classify(rawAction, watchTimeSeconds)

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	key := pairKey{userID: userID, itemID: itemID}

	if IsStrong(action) {
		edge := Edge{
			ID:        uuid.NewString(),
			UserID:    userID,
			ItemID:    itemID,
			Action:    action,
			WatchTime: watchTimeSeconds,
			Weight:    weight,
			Timestamp: ts,
		}
		l.history = append(l.history, edge)

		// Upgrade the latest-state label so later weak writes cannot
		// present the pair as merely viewed.
		if cur, ok := l.latest[key]; ok {
			cur.Action = action
			cur.WatchTime = watchTimeSeconds
			cur.Weight = weight
			cur.Timestamp = ts
		} else {
			state := edge
			state.ID = uuid.NewString()
			l.latest[key] = &state
		}
		return edge
	}

	cur, ok := l.latest[key]
	if !ok {
		edge := Edge{
			ID:        uuid.NewString(),
			UserID:    userID,
			ItemID:    itemID,
			Action:    action,
			WatchTime: watchTimeSeconds,
			Weight:    weight,
			Timestamp: ts,
		}
		l.latest[key] = &edge
		return edge
	}

	cur.WatchTime = watchTimeSeconds
	cur.Weight = weight
	cur.Timestamp = ts
	if !IsStrong(cur.Action) {
		cur.Action = action
	}
	return *cur
}

// Edges returns all stored edges for a (user, item) pair: the latest-state
// record plus any appended strong-action history, newest first.
func (l *Log) Edges(userID, itemID string) []Edge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Edge
	if cur, ok := l.latest[pairKey{userID: userID, itemID: itemID}]; ok {
		out = append(out, *cur)
	}
	for _, e := range l.history {
		if e.UserID == userID && e.ItemID == itemID {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

// ByUser returns all edges recorded for a user, newest first.
func (l *Log) ByUser(userID string) []Edge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Edge
	for _, cur := range l.latest {
		if cur.UserID == userID {
			out = append(out, *cur)
		}
	}
	for _, e := range l.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

// ByItem returns all edges recorded against an item.
func (l *Log) ByItem(itemID string) []Edge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Edge
	for _, cur := range l.latest {
		if cur.ItemID == itemID {
			out = append(out, *cur)
		}
	}
	for _, e := range l.history {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out
}

// SeenItems returns the distinct item IDs the user has engaged with through
// any action.
func (l *Log) SeenItems(userID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range l.latest {
		if key.userID == userID {
			seen[key.itemID] = true
		}
	}
	for _, e := range l.history {
		if e.UserID == userID {
			seen[e.ItemID] = true
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RecentCount returns the number of edges against an item recorded at or
// after the cutoff.
func (l *Log) RecentCount(itemID string, since time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, cur := range l.latest {
		if cur.ItemID == itemID && !cur.Timestamp.Before(since) {
			count++
		}
	}
	for _, e := range l.history {
		if e.ItemID == itemID && !e.Timestamp.Before(since) {
			count++
		}
	}
	return count
}

// SetClock overrides the log's time source. Intended for tests.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func sortNewestFirst(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Timestamp.After(edges[j].Timestamp)
	})
}
