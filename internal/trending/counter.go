// Package trending tracks per-item engagement volume over a sliding time
// window. The window count feeds the trending sub-signal of feed ranking.
package trending

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Counter records engagement events and reports how many landed inside a
// trailing window. Implementations must be safe for concurrent use.
type Counter interface {
	// Record notes one engagement with the item at time now.
	Record(ctx context.Context, itemID string, now time.Time) error
	// Count returns the number of engagements with the item in the
	// window ending at now.
	Count(ctx context.Context, itemID string, window time.Duration) (int, error)
}

// MemoryCounter is an in-process Counter backed by per-item timestamp
// slices. It prunes expired entries lazily on Count.
type MemoryCounter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Record notes one engagement with the item.
func (c *MemoryCounter) Record(_ context.Context, itemID string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[itemID] = append(c.events[itemID], now)
	return nil
}

// Count returns the number of engagements inside the trailing window,
// discarding older entries as a side effect.
func (c *MemoryCounter) Count(_ context.Context, itemID string, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)
	events := c.events[itemID]
	// events are appended in arrival order, so the first index past the
	// cutoff bounds the live suffix.
	i := sort.Search(len(events), func(i int) bool {
		return events[i].After(cutoff)
	})
	if i > 0 {
		events = events[i:]
		if len(events) == 0 {
			delete(c.events, itemID)
		} else {
			c.events[itemID] = events
		}
	}
	return len(events), nil
}

// SetClock overrides the wall clock. Test use only.
func (c *MemoryCounter) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
