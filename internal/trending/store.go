package trending

import (
	"context"
	"time"
)

// EngagementCounter is the slice of the graph store the adapter needs.
type EngagementCounter interface {
	RecentEngagementCount(ctx context.Context, itemID string, window time.Duration) (int, error)
}

// StoreCounter answers window counts from the engagement graph. The graph
// already persists every engagement, so Record is a no-op; use it when no
// Redis instance is configured.
type StoreCounter struct {
	store EngagementCounter
}

// NewStoreCounter creates a counter reading from the given store.
func NewStoreCounter(store EngagementCounter) *StoreCounter {
	return &StoreCounter{store: store}
}

// Record is a no-op. The engagement is already in the graph.
func (c *StoreCounter) Record(context.Context, string, time.Time) error {
	return nil
}

// Count delegates to the graph store.
func (c *StoreCounter) Count(ctx context.Context, itemID string, window time.Duration) (int, error) {
	return c.store.RecentEngagementCount(ctx, itemID, window)
}
