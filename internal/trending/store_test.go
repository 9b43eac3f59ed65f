package trending

import (
	"context"
	"testing"
	"time"
)

type stubEngagementCounter struct {
	count int
	item  string
}

func (s *stubEngagementCounter) RecentEngagementCount(_ context.Context, itemID string, _ time.Duration) (int, error) {
	s.item = itemID
	return s.count, nil
}

func TestStoreCounter(t *testing.T) {
	ctx := context.Background()
	stub := &stubEngagementCounter{count: 7}
	c := NewStoreCounter(stub)

	// Record never touches the store.
	if err := c.Record(ctx, "video_1", time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := c.Count(ctx, "video_1", 24*time.Hour)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if got != 7 {
		t.Errorf("expected delegated count 7, got %d", got)
	}
	if stub.item != "video_1" {
		t.Errorf("expected store queried for video_1, got %q", stub.item)
	}
}
