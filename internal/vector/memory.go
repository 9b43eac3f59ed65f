package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/onnwee/venuefeed/internal/geo"
)

// MemoryIndex is an in-memory Index implementation using exhaustive cosine
// similarity search. It is suitable for tests, local development, and
// modest catalogs.
type MemoryIndex struct {
	mu    sync.RWMutex
	dim   int
	items map[string]*indexedItem
	users map[string][]float32
}

type indexedItem struct {
	item Item
	vec  []float32
}

// NewMemoryIndex creates an empty index for vectors of the given
// dimensionality.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:   dim,
		items: make(map[string]*indexedItem),
		users: make(map[string][]float32),
	}
}

// Dimension returns the embedding dimensionality.
func (m *MemoryIndex) Dimension() int {
	return m.dim
}

// UpsertItem stores or replaces an item and its embedding.
func (m *MemoryIndex) UpsertItem(item Item, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = &indexedItem{item: item, vec: vec}
}

// UpsertUserVector stores or replaces a user's taste embedding.
func (m *MemoryIndex) UpsertUserVector(userID string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = vec
}

// Nearest returns up to limit items by descending cosine similarity,
// restricted to the geo filter when provided. Similarity is normalized
// from [-1, 1] to [0, 1].
func (m *MemoryIndex) Nearest(ctx context.Context, query []float32, filter *GeoFilter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.items))
	for _, entry := range m.items {
		if filter != nil {
			d := geo.HaversineKm(filter.Center, entry.item.Location)
			if d > filter.RadiusKm {
				continue
			}
		}
		hits = append(hits, Hit{
			Item:  entry.item,
			Score: normalizedCosine(query, entry.vec),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetVector returns the stored embedding for a user or an item.
func (m *MemoryIndex) GetVector(ctx context.Context, entityID string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if vec, ok := m.users[entityID]; ok {
		return vec, nil
	}
	if entry, ok := m.items[entityID]; ok {
		return entry.vec, nil
	}
	return nil, ErrNotFound
}

// Retrieve returns payloads for known item IDs, preserving request order.
func (m *MemoryIndex) Retrieve(ctx context.Context, itemIDs []string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		if entry, ok := m.items[id]; ok {
			out = append(out, entry.item)
		}
	}
	return out, nil
}

// normalizedCosine computes cosine similarity mapped into [0, 1].
// Mismatched lengths compare over the shorter prefix; zero vectors score 0.
func normalizedCosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
