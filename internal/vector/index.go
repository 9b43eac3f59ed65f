// Package vector defines the taste-similarity index consumed by the feed
// pipeline, plus an in-memory implementation backed by cosine similarity.
// Any remote nearest-neighbor store can be substituted by implementing
// Index.
package vector

import (
	"context"
	"errors"

	"github.com/onnwee/venuefeed/internal/geo"
)

// ErrNotFound is returned by GetVector when no vector is stored for an
// entity.
var ErrNotFound = errors.New("vector not found")

// Item is the metadata payload stored alongside a video embedding.
type Item struct {
	ID           string    `json:"id"`
	VenueID      string    `json:"venue_id"`
	VenueName    string    `json:"venue_name"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoType    string    `json:"video_type"`
	Categories   []string  `json:"categories"`
	Neighborhood string    `json:"neighborhood"`
	PriceTier    int       `json:"price_tier"`
	Location     geo.Point `json:"location"`

	// CreatedAt is the RFC 3339 creation timestamp. It may be empty or
	// unparsable; freshness scoring substitutes a neutral default.
	CreatedAt string `json:"created_at"`
}

// GeoFilter restricts a nearest query to items within RadiusKm of Center.
type GeoFilter struct {
	Center   geo.Point
	RadiusKm float64
}

// Hit is a nearest-neighbor search result. Score is a normalized similarity
// in [0, 1].
type Hit struct {
	Item  Item
	Score float64
}

// Index is the taste-similarity collaborator.
type Index interface {
	// Nearest returns up to limit items closest to the query vector,
	// restricted by the optional geo filter, best match first.
	Nearest(ctx context.Context, query []float32, filter *GeoFilter, limit int) ([]Hit, error)

	// GetVector returns the stored embedding for an entity (user or
	// video). Returns ErrNotFound when absent.
	GetVector(ctx context.Context, entityID string) ([]float32, error)

	// Retrieve returns metadata payloads for the given item IDs. Unknown
	// IDs are silently dropped.
	Retrieve(ctx context.Context, itemIDs []string) ([]Item, error)

	// Dimension returns the embedding dimensionality of the index.
	Dimension() int
}
