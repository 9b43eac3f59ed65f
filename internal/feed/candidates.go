// Package feed implements the per-request ranking pipeline: candidate
// sourcing, signal fusion with explanations, and venue deduplication.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/onnwee/venuefeed/internal/geo"
	"github.com/onnwee/venuefeed/internal/graph"
	"github.com/onnwee/venuefeed/internal/vector"
)

// Candidate sourcing limits.
const (
	// nearestOverfetch over-fetches taste candidates to absorb seen-set
	// and geofence losses before the limit is applied.
	nearestOverfetch = 4
	// venueOverfetch is the lighter over-fetch used by the venue policy.
	venueOverfetch = 2
	// friendInjectionMax caps how many friend-engaged items are injected
	// regardless of taste similarity.
	friendInjectionMax = 50
	// friendRadiusFactor widens the geofence for friend-injected items.
	friendRadiusFactor = 1.5
	// friendDefaultTaste is assigned to injected items, which bypass
	// similarity scoring.
	friendDefaultTaste = 0.5
)

// Candidate is one item in the pre-fusion pool.
type Candidate struct {
	Item           vector.Item
	Taste          float64
	DistanceKm     float64
	FriendInjected bool
}

// Source assembles the candidate pool from the vector index and the
// relationship graph. Only the nearest-neighbor query is fatal; every
// other input degrades and the pool is built from what remains.
type Source struct {
	index  vector.Index
	store  graph.Store
	logger *slog.Logger

	// randVector generates the fallback taste vector when the user has
	// no stored embedding. Overridable for deterministic tests.
	randVector func(dim int) []float32
}

// NewSource creates a candidate source.
func NewSource(index vector.Index, store graph.Store, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		index:      index,
		store:      store,
		logger:     logger,
		randVector: randomVector,
	}
}

// VideoCandidates builds the pool for the video feed: taste-similar items
// inside the geofence minus the seen set, plus friend-engaged items inside
// a widened geofence at a fixed taste score.
func (s *Source) VideoCandidates(ctx context.Context, userID string, center geo.Point, radiusKm float64, limit int) ([]Candidate, error) {
	taste := s.tasteVector(ctx, userID)
	seen := s.seenSet(ctx, userID)

	hits, err := s.index.Nearest(ctx, taste, &vector.GeoFilter{Center: center, RadiusKm: radiusKm}, limit*nearestOverfetch)
	if err != nil {
		return nil, fmt.Errorf("nearest candidates for %s: %w", userID, err)
	}

	pool := make([]Candidate, 0, len(hits))
	selected := make(map[string]bool, len(hits))
	for _, hit := range hits {
		if seen[hit.Item.ID] {
			continue
		}
		pool = append(pool, Candidate{
			Item:       hit.Item,
			Taste:      hit.Score,
			DistanceKm: geo.HaversineKm(center, hit.Item.Location),
		})
		selected[hit.Item.ID] = true
	}

	pool = append(pool, s.friendInjected(ctx, userID, center, radiusKm, seen, selected)...)
	return pool, nil
}

// VenueCandidates builds the pool for the legacy venue feed: a plain
// taste query with no seen-set exclusion and no friend injection.
func (s *Source) VenueCandidates(ctx context.Context, userID string, center geo.Point, radiusKm float64, limit int) ([]Candidate, error) {
	taste := s.tasteVector(ctx, userID)

	hits, err := s.index.Nearest(ctx, taste, &vector.GeoFilter{Center: center, RadiusKm: radiusKm}, limit*venueOverfetch)
	if err != nil {
		return nil, fmt.Errorf("nearest candidates for %s: %w", userID, err)
	}

	pool := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		pool = append(pool, Candidate{
			Item:       hit.Item,
			Taste:      hit.Score,
			DistanceKm: geo.HaversineKm(center, hit.Item.Location),
		})
	}
	return pool, nil
}

// tasteVector returns the user's stored embedding, substituting a random
// vector of the same dimensionality when none exists.
func (s *Source) tasteVector(ctx context.Context, userID string) []float32 {
	vec, err := s.index.GetVector(ctx, userID)
	if err != nil {
		s.logger.Warn("taste vector unavailable, falling back to random",
			"user_id", userID, "error", err)
		return s.randVector(s.index.Dimension())
	}
	return vec
}

// seenSet returns the IDs the user already engaged with. A failed lookup
// degrades to an empty set rather than aborting the request.
func (s *Source) seenSet(ctx context.Context, userID string) map[string]bool {
	ids, err := s.store.SeenItems(ctx, userID)
	if err != nil {
		s.logger.Warn("seen-set lookup failed, skipping exclusion",
			"user_id", userID, "error", err)
		return nil
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen
}

// friendInjected fetches items the user's friends strongly engaged with
// and admits those inside the widened geofence. Any failure skips the
// injection entirely; the taste pool stands on its own.
func (s *Source) friendInjected(ctx context.Context, userID string, center geo.Point, radiusKm float64, seen, selected map[string]bool) []Candidate {
	ids, err := s.store.FriendEngagedItems(ctx, userID, friendInjectionMax)
	if err != nil {
		s.logger.Warn("friend injection lookup failed, skipping",
			"user_id", userID, "error", err)
		return nil
	}

	var fresh []string
	for _, id := range ids {
		if !seen[id] && !selected[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	items, err := s.index.Retrieve(ctx, fresh)
	if err != nil {
		s.logger.Warn("friend injection retrieve failed, skipping",
			"user_id", userID, "error", err)
		return nil
	}

	var injected []Candidate
	for _, item := range items {
		d := geo.HaversineKm(center, item.Location)
		if d > radiusKm*friendRadiusFactor {
			continue
		}
		injected = append(injected, Candidate{
			Item:           item,
			Taste:          friendDefaultTaste,
			DistanceKm:     d,
			FriendInjected: true,
		})
	}
	return injected
}

// randomVector returns a fresh vector with components in [0, 1).
func randomVector(dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = rand.Float32()
	}
	return vec
}
