package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/onnwee/venuefeed/internal/geo"
	"github.com/onnwee/venuefeed/internal/ranking"
	"github.com/onnwee/venuefeed/internal/social"
	"github.com/onnwee/venuefeed/internal/trending"
)

// Request defaults applied when a field is zero.
const (
	DefaultRadiusKm = 2.0
	DefaultLimit    = 20
)

// tasteReasonCategories caps how many item categories the taste reason
// string names.
const tasteReasonCategories = 3

// Request describes one feed computation.
type Request struct {
	UserID   string
	Lat      float64
	Lon      float64
	RadiusKm float64
	Limit    int
	Policy   ranking.Policy
}

// SignalExplanation is the generic per-signal breakdown entry.
type SignalExplanation struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// SocialExplanation extends the breakdown with the raw pre-normalization
// score and the contributor list.
type SocialExplanation struct {
	Score        float64              `json:"score"`
	RawScore     int                  `json:"raw_score"`
	Contributors []social.Contributor `json:"contributors"`
	Reason       string               `json:"reason"`
}

// ProximityExplanation extends the breakdown with the raw distance.
type ProximityExplanation struct {
	Score      float64 `json:"score"`
	DistanceKm float64 `json:"distance_km"`
	Reason     string  `json:"reason"`
}

// TrendingExplanation carries either content freshness (video policy) or
// the count-based trending signal (venue policy).
type TrendingExplanation struct {
	Score       float64 `json:"score"`
	RecentCount int     `json:"recent_count,omitempty"`
	Reason      string  `json:"reason"`
}

// Explanation is the full per-item scoring breakdown.
type Explanation struct {
	TasteMatch  SignalExplanation    `json:"taste_match"`
	SocialProof SocialExplanation    `json:"social_proof"`
	Proximity   ProximityExplanation `json:"proximity"`
	Trending    TrendingExplanation  `json:"trending"`
}

// Item is one ranked feed entry.
type Item struct {
	VideoID      string      `json:"video_id,omitempty"`
	VenueID      string      `json:"venue_id"`
	Name         string      `json:"name"`
	Title        string      `json:"title,omitempty"`
	Description  string      `json:"description"`
	VideoType    string      `json:"video_type,omitempty"`
	Categories   []string    `json:"categories"`
	Neighborhood string      `json:"neighborhood"`
	PriceTier    int         `json:"price_tier"`
	Location     geo.Point   `json:"location"`
	FinalScore   float64     `json:"final_score"`
	Explanation  Explanation `json:"explanation"`
}

// Pipeline is the stateless per-request ranking computation. Sub-signal
// failures degrade to neutral defaults; only candidate sourcing is fatal.
type Pipeline struct {
	source   *Source
	social   *social.Aggregator
	trending trending.Counter
	weights  *ranking.PolicyWeights
	window   time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	defaultRadiusKm float64
	defaultLimit    int
}

// NewPipeline wires the ranking pipeline. weights may be nil for the
// defaults, window zero for the default trending lookback, and metrics
// nil to disable instrumentation.
func NewPipeline(source *Source, aggregator *social.Aggregator, counter trending.Counter, weights *ranking.PolicyWeights, window time.Duration, logger *slog.Logger, metrics *Metrics) *Pipeline {
	if weights == nil {
		weights = ranking.DefaultPolicyWeights()
	}
	if window <= 0 {
		window = ranking.DefaultTrendingWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   source,
		social:   aggregator,
		trending: counter,
		weights:  weights,
		window:   window,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,

		defaultRadiusKm: DefaultRadiusKm,
		defaultLimit:    DefaultLimit,
	}
}

// Defaults overrides the radius and limit substituted for requests that
// leave them unset. Non-positive values keep the current defaults.
func (p *Pipeline) Defaults(radiusKm float64, limit int) {
	if radiusKm > 0 {
		p.defaultRadiusKm = radiusKm
	}
	if limit > 0 {
		p.defaultLimit = limit
	}
}

// Rank computes the deduplicated, explained feed for one request.
func (p *Pipeline) Rank(ctx context.Context, req Request) ([]Item, error) {
	if req.RadiusKm <= 0 {
		req.RadiusKm = p.defaultRadiusKm
	}
	if req.Limit <= 0 {
		req.Limit = p.defaultLimit
	}

	start := p.now()
	items, err := p.rank(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.ObserveRequest(string(req.Policy), p.now().Sub(start).Seconds(), len(items) == 0)
	}
	return items, nil
}

func (p *Pipeline) rank(ctx context.Context, req Request) ([]Item, error) {
	center := geo.Point{Lat: req.Lat, Lon: req.Lon}

	var (
		pool []Candidate
		err  error
	)
	if req.Policy == ranking.PolicyVenue {
		pool, err = p.source.VenueCandidates(ctx, req.UserID, center, req.RadiusKm, req.Limit)
	} else {
		pool, err = p.source.VideoCandidates(ctx, req.UserID, center, req.RadiusKm, req.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("candidate sourcing: %w", err)
	}
	if p.metrics != nil {
		p.metrics.ObservePoolSize(len(pool))
	}
	if len(pool) == 0 {
		p.logger.Info("empty candidate pool", "user_id", req.UserID, "policy", req.Policy)
		return []Item{}, nil
	}

	proofs := p.proofs(ctx, req, pool)
	weights := p.weights.For(req.Policy)

	scored := make([]Item, 0, len(pool))
	for _, cand := range pool {
		scored = append(scored, p.scoreCandidate(ctx, req, cand, proofs, weights))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	return Dedupe(scored, req.Limit), nil
}

// proofs computes social proof for the whole pool: per-video for the
// video policy, one shared proof per venue for the venue policy.
func (p *Pipeline) proofs(ctx context.Context, req Request, pool []Candidate) map[string]social.Proof {
	if req.Policy == ranking.PolicyVenue {
		out := make(map[string]social.Proof)
		for _, cand := range pool {
			if _, ok := out[cand.Item.VenueID]; ok {
				continue
			}
			out[cand.Item.VenueID] = p.social.ScoreVenue(ctx, req.UserID, cand.Item.VenueID)
		}
		return out
	}

	refs := make([]social.ItemRef, 0, len(pool))
	for _, cand := range pool {
		refs = append(refs, social.ItemRef{ItemID: cand.Item.ID, VenueID: cand.Item.VenueID})
	}
	return p.social.ScoreVideos(ctx, req.UserID, refs)
}

func (p *Pipeline) scoreCandidate(ctx context.Context, req Request, cand Candidate, proofs map[string]social.Proof, weights ranking.Weights) Item {
	proofKey := cand.Item.ID
	if req.Policy == ranking.PolicyVenue {
		proofKey = cand.Item.VenueID
	}
	proof := proofs[proofKey]
	socialNorm := ranking.NormalizeSocial(float64(proof.Score))
	proximity := geo.ProximityScore(cand.DistanceKm, req.RadiusKm)

	var recency float64
	var trendingExp TrendingExplanation
	if req.Policy == ranking.PolicyVenue {
		recency, trendingExp = p.venueTrending(ctx, cand.Item.VenueID)
	} else {
		recency = ranking.FreshnessScore(cand.Item.CreatedAt, p.now())
		trendingExp = TrendingExplanation{
			Score:  ranking.Round2(recency),
			Reason: freshnessReason(cand.Item.CreatedAt),
		}
	}

	final := ranking.FinalScore(ranking.Signals{
		Taste:     cand.Taste,
		Social:    socialNorm,
		Proximity: proximity,
		Recency:   recency,
	}, weights)

	item := Item{
		VenueID:      cand.Item.VenueID,
		Name:         cand.Item.VenueName,
		Description:  cand.Item.Description,
		Categories:   cand.Item.Categories,
		Neighborhood: cand.Item.Neighborhood,
		PriceTier:    cand.Item.PriceTier,
		Location:     cand.Item.Location,
		FinalScore:   ranking.Round3(final),
		Explanation: Explanation{
			TasteMatch: SignalExplanation{
				Score:  ranking.Round2(cand.Taste),
				Reason: tasteReason(cand.Item.Categories),
			},
			SocialProof: SocialExplanation{
				Score:        ranking.Round2(socialNorm),
				RawScore:     proof.Score,
				Contributors: proof.Contributors,
				Reason:       socialReason(proof.ActivityText),
			},
			Proximity: ProximityExplanation{
				Score:      ranking.Round2(proximity),
				DistanceKm: ranking.Round2(cand.DistanceKm),
				Reason:     proximityReason(cand.DistanceKm),
			},
			Trending: trendingExp,
		},
	}
	if req.Policy != ranking.PolicyVenue {
		item.VideoID = cand.Item.ID
		item.Title = cand.Item.Title
		item.VideoType = cand.Item.VideoType
	}
	return item
}

// venueTrending reads the sliding-window engagement count for a venue. A
// counter failure degrades the signal to zero.
func (p *Pipeline) venueTrending(ctx context.Context, venueID string) (float64, TrendingExplanation) {
	count, err := p.trending.Count(ctx, venueID, p.window)
	if err != nil {
		p.logger.Warn("trending count failed, degrading to zero",
			"venue_id", venueID, "error", err)
		count = 0
	}
	score := ranking.TrendingScore(count)
	return score, TrendingExplanation{
		Score:       ranking.Round2(score),
		RecentCount: count,
		Reason:      ranking.TrendingReason(count, p.window),
	}
}

func tasteReason(categories []string) string {
	if len(categories) == 0 {
		return "Matches your interests"
	}
	if len(categories) > tasteReasonCategories {
		categories = categories[:tasteReasonCategories]
	}
	return "Matches your interests: " + strings.Join(categories, ", ")
}

func socialReason(activity string) string {
	if activity == "" {
		return "No friend activity yet"
	}
	return activity
}

func proximityReason(distanceKm float64) string {
	return fmt.Sprintf("%.1fkm away (~%d min walk)", distanceKm, geo.WalkMinutes(distanceKm))
}

func freshnessReason(createdAt string) string {
	if len(createdAt) >= len("2006-01-02") {
		return "Posted " + createdAt[:len("2006-01-02")]
	}
	return "Posted recently"
}
