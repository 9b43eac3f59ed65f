package ranking

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTrendingWindow is the default lookback window for trending counts.
const DefaultTrendingWindow = 24 * time.Hour

// TrendingBaseline is the engagement count within the window treated as
// fully trending.
const TrendingBaseline = 50.0

// FreshnessDefault is the score substituted when a creation timestamp is
// missing or unparsable.
const FreshnessDefault = 0.5

// FreshnessScore computes a content-age decay score from an RFC 3339
// creation timestamp.
//
// Tiers: under 2 days 1.0, under 7 days 0.7, under 14 days 0.5, under
// 30 days 0.3, otherwise 0.1. Missing or unparsable timestamps score the
// neutral default 0.5.
func FreshnessScore(createdAt string, now time.Time) float64 {
	if createdAt == "" {
		return FreshnessDefault
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(createdAt))
	if err != nil {
		return FreshnessDefault
	}

	ageDays := int(now.Sub(ts).Hours() / 24)
	switch {
	case ageDays < 2:
		return 1.0
	case ageDays < 7:
		return 0.7
	case ageDays < 14:
		return 0.5
	case ageDays < 30:
		return 0.3
	default:
		return 0.1
	}
}

// TrendingScore normalizes a recent engagement count onto [0, 1].
func TrendingScore(recentCount int) float64 {
	if recentCount <= 0 {
		return 0
	}
	score := float64(recentCount) / TrendingBaseline
	if score > 1.0 {
		return 1.0
	}
	return score
}

// TrendingReason renders the human-readable trending explanation.
func TrendingReason(recentCount int, window time.Duration) string {
	if recentCount <= 0 {
		return "No recent activity"
	}
	return fmt.Sprintf("%d people engaged in last %dh", recentCount, int(window.Hours()))
}
