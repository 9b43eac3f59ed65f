// Package social computes social proof for feed candidates: a raw score
// summed from friend and mutual-friend engagement boosts, a ranked
// contributor list, and a human-readable activity line.
package social

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/venuefeed/internal/engagement"
	"github.com/onnwee/venuefeed/internal/graph"
)

// Boost values per signal group.
const (
	BoostShared = 15
	BoostSaved  = 8
	BoostViewed = 5

	// Venue spillover adds 2 per engaged friend, capped.
	SpilloverPerFriend = 2
	SpilloverCap       = 10

	// Mutual friends add 2 each, uncapped.
	MutualPerFriend = 2
)

// Contributor truncation limits. Contributors are kept in the order they
// were computed (direct engagement first, then venue spillover, then
// mutuals); the list is cut, never re-sorted, so the narrative reads
// friends-first.
const (
	MaxContributors = 6
	MaxPhrases      = 4
)

// Contributor is one entry in a candidate's social proof breakdown.
type Contributor struct {
	FriendName       string `json:"friend,omitempty"`
	Action           string `json:"action,omitempty"`
	VenueFriendCount int    `json:"venue_friend_count,omitempty"`
	MutualCount      int    `json:"mutuals,omitempty"`
	Boost            int    `json:"boost"`
}

// Proof is the social proof computed for one candidate item.
type Proof struct {
	Score        int           `json:"social_score"`
	Contributors []Contributor `json:"contributors"`
	ActivityText string        `json:"friend_activity"`
}

// ItemRef identifies a candidate video and its owning venue.
type ItemRef struct {
	ItemID  string
	VenueID string
}

// Aggregator computes social proof against the relationship graph. Each
// signal group degrades independently: a failed graph query zeroes that
// group and the remaining groups still contribute.
type Aggregator struct {
	store  graph.Store
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store graph.Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, logger: logger}
}

// ScoreVideos computes social proof for a batch of video candidates, keyed
// by item ID.
func (a *Aggregator) ScoreVideos(ctx context.Context, userID string, items []ItemRef) map[string]Proof {
	out := make(map[string]Proof, len(items))
	for _, item := range items {
		out[item.ItemID] = a.ScoreVideo(ctx, userID, item.ItemID, item.VenueID)
	}
	return out
}

// ScoreVideo computes social proof for a single video: direct friend
// engagement with the video, venue-level spillover from sibling videos,
// and mutual-friend interest.
func (a *Aggregator) ScoreVideo(ctx context.Context, userID, itemID, venueID string) Proof {
	var score int
	var contributors []Contributor

	direct, err := a.store.StrongItemEngagements(ctx, userID, itemID)
	if err != nil {
		a.logger.Warn("direct engagement lookup failed, degrading to zero",
			"user_id", userID, "item_id", itemID, "error", err)
	}
	for _, fe := range direct {
		boost := directBoost(fe)
		if boost == 0 {
			continue
		}
		score += boost
		contributors = append(contributors, Contributor{
			FriendName: fe.FriendName,
			Action:     string(fe.Action),
			Boost:      boost,
		})
	}

	if venueID != "" {
		venueFriends, err := a.store.StrongVenueEngagements(ctx, userID, venueID, itemID)
		if err != nil {
			a.logger.Warn("venue spillover lookup failed, degrading to zero",
				"user_id", userID, "venue_id", venueID, "error", err)
		}
		if n := len(venueFriends); n > 0 {
			boost := n * SpilloverPerFriend
			if boost > SpilloverCap {
				boost = SpilloverCap
			}
			score += boost
			contributors = append(contributors, Contributor{
				VenueFriendCount: n,
				Boost:            boost,
			})
		}
	}

	score, contributors = a.addMutuals(ctx, userID, itemID, score, contributors)

	return buildProof(score, contributors, "this video")
}

// ScoreVenue computes social proof for a venue candidate in the legacy
// venue-level feed: direct venue engagement, share-based trust transfer,
// and mutual-friend interest.
func (a *Aggregator) ScoreVenue(ctx context.Context, userID, venueID string) Proof {
	var score int
	var contributors []Contributor

	direct, err := a.store.StrongItemEngagements(ctx, userID, venueID)
	if err != nil {
		a.logger.Warn("venue engagement lookup failed, degrading to zero",
			"user_id", userID, "venue_id", venueID, "error", err)
	}
	for _, fe := range direct {
		boost := directBoost(fe)
		if boost == 0 {
			continue
		}
		score += boost
		contributors = append(contributors, Contributor{
			FriendName: fe.FriendName,
			Action:     string(fe.Action),
			Boost:      boost,
		})
	}

	sharers, err := a.store.VenueSharers(ctx, userID, venueID)
	if err != nil {
		a.logger.Warn("venue sharer lookup failed, degrading to zero",
			"user_id", userID, "venue_id", venueID, "error", err)
	}
	for _, u := range sharers {
		score += BoostShared
		contributors = append(contributors, Contributor{
			FriendName: u.Name,
			Action:     string(engagement.ActionShared),
			Boost:      BoostShared,
		})
	}

	score, contributors = a.addMutuals(ctx, userID, venueID, score, contributors)

	return buildProof(score, contributors, "this place")
}

func (a *Aggregator) addMutuals(ctx context.Context, userID, itemID string, score int, contributors []Contributor) (int, []Contributor) {
	mutuals, err := a.store.MutualFriendsEngaged(ctx, userID, itemID)
	if err != nil {
		a.logger.Warn("mutual friend lookup failed, degrading to zero",
			"user_id", userID, "item_id", itemID, "error", err)
		return score, contributors
	}
	if n := len(mutuals); n > 0 {
		boost := n * MutualPerFriend
		score += boost
		contributors = append(contributors, Contributor{
			MutualCount: n,
			Action:      "interested",
			Boost:       boost,
		})
	}
	return score, contributors
}

func directBoost(fe graph.FriendEngagement) int {
	switch fe.Action {
	case engagement.ActionShared:
		return BoostShared
	case engagement.ActionSaved:
		return BoostSaved
	case engagement.ActionViewed:
		if fe.WatchTime >= engagement.StrongWatchTime {
			return BoostViewed
		}
	}
	return 0
}

func buildProof(score int, contributors []Contributor, noun string) Proof {
	if len(contributors) > MaxContributors {
		contributors = contributors[:MaxContributors]
	}
	return Proof{
		Score:        score,
		Contributors: contributors,
		ActivityText: formatActivity(contributors, noun),
	}
}

// formatActivity renders up to MaxPhrases human-readable phrases from the
// truncated contributor list.
func formatActivity(contributors []Contributor, noun string) string {
	if len(contributors) == 0 {
		return ""
	}

	var phrases []string
	for _, c := range contributors {
		if len(phrases) == MaxPhrases {
			break
		}
		switch {
		case c.FriendName != "":
			verb := "watched"
			switch c.Action {
			case string(engagement.ActionShared):
				verb = "shared"
			case string(engagement.ActionSaved):
				verb = "saved"
			}
			phrases = append(phrases, fmt.Sprintf("%s %s %s", c.FriendName, verb, noun))
		case c.VenueFriendCount > 0:
			if c.VenueFriendCount == 1 {
				phrases = append(phrases, "1 friend loves this place")
			} else {
				phrases = append(phrases, fmt.Sprintf("%d friends love this place", c.VenueFriendCount))
			}
		case c.MutualCount > 0:
			phrases = append(phrases, fmt.Sprintf("%d mutual friends interested", c.MutualCount))
		}
	}
	return strings.Join(phrases, ", ")
}
