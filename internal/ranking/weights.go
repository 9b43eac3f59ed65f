package ranking

import "math"

// Policy names a fusion weight configuration.
type Policy string

// The two supported fusion policies.
const (
	// PolicyVideo is the current video-level feed configuration.
	PolicyVideo Policy = "video"
	// PolicyVenue is the legacy venue-level feed configuration.
	PolicyVenue Policy = "venue"
)

// SocialBaseline is the raw social score treated as a full-strength signal.
// Raw scores are divided by this value and capped at 1.0.
const SocialBaseline = 50.0

// Weights defines the fusion weights for one policy.
type Weights struct {
	Taste     float64 `json:"taste"`     // Weight for taste similarity
	Social    float64 `json:"social"`    // Weight for normalized social proof
	Proximity float64 `json:"proximity"` // Weight for geographic proximity
	Recency   float64 `json:"recency"`   // Weight for freshness or trending
	Diversity float64 `json:"diversity"` // Constant bonus added to every score
}

// PolicyWeights holds the weight configurations for both policies.
type PolicyWeights struct {
	Video Weights `json:"video"`
	Venue Weights `json:"venue"`
}

// DefaultPolicyWeights returns the default fusion configurations.
//
// Video formula: final = taste*0.30 + social*0.40 + proximity*0.20 + freshness*0.10
// Venue formula: final = taste*0.30 + social*0.35 + proximity*0.20 + trending*0.10 + 0.05
func DefaultPolicyWeights() *PolicyWeights {
	return &PolicyWeights{
		Video: Weights{
			Taste:     0.30,
			Social:    0.40,
			Proximity: 0.20,
			Recency:   0.10,
		},
		Venue: Weights{
			Taste:     0.30,
			Social:    0.35,
			Proximity: 0.20,
			Recency:   0.10,
			Diversity: 0.05,
		},
	}
}

// For returns the weights for a policy. Unknown policies fall back to the
// video configuration.
func (p *PolicyWeights) For(policy Policy) Weights {
	if policy == PolicyVenue {
		return p.Venue
	}
	return p.Video
}

// Signals holds the four normalized component scores for one candidate,
// each in [0, 1].
type Signals struct {
	Taste     float64
	Social    float64
	Proximity float64
	Recency   float64
}

// FinalScore fuses component signals using the policy weights.
func FinalScore(s Signals, w Weights) float64 {
	return s.Taste*w.Taste +
		s.Social*w.Social +
		s.Proximity*w.Proximity +
		s.Recency*w.Recency +
		w.Diversity
}

// NormalizeSocial maps a raw social score onto [0, 1] against the baseline.
func NormalizeSocial(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return math.Min(raw/SocialBaseline, 1.0)
}

// Round2 rounds to two decimal places, the precision used for explanation
// component scores.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round3 rounds to three decimal places, the precision used for final
// scores.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
