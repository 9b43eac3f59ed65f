// Package ranking provides the signal fusion model for the venue video
// feed: policy weight configurations with calibration support, social score
// normalization, and the freshness and trending scorers.
//
// Two fusion policies coexist as named configurations of one engine:
//
//   - PolicyVideo (current): taste 0.30, social 0.40, proximity 0.20,
//     freshness 0.10. Freshness comes from content-age decay tiers.
//   - PolicyVenue (legacy): taste 0.30, social 0.35, proximity 0.20,
//     trending 0.10, plus a constant 0.05 diversity placeholder. The
//     recency signal is the count-based trending score rather than
//     content age.
//
// The caller selects the policy explicitly; it is never inferred from the
// candidate set.
package ranking
