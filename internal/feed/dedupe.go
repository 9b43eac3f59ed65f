package feed

import "sort"

// Dedupe collapses the scored list to one entry per venue and truncates
// to limit. The representative for a venue is its entry with the highest
// raw social score; on a tie, the higher final score wins. Social proof,
// not just taste, decides which of a venue's videos is surfaced.
func Dedupe(items []Item, limit int) []Item {
	best := make(map[string]int, len(items))
	var order []string
	for i, item := range items {
		cur, ok := best[item.VenueID]
		if !ok {
			best[item.VenueID] = i
			order = append(order, item.VenueID)
			continue
		}
		if better(item, items[cur]) {
			best[item.VenueID] = i
		}
	}

	deduped := make([]Item, 0, len(order))
	for _, venueID := range order {
		deduped = append(deduped, items[best[venueID]])
	}
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].FinalScore > deduped[j].FinalScore
	})
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

// better reports whether a should replace b as its venue's representative.
func better(a, b Item) bool {
	if a.Explanation.SocialProof.RawScore != b.Explanation.SocialProof.RawScore {
		return a.Explanation.SocialProof.RawScore > b.Explanation.SocialProof.RawScore
	}
	return a.FinalScore > b.FinalScore
}
