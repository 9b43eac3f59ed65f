package feed

import "testing"

func scoredItem(videoID, venueID string, rawSocial int, final float64) Item {
	item := Item{
		VideoID:    videoID,
		VenueID:    venueID,
		FinalScore: final,
	}
	item.Explanation.SocialProof.RawScore = rawSocial
	return item
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		limit int
		want  []string // expected video IDs in order
	}{
		{
			name: "social proof picks the venue representative",
			items: []Item{
				scoredItem("v1", "venue_a", 5, 0.9),
				scoredItem("v2", "venue_a", 20, 0.6),
			},
			limit: 10,
			want:  []string{"v2"},
		},
		{
			name: "social tie broken by final score",
			items: []Item{
				scoredItem("v1", "venue_a", 10, 0.5),
				scoredItem("v2", "venue_a", 10, 0.7),
			},
			limit: 10,
			want:  []string{"v2"},
		},
		{
			name: "representatives re-sorted by final score",
			items: []Item{
				scoredItem("v1", "venue_a", 30, 0.4),
				scoredItem("v2", "venue_b", 0, 0.8),
			},
			limit: 10,
			want:  []string{"v2", "v1"},
		},
		{
			name: "limit truncates after dedup",
			items: []Item{
				scoredItem("v1", "venue_a", 0, 0.9),
				scoredItem("v2", "venue_b", 0, 0.8),
				scoredItem("v3", "venue_c", 0, 0.7),
			},
			limit: 2,
			want:  []string{"v1", "v2"},
		},
		{
			name:  "empty input",
			items: nil,
			limit: 5,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(tt.items, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d items, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].VideoID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].VideoID)
				}
			}
		})
	}
}

func TestDedupe_NoVenueTwice(t *testing.T) {
	items := []Item{
		scoredItem("v1", "venue_a", 3, 0.9),
		scoredItem("v2", "venue_b", 0, 0.8),
		scoredItem("v3", "venue_a", 8, 0.7),
		scoredItem("v4", "venue_b", 8, 0.6),
		scoredItem("v5", "venue_c", 0, 0.5),
	}
	got := Dedupe(items, 10)

	seen := make(map[string]bool)
	for _, item := range got {
		if seen[item.VenueID] {
			t.Errorf("venue %s appears twice", item.VenueID)
		}
		seen[item.VenueID] = true
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 venues, got %d", len(got))
	}
}
