package engagement

import (
	"math"
	"testing"
)

// TestClassify tests the full engagement weight table.
func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		action         string
		watchTime      int
		expectedAction Action
		expectedWeight float64
	}{
		{
			name:           "explicit skip always scores negative",
			action:         RawSkip,
			watchTime:      100,
			expectedAction: ActionSkipped,
			expectedWeight: -0.5,
		},
		{
			name:           "view under three seconds is a skip",
			action:         RawView,
			watchTime:      2,
			expectedAction: ActionSkipped,
			expectedWeight: -0.5,
		},
		{
			name:           "save under three seconds is a skip",
			action:         RawSave,
			watchTime:      1,
			expectedAction: ActionSkipped,
			expectedWeight: -0.5,
		},
		{
			name:           "share",
			action:         RawShare,
			watchTime:      5,
			expectedAction: ActionShared,
			expectedWeight: 3.0,
		},
		{
			name:           "save",
			action:         RawSave,
			watchTime:      45,
			expectedAction: ActionSaved,
			expectedWeight: 1.5,
		},
		{
			name:           "full view at thirty seconds",
			action:         RawView,
			watchTime:      30,
			expectedAction: ActionViewed,
			expectedWeight: 2.0,
		},
		{
			name:           "full view above thirty seconds",
			action:         RawView,
			watchTime:      35,
			expectedAction: ActionViewed,
			expectedWeight: 2.0,
		},
		{
			name:           "engaged view at ten seconds",
			action:         RawView,
			watchTime:      10,
			expectedAction: ActionViewed,
			expectedWeight: 1.0,
		},
		{
			name:           "brief view at three seconds",
			action:         RawView,
			watchTime:      3,
			expectedAction: ActionViewed,
			expectedWeight: 0.3,
		},
		{
			name:           "unknown action falls back to view rules",
			action:         "tap",
			watchTime:      12,
			expectedAction: ActionViewed,
			expectedWeight: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, weight := Classify(tt.action, tt.watchTime)
			if action != tt.expectedAction {
				t.Errorf("expected action %q, got %q", tt.expectedAction, action)
			}
			if math.Abs(weight-tt.expectedWeight) > 0.0001 {
				t.Errorf("expected weight %f, got %f", tt.expectedWeight, weight)
			}
		})
	}
}

// TestClassifyDeterministic verifies repeated calls agree.
func TestClassifyDeterministic(t *testing.T) {
	for _, action := range []string{RawView, RawSkip, RawSave, RawShare} {
		for wt := 0; wt <= 60; wt += 5 {
			a1, w1 := Classify(action, wt)
			a2, w2 := Classify(action, wt)
			if a1 != a2 || w1 != w2 {
				t.Fatalf("Classify(%q, %d) not deterministic: (%q, %f) vs (%q, %f)",
					action, wt, a1, w1, a2, w2)
			}
		}
	}
}

// TestIsStrongSignal tests the strong-signal threshold.
func TestIsStrongSignal(t *testing.T) {
	tests := []struct {
		name      string
		action    Action
		watchTime int
		expected  bool
	}{
		{name: "saved is strong", action: ActionSaved, watchTime: 0, expected: true},
		{name: "shared is strong", action: ActionShared, watchTime: 0, expected: true},
		{name: "long view is strong", action: ActionViewed, watchTime: 10, expected: true},
		{name: "short view is weak", action: ActionViewed, watchTime: 9, expected: false},
		{name: "skip is weak", action: ActionSkipped, watchTime: 60, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStrongSignal(tt.action, tt.watchTime); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
