// Package engagement defines the engagement weight model and the two-tier
// engagement log that records user actions against videos and venues.
package engagement

// Action is a normalized engagement action label.
type Action string

// Normalized action labels produced by Classify.
const (
	ActionViewed  Action = "viewed"
	ActionSkipped Action = "skipped"
	ActionSaved   Action = "saved"
	ActionShared  Action = "shared"
)

// Raw action inputs accepted from clients.
const (
	RawView  = "view"
	RawSkip  = "skip"
	RawSave  = "save"
	RawShare = "share"
)

// Watch time thresholds (seconds) for view classification.
const (
	minMeaningfulWatch = 3
	engagedWatch       = 10
	fullWatch          = 30
)

// StrongWatchTime is the minimum watch time for a view to count as a strong
// social signal when aggregating friend activity.
const StrongWatchTime = 10

// Classify maps a raw action and watch duration to a normalized action and
// a signal weight. It is total and deterministic: every input maps to a
// result and there are no error cases. Callers are responsible for ensuring
// watchTimeSeconds is non-negative.
//
// Rules, in order:
//  1. skip, or any action watched under 3 seconds -> (skipped, -0.5)
//  2. share -> (shared, 3.0)
//  3. save -> (saved, 1.5)
//  4. view: >=30s -> 2.0, >=10s -> 1.0, >=3s -> 0.3
//
// Unrecognized raw actions are treated as views.
func Classify(action string, watchTimeSeconds int) (Action, float64) {
	if action == RawSkip || watchTimeSeconds < minMeaningfulWatch {
		return ActionSkipped, -0.5
	}

	switch action {
	case RawShare:
		return ActionShared, 3.0
	case RawSave:
		return ActionSaved, 1.5
	}

	switch {
	case watchTimeSeconds >= fullWatch:
		return ActionViewed, 2.0
	case watchTimeSeconds >= engagedWatch:
		return ActionViewed, 1.0
	default:
		return ActionViewed, 0.3
	}
}

// IsStrong reports whether an action is a high-trust signal. Strong actions
// are append-only in the log; weak actions merge into a single latest-state
// record per (user, item).
func IsStrong(a Action) bool {
	return a == ActionSaved || a == ActionShared
}

// IsStrongSignal reports whether an observed edge counts as a strong social
// signal: a save, a share, or a view of at least 10 seconds.
func IsStrongSignal(a Action, watchTimeSeconds int) bool {
	if IsStrong(a) {
		return true
	}
	return a == ActionViewed && watchTimeSeconds >= StrongWatchTime
}
