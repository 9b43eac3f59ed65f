package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/venuefeed/internal/feed"
	"github.com/onnwee/venuefeed/internal/graph"
	"github.com/onnwee/venuefeed/internal/middleware"
	"github.com/onnwee/venuefeed/internal/trending"
	"github.com/onnwee/venuefeed/internal/validate"
	"github.com/onnwee/venuefeed/internal/vector"
)

// shareWatchTime is the synthetic watch time logged for the sharer when a
// venue is shared, so the share classifies as a strong engagement.
const shareWatchTime = 30

// EngageHandlers ingests engagement events: views, skips, saves, and
// shares, at both video and venue level.
type EngageHandlers struct {
	recorder graph.Recorder
	counter  trending.Counter
	index    vector.Index
	metrics  *feed.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngageHandlers creates engagement ingestion handlers. counter, index,
// and metrics may be nil to disable trending recording, venue resolution,
// and instrumentation respectively.
func NewEngageHandlers(recorder graph.Recorder, counter trending.Counter, index vector.Index, metrics *feed.Metrics, logger *slog.Logger) *EngageHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngageHandlers{
		recorder: recorder,
		counter:  counter,
		index:    index,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// VideoEngagementRequest is the POST /engage-video body.
type VideoEngagementRequest struct {
	UserID           string `json:"user_id"`
	VideoID          string `json:"video_id"`
	WatchTimeSeconds int    `json:"watch_time_seconds"`
	Action           string `json:"action"`
}

// EngagementRequest is the POST /engage body.
type EngagementRequest struct {
	UserID           string `json:"user_id"`
	VenueID          string `json:"venue_id"`
	WatchTimeSeconds int    `json:"watch_time_seconds"`
	Action           string `json:"action"`
}

// EngagementResponse confirms a logged engagement with its classified
// action and signal weight.
type EngagementResponse struct {
	Status string  `json:"status"`
	Action string  `json:"action"`
	Weight float64 `json:"weight"`
}

// EngageVideo handles POST /engage-video: video-level engagement tracking.
func (h *EngageHandlers) EngageVideo(w http.ResponseWriter, r *http.Request) {
	var req VideoEngagementRequest
	if !decodePost(w, r, &req) {
		return
	}
	userID, ok := requireID(w, r, "user_id", req.UserID)
	if !ok {
		return
	}
	videoID, ok := requireID(w, r, "video_id", req.VideoID)
	if !ok {
		return
	}
	h.logEngagement(w, r, userID, videoID, req.Action, req.WatchTimeSeconds, true)
}

// Engage handles POST /engage: venue-level engagement tracking.
func (h *EngageHandlers) Engage(w http.ResponseWriter, r *http.Request) {
	var req EngagementRequest
	if !decodePost(w, r, &req) {
		return
	}
	userID, ok := requireID(w, r, "user_id", req.UserID)
	if !ok {
		return
	}
	venueID, ok := requireID(w, r, "venue_id", req.VenueID)
	if !ok {
		return
	}
	h.logEngagement(w, r, userID, venueID, req.Action, req.WatchTimeSeconds, false)
}

func (h *EngageHandlers) logEngagement(w http.ResponseWriter, r *http.Request, userID, itemID, action string, watchTime int, videoLevel bool) {
	ctx := middleware.SetUserID(r.Context(), userID)
	middleware.UpdateResponseContext(w, ctx)

	if watchTime < 0 {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "watch_time_seconds must be non-negative")
		return
	}

	edge, err := h.recorder.RecordEngagement(ctx, userID, itemID, action, watchTime)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record engagement",
			"user_id", userID,
			"item_id", itemID,
			"error", err,
		)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record engagement")
		return
	}

	h.recordTrending(r, itemID, videoLevel)

	if h.metrics != nil {
		h.metrics.IncClassification(string(edge.Action))
	}

	writeJSON(w, http.StatusOK, EngagementResponse{
		Status: "logged",
		Action: string(edge.Action),
		Weight: edge.Weight,
	})
}

// recordTrending feeds the trending counter. Video-level engagements also
// count toward the owning venue so the venue feed reflects video activity.
// Counter failures are logged and dropped; trending is advisory.
func (h *EngageHandlers) recordTrending(r *http.Request, itemID string, videoLevel bool) {
	if h.counter == nil {
		return
	}
	ctx := r.Context()
	now := h.now()

	if err := h.counter.Record(ctx, itemID, now); err != nil {
		h.logger.WarnContext(ctx, "trending record failed", "item_id", itemID, "error", err)
	}

	if !videoLevel || h.index == nil {
		return
	}
	items, err := h.index.Retrieve(ctx, []string{itemID})
	if err != nil || len(items) == 0 || items[0].VenueID == "" {
		return
	}
	if err := h.counter.Record(ctx, items[0].VenueID, now); err != nil {
		h.logger.WarnContext(ctx, "trending record failed", "item_id", items[0].VenueID, "error", err)
	}
}

// ShareRequest is the POST /share body.
type ShareRequest struct {
	UserID     string   `json:"user_id"`
	VenueID    string   `json:"venue_id"`
	SharedWith []string `json:"shared_with"`
}

// ShareResponse confirms a recorded share.
type ShareResponse struct {
	Status          string `json:"status"`
	SharedWithCount int    `json:"shared_with_count"`
}

// Share handles POST /share: records a share engagement for the sharer and
// share edges toward each recipient.
func (h *EngageHandlers) Share(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if !decodePost(w, r, &req) {
		return
	}
	if _, ok := requireID(w, r, "user_id", req.UserID); !ok {
		return
	}
	if _, ok := requireID(w, r, "venue_id", req.VenueID); !ok {
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	edge, err := h.recorder.RecordEngagement(ctx, req.UserID, req.VenueID, "share", shareWatchTime)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record share engagement",
			"user_id", req.UserID,
			"venue_id", req.VenueID,
			"error", err,
		)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record share")
		return
	}

	if err := h.recorder.RecordShare(ctx, req.UserID, req.VenueID, req.SharedWith); err != nil {
		h.logger.ErrorContext(ctx, "failed to record share edges",
			"user_id", req.UserID,
			"venue_id", req.VenueID,
			"error", err,
		)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record share")
		return
	}

	h.recordTrending(r, req.VenueID, false)

	if h.metrics != nil {
		h.metrics.IncClassification(string(edge.Action))
	}

	writeJSON(w, http.StatusOK, ShareResponse{
		Status:          "shared",
		SharedWithCount: len(req.SharedWith),
	})
}

// requireID validates a request identifier field. Writes a validation error
// and returns false when the identifier is missing or malformed.
func requireID(w http.ResponseWriter, r *http.Request, field, value string) (string, bool) {
	id, err := validate.EntityID(value)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, field+" must be a valid identifier")
		return "", false
	}
	return id, true
}

// decodePost enforces the POST method and decodes the JSON body into dst.
// Writes an error response and returns false on failure.
func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
