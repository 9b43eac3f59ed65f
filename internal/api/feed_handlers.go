package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/venuefeed/internal/feed"
	"github.com/onnwee/venuefeed/internal/middleware"
	"github.com/onnwee/venuefeed/internal/ranking"
	"github.com/onnwee/venuefeed/internal/validate"
)

// FeedHandlers serves the ranked feed endpoints.
type FeedHandlers struct {
	pipeline *feed.Pipeline
	logger   *slog.Logger
}

// NewFeedHandlers creates feed handlers backed by the given pipeline.
func NewFeedHandlers(pipeline *feed.Pipeline, logger *slog.Logger) *FeedHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandlers{pipeline: pipeline, logger: logger}
}

// FeedResponse is the ranked feed payload.
type FeedResponse struct {
	Feed []feed.Item `json:"feed"`
}

// VideoFeed handles GET /feed-video: the video-level ranked feed.
func (h *FeedHandlers) VideoFeed(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, ranking.PolicyVideo)
}

// VenueFeed handles GET /feed: the venue-level ranked feed.
func (h *FeedHandlers) VenueFeed(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, ranking.PolicyVenue)
}

func (h *FeedHandlers) serveFeed(w http.ResponseWriter, r *http.Request, policy ranking.Policy) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	req, errMsg := parseFeedRequest(r)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	req.Policy = policy

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	items, err := h.pipeline.Rank(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "feed ranking failed",
			"user_id", req.UserID,
			"policy", string(policy),
			"error", err,
		)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build feed")
		return
	}

	writeJSON(w, http.StatusOK, FeedResponse{Feed: items})
}

// parseFeedRequest extracts and validates feed query parameters. Returns a
// non-empty message describing the first validation failure.
func parseFeedRequest(r *http.Request) (feed.Request, string) {
	q := r.URL.Query()

	userID, err := validate.EntityID(q.Get("user_id"))
	if err != nil {
		return feed.Request{}, "user_id must be a valid identifier"
	}
	req := feed.Request{UserID: userID}

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return req, "lat must be a number"
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return req, "lon must be a number"
	}
	req.Lat, req.Lon = lat, lon

	if v := q.Get("radius_km"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			return req, "radius_km must be a positive number"
		}
		req.RadiusKm = radius
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return req, "limit must be a positive integer"
		}
		req.Limit = limit
	}

	return req, ""
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
