package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/venuefeed/internal/graph"
	"github.com/onnwee/venuefeed/internal/middleware"
	"github.com/onnwee/venuefeed/internal/validate"
	"github.com/onnwee/venuefeed/internal/vector"
)

// watchHistoryLimit caps the profile watch history length.
const watchHistoryLimit = 50

// UserHandlers serves user profiles, friend discovery, and friendship
// creation.
type UserHandlers struct {
	store    graph.Store
	recorder graph.Recorder
	index    vector.Index
	logger   *slog.Logger
}

// NewUserHandlers creates user handlers. index may be nil to skip watch
// history enrichment.
func NewUserHandlers(store graph.Store, recorder graph.Recorder, index vector.Index, logger *slog.Logger) *UserHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandlers{store: store, recorder: recorder, index: index, logger: logger}
}

// AddFriendRequest is the POST /friends/add body.
type AddFriendRequest struct {
	UserID   string `json:"user_id"`
	FriendID string `json:"friend_id"`
}

// AddFriend handles POST /friends/add: creates a symmetric friendship.
func (h *UserHandlers) AddFriend(w http.ResponseWriter, r *http.Request) {
	var req AddFriendRequest
	if !decodePost(w, r, &req) {
		return
	}
	if _, ok := requireID(w, r, "user_id", req.UserID); !ok {
		return
	}
	if _, ok := requireID(w, r, "friend_id", req.FriendID); !ok {
		return
	}
	if req.UserID == req.FriendID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "cannot befriend yourself")
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	if err := h.recorder.AddFriendship(ctx, req.UserID, req.FriendID); err != nil {
		h.logger.ErrorContext(ctx, "failed to create friendship",
			"user_id", req.UserID,
			"friend_id", req.FriendID,
			"error", err,
		)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create friendship")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "friendship_created"})
}

// UserListEntry is one row of the friend discovery list.
type UserListEntry struct {
	graph.User
	IsFriend *bool `json:"is_friend,omitempty"`
	IsSelf   *bool `json:"is_self,omitempty"`
}

// UsersResponse is the GET /users payload.
type UsersResponse struct {
	Users []UserListEntry `json:"users"`
}

// ListUsers handles GET /users: all users for friend discovery. When
// current_user_id is given, each row is flagged with is_friend and
// is_self relative to that user.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}
	ctx := r.Context()

	users, err := h.store.Users(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list users")
		return
	}

	entries := make([]UserListEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, UserListEntry{User: u})
	}

	if currentID := r.URL.Query().Get("current_user_id"); currentID != "" {
		friends, err := h.store.FriendsOf(ctx, currentID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to resolve friends", "user_id", currentID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list users")
			return
		}
		friendIDs := make(map[string]bool, len(friends))
		for _, f := range friends {
			friendIDs[f.ID] = true
		}
		for i := range entries {
			isFriend := friendIDs[entries[i].ID]
			isSelf := entries[i].ID == currentID
			entries[i].IsFriend = &isFriend
			entries[i].IsSelf = &isSelf
		}
	}

	writeJSON(w, http.StatusOK, UsersResponse{Users: entries})
}

// WatchHistoryItem is one watch history row, enriched with video metadata
// when the video is still indexed.
type WatchHistoryItem struct {
	graph.HistoryEntry
	Video *vector.Item `json:"video,omitempty"`
}

// UserProfileResponse is the GET /user/{id} payload.
type UserProfileResponse struct {
	User         graph.User         `json:"user"`
	Friends      []graph.User       `json:"friends"`
	WatchHistory []WatchHistoryItem `json:"watch_history"`
}

// Profile handles GET /user/{id}: profile, friends, and recent watch
// history.
func (h *UserHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID, err := validate.EntityID(strings.TrimPrefix(r.URL.Path, "/user/"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid user path")
		return
	}

	ctx := middleware.SetUserID(r.Context(), userID)
	middleware.UpdateResponseContext(w, ctx)

	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, graph.ErrUserNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeUserNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeUserNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to load user", "user_id", userID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load user")
		return
	}

	friends, err := h.store.FriendsOf(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load friends", "user_id", userID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load user")
		return
	}
	if friends == nil {
		friends = []graph.User{}
	}

	history, err := h.store.WatchHistory(ctx, userID, watchHistoryLimit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load watch history", "user_id", userID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, UserProfileResponse{
		User:         user,
		Friends:      friends,
		WatchHistory: h.enrichHistory(r, history),
	})
}

// enrichHistory attaches indexed video metadata to history rows. Index
// failures degrade to unenriched rows.
func (h *UserHandlers) enrichHistory(r *http.Request, history []graph.HistoryEntry) []WatchHistoryItem {
	items := make([]WatchHistoryItem, 0, len(history))
	for _, entry := range history {
		items = append(items, WatchHistoryItem{HistoryEntry: entry})
	}
	if h.index == nil || len(items) == 0 {
		return items
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	videos, err := h.index.Retrieve(r.Context(), ids)
	if err != nil {
		h.logger.WarnContext(r.Context(), "watch history enrichment failed", "error", err)
		return items
	}
	byID := make(map[string]vector.Item, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	for i := range items {
		if v, ok := byID[items[i].ItemID]; ok {
			video := v
			items[i].Video = &video
		}
	}
	return items
}
