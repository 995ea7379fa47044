package handlers

import (
	"context"
	"net/http"

	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/relations"
)

// RelationHandler exposes like and subscription toggles for the authenticated caller.
type RelationHandler struct {
	Relations RelationService
}

type toggleFunc func(ctx context.Context, actorID, targetID string) (relations.ToggleResult, error)

func (h RelationHandler) toggle(w http.ResponseWriter, r *http.Request, param string, fn toggleFunc) {
	ctx := r.Context()
	result, err := fn(ctx, middleware.AccountIDFromContext(ctx), r.PathValue(param))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

// ToggleVideoLike handles POST /api/v1/likes/videos/{videoId}.
func (h RelationHandler) ToggleVideoLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "videoId", h.Relations.ToggleVideoLike)
}

// ToggleCommentLike handles POST /api/v1/likes/comments/{commentId}.
func (h RelationHandler) ToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "commentId", h.Relations.ToggleCommentLike)
}

// ToggleTweetLike handles POST /api/v1/likes/tweets/{tweetId}.
func (h RelationHandler) ToggleTweetLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "tweetId", h.Relations.ToggleTweetLike)
}

// ToggleSubscription handles POST /api/v1/subscriptions/{channelId}.
func (h RelationHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "channelId", h.Relations.ToggleSubscription)
}
