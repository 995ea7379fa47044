package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
)

// ChannelHandler serves public channel views. The viewer, when authenticated, comes from the
// request context and is passed to the services explicitly.
type ChannelHandler struct {
	Channels  ChannelService
	Relations RelationService
}

// Profile handles GET /api/v1/channels/{handle}.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.Channels.GetChannelProfile(ctx, r.PathValue("handle"), middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, profile)
}

// Videos handles GET /api/v1/accounts/{accountId}/videos.
func (h ChannelHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videos, err := h.Channels.ListChannelVideos(ctx, r.PathValue("accountId"), middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videosResponse{Videos: videos})
}

// Subscribers handles GET /api/v1/accounts/{accountId}/subscribers.
func (h ChannelHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accounts, err := h.Relations.ListSubscribers(ctx, r.PathValue("accountId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, accountsResponse{Accounts: accounts})
}

// Subscriptions handles GET /api/v1/accounts/{accountId}/subscriptions.
func (h ChannelHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accounts, err := h.Relations.ListSubscribedChannels(ctx, r.PathValue("accountId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, accountsResponse{Accounts: accounts})
}

type accountsResponse struct {
	Accounts []models.OwnerSummary `json:"accounts"`
}
