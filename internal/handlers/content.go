package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
)

// ContentHandler serves comments, tweets and playlists.
type ContentHandler struct {
	Content ContentService
}

type textRequest struct {
	Content string `json:"content"`
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type commentResponse struct {
	Comment models.Comment `json:"comment"`
}

type tweetResponse struct {
	Tweet models.Tweet `json:"tweet"`
}

type playlistResponse struct {
	Playlist models.Playlist `json:"playlist"`
}

// AddComment handles POST /api/v1/videos/{videoId}/comments.
func (h ContentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	comment, err := h.Content.AddComment(ctx, middleware.AccountIDFromContext(ctx), r.PathValue("videoId"), req.Content)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, commentResponse{Comment: comment})
}

// VideoComments handles GET /api/v1/videos/{videoId}/comments.
func (h ContentHandler) VideoComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comments, err := h.Content.ListVideoComments(ctx, r.PathValue("videoId"), middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]models.Comment{"comments": comments})
}

// CreateTweet handles POST /api/v1/tweets.
func (h ContentHandler) CreateTweet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	tweet, err := h.Content.CreateTweet(ctx, middleware.AccountIDFromContext(ctx), req.Content)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, tweetResponse{Tweet: tweet})
}

// AccountTweets handles GET /api/v1/accounts/{accountId}/tweets.
func (h ContentHandler) AccountTweets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tweets, err := h.Content.ListAccountTweets(ctx, r.PathValue("accountId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]models.Tweet{"tweets": tweets})
}

// CreatePlaylist handles POST /api/v1/playlists.
func (h ContentHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	playlist, err := h.Content.CreatePlaylist(ctx, middleware.AccountIDFromContext(ctx), req.Name, req.Description)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, playlistResponse{Playlist: playlist})
}

// AccountPlaylists handles GET /api/v1/accounts/{accountId}/playlists.
func (h ContentHandler) AccountPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlists, err := h.Content.ListAccountPlaylists(ctx, r.PathValue("accountId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]models.Playlist{"playlists": playlists})
}

// AddPlaylistVideo handles POST /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h ContentHandler) AddPlaylistVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlist, err := h.Content.AddVideoToPlaylist(ctx, middleware.AccountIDFromContext(ctx),
		r.PathValue("playlistId"), r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlistResponse{Playlist: playlist})
}
