package handlers

import (
	"context"
	"net/http"

	"github.com/vidtube/backend/internal/identity"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/storage"
)

// AccountHandler serves the authenticated caller's own account.
type AccountHandler struct {
	Identity  IdentityService
	Channels  ChannelService
	Relations RelationService
	Images    MediaStore
}

// Me handles GET /api/v1/accounts/me.
func (h AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.Identity.GetCurrentAccount(ctx, middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, accountResponse{Account: account})
}

// UpdateProfile handles PATCH /api/v1/accounts/me.
func (h AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	account, err := h.Identity.UpdateProfile(ctx, middleware.AccountIDFromContext(ctx), identity.ProfileInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, accountResponse{Account: account})
}

// UpdateAvatar handles PUT /api/v1/accounts/me/avatar with an uploaded "avatar" file or a JSON
// {"avatarUrl"} reference.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", storage.AvatarPrefix, h.Identity.UpdateAvatar)
}

// UpdateCoverImage handles PUT /api/v1/accounts/me/cover with an uploaded "coverImage" file or a
// JSON {"coverImageUrl"} reference. An empty reference removes the cover.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", storage.CoverPrefix, h.Identity.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, accountID, ref string) (models.PublicAccount, error)

func (h AccountHandler) updateImage(w http.ResponseWriter, r *http.Request, field, prefix string, update imageUpdater) {
	ctx := r.Context()
	accountID := middleware.AccountIDFromContext(ctx)

	var ref string
	if isMultipart(r) {
		if err := parseMultipart(w, r, maxImageForm); err != nil {
			respondError(ctx, w, err)
			return
		}
		uploaded, _, err := saveUpload(ctx, h.Images, r, field, prefix, accountID, imageMedia)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		ref = uploaded
	} else {
		var req imageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondBadBody(ctx, w, err)
			return
		}
		ref = req.AvatarURL
		if field == "coverImage" {
			ref = req.CoverImageURL
		}
	}

	account, err := update(ctx, accountID, ref)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, accountResponse{Account: account})
}

// WatchHistory handles GET /api/v1/accounts/me/history.
func (h AccountHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videos, err := h.Channels.GetWatchHistory(ctx, middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videosResponse{Videos: videos})
}

// Stats handles GET /api/v1/accounts/me/stats.
func (h AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.Channels.GetChannelStats(ctx, middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, stats)
}

// LikedVideos handles GET /api/v1/accounts/me/liked-videos.
func (h AccountHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videos, err := h.Relations.ListLikedVideos(ctx, middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videosResponse{Videos: videos})
}

type profileRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

type imageRequest struct {
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

type videosResponse struct {
	Videos []models.Video `json:"videos"`
}
