package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/identity"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/storage"
)

// AuthHandler implements registration and session endpoints.
type AuthHandler struct {
	Identity IdentityService
	Images   MediaStore
	Limiter  RateLimiter
}

// Register handles POST /api/v1/auth/register. It accepts JSON with image references, or a
// multipart form whose avatar and coverImage files are uploaded first.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !allowRequest(h.Limiter, w, r, "register") {
		return
	}
	ctx := r.Context()

	var in identity.RegisterInput
	if isMultipart(r) {
		if err := parseMultipart(w, r, 2*maxImageForm); err != nil {
			respondError(ctx, w, err)
			return
		}
		in = identity.RegisterInput{
			Handle:    r.FormValue("handle"),
			Email:     r.FormValue("email"),
			FullName:  r.FormValue("fullName"),
			Password:  r.FormValue("password"),
			AvatarRef: r.FormValue("avatarUrl"),
			CoverRef:  r.FormValue("coverImageUrl"),
		}
		if ref, ok, err := saveUpload(ctx, h.Images, r, "avatar", storage.AvatarPrefix, "", imageMedia); err != nil {
			respondError(ctx, w, err)
			return
		} else if ok {
			in.AvatarRef = ref
		}
		if ref, ok, err := saveUpload(ctx, h.Images, r, "coverImage", storage.CoverPrefix, "", imageMedia); err != nil {
			respondError(ctx, w, err)
			return
		} else if ok {
			in.CoverRef = ref
		}
	} else {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondBadBody(ctx, w, err)
			return
		}
		in = identity.RegisterInput{
			Handle:    req.Handle,
			Email:     req.Email,
			FullName:  req.FullName,
			Password:  req.Password,
			AvatarRef: req.AvatarURL,
			CoverRef:  req.CoverImageURL,
		}
	}

	account, err := h.Identity.Register(ctx, in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, accountResponse{Account: account})
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowRequest(h.Limiter, w, r, "login") {
		return
	}
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	result, err := h.Identity.Login(ctx, identity.LoginInput{Handle: req.Handle, Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

// Refresh handles POST /api/v1/auth/refresh, exchanging a refresh token for a new pair.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !allowRequest(h.Limiter, w, r, "refresh") {
		return
	}
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	tokens, err := h.Identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, tokensResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Identity.Logout(ctx, middleware.AccountIDFromContext(ctx)); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "logged out"})
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadBody(ctx, w, err)
		return
	}

	accountID := middleware.AccountIDFromContext(ctx)
	if err := h.Identity.ChangePassword(ctx, accountID, req.OldPassword, req.NewPassword); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password changed"})
}

type registerRequest struct {
	Handle        string `json:"handle"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	Password      string `json:"password"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type accountResponse struct {
	Account models.PublicAccount `json:"account"`
}

type tokensResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}
