package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/storage"
)

// VideoHandler provides video search, publishing and view recording.
type VideoHandler struct {
	Channels ChannelService
	Media    MediaStore
}

// List handles GET /api/v1/videos?query=&sortBy=&sortType=&page=&limit=.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1, "page")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), channels.DefaultPageSize, "limit")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Channels.ListVideos(ctx, channels.ListVideosInput{
		Query:     q.Get("query"),
		Sort:      models.SortField(q.Get("sortBy")),
		Direction: models.SortDirection(q.Get("sortType")),
		Page:      page,
		PageSize:  limit,
		ViewerID:  middleware.AccountIDFromContext(ctx),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

func intParam(raw string, fallback int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name + " must be an integer")
	}
	return n, nil
}

// Publish handles POST /api/v1/videos. It accepts a multipart form carrying the videoFile and
// thumbnail uploads, or JSON with references to media stored elsewhere.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.AccountIDFromContext(ctx)

	var in channels.PublishInput
	if isMultipart(r) {
		if err := parseMultipart(w, r, maxVideoForm); err != nil {
			respondError(ctx, w, err)
			return
		}
		in = channels.PublishInput{
			Title:        r.FormValue("title"),
			Description:  r.FormValue("description"),
			VideoRef:     r.FormValue("videoUrl"),
			ThumbnailRef: r.FormValue("thumbnailUrl"),
		}
		if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
			duration, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				respondError(ctx, w, apperr.Validation("duration must be a number"))
				return
			}
			in.Duration = duration
		}
		// Validate the text fields before spending an upload on them.
		if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
			respondError(ctx, w, apperr.Validation("title and description are required"))
			return
		}
		if ref, ok, err := saveUpload(ctx, h.Media, r, "videoFile", storage.VideoPrefix, ownerID, videoMedia); err != nil {
			respondError(ctx, w, err)
			return
		} else if ok {
			in.VideoRef = ref
		}
		if ref, ok, err := saveUpload(ctx, h.Media, r, "thumbnail", storage.ThumbnailPrefix, ownerID, imageMedia); err != nil {
			respondError(ctx, w, err)
			return
		} else if ok {
			in.ThumbnailRef = ref
		}
	} else {
		var req publishRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondBadBody(ctx, w, err)
			return
		}
		in = channels.PublishInput{
			Title:        req.Title,
			Description:  req.Description,
			Duration:     req.Duration,
			VideoRef:     req.VideoURL,
			ThumbnailRef: req.ThumbnailURL,
		}
	}

	video, err := h.Channels.PublishVideo(ctx, ownerID, in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, videoResponse{Video: video})
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, err := h.Channels.GetVideo(ctx, r.PathValue("videoId"), middleware.AccountIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videoResponse{Video: video})
}

// RecordView handles POST /api/v1/videos/{videoId}/views.
func (h VideoHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, err := h.Channels.RecordView(ctx, middleware.AccountIDFromContext(ctx), r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videoResponse{Video: video})
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	published, err := h.Channels.TogglePublishStatus(ctx, middleware.AccountIDFromContext(ctx), r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]bool{"isPublished": published})
}

type publishRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Duration     float64 `json:"duration"`
	VideoURL     string  `json:"videoUrl"`
	ThumbnailURL string  `json:"thumbnailUrl"`
}

type videoResponse struct {
	Video models.Video `json:"video"`
}
