package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Identity  IdentityService
	Relations RelationService
	Channels  ChannelService
	Content   ContentService
	Media     MediaStore
	Limiter   RateLimiter
	Database  Pinger
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	auth := AuthHandler{Identity: deps.Identity, Images: deps.Media, Limiter: deps.Limiter}
	accounts := AccountHandler{Identity: deps.Identity, Channels: deps.Channels, Relations: deps.Relations, Images: deps.Media}
	channels := ChannelHandler{Channels: deps.Channels, Relations: deps.Relations}
	videos := VideoHandler{Channels: deps.Channels, Media: deps.Media}
	likes := RelationHandler{Relations: deps.Relations}
	posts := ContentHandler{Content: deps.Content}

	required := middleware.RequireAuth(deps.Identity)
	optional := middleware.OptionalAuth(deps.Identity)
	private := func(h http.HandlerFunc) http.Handler { return required(h) }
	public := func(h http.HandlerFunc) http.Handler { return optional(h) }

	mux.HandleFunc("GET /healthz", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/auth/register", auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
	mux.Handle("POST /api/v1/auth/logout", private(auth.Logout))
	mux.Handle("POST /api/v1/auth/change-password", private(auth.ChangePassword))

	mux.Handle("GET /api/v1/accounts/me", private(accounts.Me))
	mux.Handle("PATCH /api/v1/accounts/me", private(accounts.UpdateProfile))
	mux.Handle("PUT /api/v1/accounts/me/avatar", private(accounts.UpdateAvatar))
	mux.Handle("PUT /api/v1/accounts/me/cover", private(accounts.UpdateCoverImage))
	mux.Handle("GET /api/v1/accounts/me/history", private(accounts.WatchHistory))
	mux.Handle("GET /api/v1/accounts/me/stats", private(accounts.Stats))
	mux.Handle("GET /api/v1/accounts/me/liked-videos", private(accounts.LikedVideos))

	mux.Handle("GET /api/v1/accounts/{accountId}/videos", public(channels.Videos))
	mux.Handle("GET /api/v1/accounts/{accountId}/subscribers", public(channels.Subscribers))
	mux.Handle("GET /api/v1/accounts/{accountId}/subscriptions", public(channels.Subscriptions))
	mux.Handle("GET /api/v1/accounts/{accountId}/tweets", public(posts.AccountTweets))
	mux.Handle("GET /api/v1/accounts/{accountId}/playlists", public(posts.AccountPlaylists))
	mux.Handle("GET /api/v1/channels/{handle}", public(channels.Profile))

	mux.Handle("GET /api/v1/videos", public(videos.List))
	mux.Handle("POST /api/v1/videos", private(videos.Publish))
	mux.Handle("GET /api/v1/videos/{videoId}", public(videos.Get))
	mux.Handle("POST /api/v1/videos/{videoId}/views", private(videos.RecordView))
	mux.Handle("GET /api/v1/videos/{videoId}/comments", public(posts.VideoComments))
	mux.Handle("POST /api/v1/videos/{videoId}/comments", private(posts.AddComment))
	mux.Handle("PATCH /api/v1/videos/{videoId}/publish", private(videos.TogglePublish))

	mux.Handle("POST /api/v1/tweets", private(posts.CreateTweet))
	mux.Handle("POST /api/v1/playlists", private(posts.CreatePlaylist))
	mux.Handle("POST /api/v1/playlists/{playlistId}/videos/{videoId}", private(posts.AddPlaylistVideo))

	mux.Handle("POST /api/v1/likes/videos/{videoId}", private(likes.ToggleVideoLike))
	mux.Handle("POST /api/v1/likes/comments/{commentId}", private(likes.ToggleCommentLike))
	mux.Handle("POST /api/v1/likes/tweets/{tweetId}", private(likes.ToggleTweetLike))
	mux.Handle("POST /api/v1/subscriptions/{channelId}", private(likes.ToggleSubscription))
}
