package handlers

import (
	"context"

	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/identity"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/storage"
)

// IdentityService captures the account and session operations required by the auth and account
// handlers.
type IdentityService interface {
	Register(ctx context.Context, in identity.RegisterInput) (models.PublicAccount, error)
	Login(ctx context.Context, in identity.LoginInput) (identity.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, accountID string) error
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, accountID string, in identity.ProfileInput) (models.PublicAccount, error)
	UpdateAvatar(ctx context.Context, accountID, avatarRef string) (models.PublicAccount, error)
	UpdateCoverImage(ctx context.Context, accountID, coverRef string) (models.PublicAccount, error)
	GetCurrentAccount(ctx context.Context, accountID string) (models.PublicAccount, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// RelationService flips likes and subscriptions and lists the resulting edges.
type RelationService interface {
	ToggleVideoLike(ctx context.Context, actorID, videoID string) (relations.ToggleResult, error)
	ToggleCommentLike(ctx context.Context, actorID, commentID string) (relations.ToggleResult, error)
	ToggleTweetLike(ctx context.Context, actorID, tweetID string) (relations.ToggleResult, error)
	ToggleSubscription(ctx context.Context, actorID, channelID string) (relations.ToggleResult, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.OwnerSummary, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error)
	ListLikedVideos(ctx context.Context, accountID string) ([]models.Video, error)
}

// ChannelService serves the viewer-scoped channel and video views.
type ChannelService interface {
	GetChannelProfile(ctx context.Context, handle, viewerID string) (models.ChannelProfile, error)
	GetChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error)
	GetWatchHistory(ctx context.Context, accountID string) ([]models.Video, error)
	ListVideos(ctx context.Context, in channels.ListVideosInput) (models.VideoPage, error)
	ListChannelVideos(ctx context.Context, ownerID, viewerID string) ([]models.Video, error)
	GetVideo(ctx context.Context, videoID, viewerID string) (models.Video, error)
	RecordView(ctx context.Context, accountID, videoID string) (models.Video, error)
	PublishVideo(ctx context.Context, ownerID string, in channels.PublishInput) (models.Video, error)
	TogglePublishStatus(ctx context.Context, ownerID, videoID string) (bool, error)
}

// ContentService creates and lists comments, tweets and playlists.
type ContentService interface {
	AddComment(ctx context.Context, ownerID, videoID, text string) (models.Comment, error)
	ListVideoComments(ctx context.Context, videoID, viewerID string) ([]models.Comment, error)
	CreateTweet(ctx context.Context, ownerID, text string) (models.Tweet, error)
	ListAccountTweets(ctx context.Context, ownerID string) ([]models.Tweet, error)
	CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error)
	ListAccountPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error)
	AddVideoToPlaylist(ctx context.Context, ownerID, playlistID, videoID string) (models.Playlist, error)
}

// MediaStore persists uploaded files and returns the reference to record.
type MediaStore interface {
	Save(ctx context.Context, obj storage.Object) (string, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
