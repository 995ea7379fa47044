package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// HistoryPolicy controls how watch history grows.
type HistoryPolicy struct {
	// Dedup moves an already watched video to the end instead of appending a repeat.
	Dedup bool
	// Limit caps the number of entries kept per account, dropping the oldest. Zero is unbounded.
	Limit int
}

// VideoRepository exposes data access for videos and the aggregates computed over them.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	// TogglePublished flips the published flag of a video owned by ownerID and returns the new value.
	TogglePublished(ctx context.Context, ownerID, videoID string) (bool, error)
	Search(ctx context.Context, query models.VideoQuery) (models.VideoPage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	ChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error)
}

// HistoryRepository records and reads watch history.
type HistoryRepository interface {
	// RecordView increments the video's view counter and appends it to the account's history.
	RecordView(ctx context.Context, accountID, videoID string, policy HistoryPolicy, at time.Time) error
	// WatchHistory returns the watched videos in append order with owners joined.
	WatchHistory(ctx context.Context, accountID string) ([]models.Video, error)
}

// ContentRepository persists the secondary entities that relations and aggregates join against.
type ContentRepository interface {
	CreateComment(ctx context.Context, comment models.Comment) error
	// ListComments returns a video's comments, oldest first.
	ListComments(ctx context.Context, videoID string) ([]models.Comment, error)
	CreateTweet(ctx context.Context, tweet models.Tweet) error
	// ListTweets returns an account's tweets, newest first.
	ListTweets(ctx context.Context, ownerID string) ([]models.Tweet, error)
	CreatePlaylist(ctx context.Context, playlist models.Playlist) error
	FindPlaylist(ctx context.Context, id string) (models.Playlist, error)
	// ListPlaylists returns an account's playlists, newest first.
	ListPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error)
	// AddPlaylistVideo appends videoID to the playlist. A video already present is ErrConflict.
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) error
}
