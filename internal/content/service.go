package content

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// Options tunes a Service.
type Options struct {
	Clock clockwork.Clock
}

// Service creates and lists the comments, tweets and playlists that likes and channel stats
// count against. Drafts accept comments and playlist entries from their owner only.
type Service struct {
	content repositories.ContentRepository
	videos  repositories.VideoRepository
	clock   clockwork.Clock
}

// NewService wires a Service. It panics on nil repositories.
func NewService(content repositories.ContentRepository, videos repositories.VideoRepository, opts Options) *Service {
	if content == nil || videos == nil {
		panic("content: repositories must not be nil")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{content: content, videos: videos, clock: opts.Clock}
}

func begin(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := logging.StartSpan(ctx, op)
	return ctx, func(errp *error) {
		span.End(*errp)
		metrics.ObserveOperation(op, *errp)
	}
}

// visibleVideo loads videoID and hides drafts from everyone but their owner.
func (s *Service) visibleVideo(ctx context.Context, videoID, viewerID string) (models.Video, error) {
	if !ids.Valid(videoID) {
		return models.Video{}, apperr.Validation("invalid video id")
	}
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return models.Video{}, apperr.FromStore("video does not exist", err)
	}
	if !video.Published && video.OwnerID != viewerID {
		return models.Video{}, apperr.NotFound("video does not exist")
	}
	return video, nil
}

// AddComment leaves text on videoID as ownerID.
func (s *Service) AddComment(ctx context.Context, ownerID, videoID, text string) (_ models.Comment, err error) {
	ctx, end := begin(ctx, "content.add_comment")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return models.Comment{}, apperr.Validation("invalid owner id")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, apperr.Validation("content is required")
	}
	if _, err := s.visibleVideo(ctx, videoID, ownerID); err != nil {
		return models.Comment{}, err
	}

	comment := models.Comment{
		ID:        ids.New(),
		VideoID:   videoID,
		OwnerID:   ownerID,
		Content:   text,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.content.CreateComment(ctx, comment); err != nil {
		return models.Comment{}, apperr.FromStore("video does not exist", err)
	}
	logging.FromContext(ctx).Info("comment added", "commentId", comment.ID, "videoId", videoID)
	return comment, nil
}

// ListVideoComments returns the comments on videoID, oldest first.
func (s *Service) ListVideoComments(ctx context.Context, videoID, viewerID string) (_ []models.Comment, err error) {
	ctx, end := begin(ctx, "content.list_comments")
	defer end(&err)

	if _, err := s.visibleVideo(ctx, videoID, viewerID); err != nil {
		return nil, err
	}
	comments, err := s.content.ListComments(ctx, videoID)
	if err != nil {
		return nil, apperr.FromStore("list comments", err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// CreateTweet posts text as ownerID.
func (s *Service) CreateTweet(ctx context.Context, ownerID, text string) (_ models.Tweet, err error) {
	ctx, end := begin(ctx, "content.create_tweet")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return models.Tweet{}, apperr.Validation("invalid owner id")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Tweet{}, apperr.Validation("content is required")
	}

	tweet := models.Tweet{
		ID:        ids.New(),
		OwnerID:   ownerID,
		Content:   text,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.content.CreateTweet(ctx, tweet); err != nil {
		return models.Tweet{}, apperr.FromStore("owner does not exist", err)
	}
	logging.FromContext(ctx).Info("tweet created", "tweetId", tweet.ID, "ownerId", ownerID)
	return tweet, nil
}

// ListAccountTweets returns ownerID's tweets, newest first.
func (s *Service) ListAccountTweets(ctx context.Context, ownerID string) (_ []models.Tweet, err error) {
	ctx, end := begin(ctx, "content.list_tweets")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return nil, apperr.Validation("invalid owner id")
	}
	tweets, err := s.content.ListTweets(ctx, ownerID)
	if err != nil {
		return nil, apperr.FromStore("list tweets", err)
	}
	if tweets == nil {
		tweets = []models.Tweet{}
	}
	return tweets, nil
}

// CreatePlaylist creates an empty playlist owned by ownerID. Name and description are both
// required.
func (s *Service) CreatePlaylist(ctx context.Context, ownerID, name, description string) (_ models.Playlist, err error) {
	ctx, end := begin(ctx, "content.create_playlist")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return models.Playlist{}, apperr.Validation("invalid owner id")
	}
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return models.Playlist{}, apperr.Validation("name and description are required")
	}

	playlist := models.Playlist{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		VideoIDs:    []string{},
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.content.CreatePlaylist(ctx, playlist); err != nil {
		return models.Playlist{}, apperr.FromStore("owner does not exist", err)
	}
	logging.FromContext(ctx).Info("playlist created", "playlistId", playlist.ID, "ownerId", ownerID)
	return playlist, nil
}

// ListAccountPlaylists returns ownerID's playlists, newest first.
func (s *Service) ListAccountPlaylists(ctx context.Context, ownerID string) (_ []models.Playlist, err error) {
	ctx, end := begin(ctx, "content.list_playlists")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return nil, apperr.Validation("invalid owner id")
	}
	playlists, err := s.content.ListPlaylists(ctx, ownerID)
	if err != nil {
		return nil, apperr.FromStore("list playlists", err)
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	return playlists, nil
}

// AddVideoToPlaylist appends videoID to one of ownerID's playlists and returns the result.
// Playlists of other accounts are reported as missing.
func (s *Service) AddVideoToPlaylist(ctx context.Context, ownerID, playlistID, videoID string) (_ models.Playlist, err error) {
	ctx, end := begin(ctx, "content.add_playlist_video")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return models.Playlist{}, apperr.Validation("invalid owner id")
	}
	if !ids.Valid(playlistID) {
		return models.Playlist{}, apperr.Validation("invalid playlist id")
	}
	playlist, err := s.content.FindPlaylist(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, apperr.FromStore("playlist does not exist", err)
	}
	if playlist.OwnerID != ownerID {
		return models.Playlist{}, apperr.NotFound("playlist does not exist")
	}
	if _, err := s.visibleVideo(ctx, videoID, ownerID); err != nil {
		return models.Playlist{}, err
	}

	if err := s.content.AddPlaylistVideo(ctx, playlistID, videoID); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.Playlist{}, apperr.Conflict("video is already in the playlist")
		}
		return models.Playlist{}, apperr.FromStore("add playlist video", err)
	}

	updated, err := s.content.FindPlaylist(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, apperr.FromStore("load playlist", err)
	}
	return updated, nil
}
