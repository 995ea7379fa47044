package channels

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/identity"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const (
	// DefaultPageSize is used by transports when the caller does not ask for one.
	DefaultPageSize = 10
	// MaxPageSize bounds a single ListVideos page.
	MaxPageSize = 100
)

// Options tunes an Aggregator.
type Options struct {
	History repositories.HistoryPolicy
	Clock   clockwork.Clock
	// SharedCallTimeout bounds store calls shared between concurrent requests. Defaults to
	// repositories.DefaultQueryTimeout.
	SharedCallTimeout time.Duration
}

// Aggregator builds the read-only, viewer-scoped views over accounts, relations and videos, and
// records views into watch history. The viewer is always an explicit argument.
type Aggregator struct {
	accounts  repositories.AccountRepository
	relations repositories.RelationRepository
	videos    repositories.VideoRepository
	history   repositories.HistoryRepository
	policy    repositories.HistoryPolicy
	clock     clockwork.Clock

	sharedTimeout time.Duration
	statsGroup    singleflight.Group
}

// NewAggregator constructs an Aggregator.
func NewAggregator(accounts repositories.AccountRepository, relations repositories.RelationRepository,
	videos repositories.VideoRepository, history repositories.HistoryRepository, opts Options) *Aggregator {
	if accounts == nil || relations == nil || videos == nil || history == nil {
		panic("channels: repositories must not be nil")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.SharedCallTimeout <= 0 {
		opts.SharedCallTimeout = repositories.DefaultQueryTimeout
	}
	return &Aggregator{
		accounts:      accounts,
		relations:     relations,
		videos:        videos,
		history:       history,
		policy:        opts.History,
		clock:         opts.Clock,
		sharedTimeout: opts.SharedCallTimeout,
	}
}

func begin(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := logging.StartSpan(ctx, op)
	return ctx, func(errp *error) {
		span.End(*errp)
		metrics.ObserveOperation(op, *errp)
	}
}

// GetChannelProfile resolves handle case-insensitively and reports its audience counts, plus
// whether viewerID subscribes to it. An empty viewerID is never subscribed.
func (a *Aggregator) GetChannelProfile(ctx context.Context, handle, viewerID string) (_ models.ChannelProfile, err error) {
	ctx, end := begin(ctx, "channels.profile")
	defer end(&err)

	handle = identity.NormalizeHandle(handle)
	if handle == "" {
		return models.ChannelProfile{}, apperr.Validation("handle is required")
	}

	account, err := a.accounts.FindByHandle(ctx, handle)
	if err != nil {
		return models.ChannelProfile{}, apperr.FromStore("channel does not exist", err)
	}

	profile := models.ChannelProfile{PublicAccount: account.Public()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.relations.CountSubscribers(gctx, account.ID)
		profile.SubscribersCount = n
		return err
	})
	g.Go(func() error {
		n, err := a.relations.CountSubscriptions(gctx, account.ID)
		profile.SubscribedToCount = n
		return err
	})
	if viewerID != "" {
		g.Go(func() error {
			subscribed, err := a.relations.IsSubscribed(gctx, viewerID, account.ID)
			profile.IsSubscribed = subscribed
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return models.ChannelProfile{}, apperr.FromStore("load channel counts", err)
	}
	return profile, nil
}

// GetChannelStats aggregates ownerID's content and audience. Unknown owners yield zeros.
// Concurrent requests for the same owner share one store round trip, which runs detached from
// any single caller's cancellation.
func (a *Aggregator) GetChannelStats(ctx context.Context, ownerID string) (_ models.ChannelStats, err error) {
	ctx, end := begin(ctx, "channels.stats")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return models.ChannelStats{}, apperr.Validation("invalid owner id")
	}

	results := a.statsGroup.DoChan(ownerID, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.sharedTimeout)
		defer cancel()
		return a.videos.ChannelStats(sharedCtx, ownerID)
	})
	select {
	case <-ctx.Done():
		return models.ChannelStats{}, apperr.Unavailable("load channel stats", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return models.ChannelStats{}, apperr.FromStore("load channel stats", res.Err)
		}
		return res.Val.(models.ChannelStats), nil
	}
}

// GetWatchHistory returns accountID's watched videos in append order with owners joined.
func (a *Aggregator) GetWatchHistory(ctx context.Context, accountID string) (_ []models.Video, err error) {
	ctx, end := begin(ctx, "channels.watch_history")
	defer end(&err)

	if !ids.Valid(accountID) {
		return nil, apperr.Validation("invalid account id")
	}
	videos, err := a.history.WatchHistory(ctx, accountID)
	if err != nil {
		return nil, apperr.FromStore("load watch history", err)
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, nil
}

// ListVideosInput is a video search request. Zero Sort and Direction mean newest first.
type ListVideosInput struct {
	Query     string
	Sort      models.SortField
	Direction models.SortDirection
	Page      int
	PageSize  int
	ViewerID  string
}

// ListVideos searches titles and descriptions and returns one page. Unpublished videos are
// visible only to their owner.
func (a *Aggregator) ListVideos(ctx context.Context, in ListVideosInput) (_ models.VideoPage, err error) {
	ctx, end := begin(ctx, "channels.list_videos")
	defer end(&err)

	query, err := buildQuery(in)
	if err != nil {
		return models.VideoPage{}, err
	}

	page, err := a.videos.Search(ctx, query)
	if err != nil {
		return models.VideoPage{}, apperr.FromStore("search videos", err)
	}
	if page.Videos == nil {
		page.Videos = []models.Video{}
	}
	return page, nil
}

func buildQuery(in ListVideosInput) (models.VideoQuery, error) {
	if in.Page <= 0 {
		return models.VideoQuery{}, apperr.Validation("page must be positive")
	}
	if in.PageSize <= 0 {
		return models.VideoQuery{}, apperr.Validation("page size must be positive")
	}
	if in.PageSize > MaxPageSize {
		return models.VideoQuery{}, apperr.Validation("page size must not exceed 100")
	}

	sort := in.Sort
	switch sort {
	case "":
		sort = models.SortCreatedAt
	case models.SortCreatedAt, models.SortViews, models.SortTitle, models.SortDuration:
	default:
		return models.VideoQuery{}, apperr.Validation("unknown sort field")
	}

	direction := models.SortDirection(strings.ToLower(string(in.Direction)))
	switch direction {
	case "":
		direction = models.SortDesc
	case models.SortAsc, models.SortDesc:
	default:
		return models.VideoQuery{}, apperr.Validation("sort direction must be asc or desc")
	}

	return models.VideoQuery{
		Text:      strings.TrimSpace(in.Query),
		Sort:      sort,
		Direction: direction,
		Page:      in.Page,
		PageSize:  in.PageSize,
		ViewerID:  in.ViewerID,
	}, nil
}

// ListChannelVideos returns ownerID's videos, newest first. Drafts are included only when the
// viewer is the owner.
func (a *Aggregator) ListChannelVideos(ctx context.Context, ownerID, viewerID string) (_ []models.Video, err error) {
	ctx, end := begin(ctx, "channels.channel_videos")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return nil, apperr.Validation("invalid owner id")
	}
	videos, err := a.videos.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.FromStore("list channel videos", err)
	}

	visible := make([]models.Video, 0, len(videos))
	for _, video := range videos {
		if video.Published || viewerID == ownerID {
			visible = append(visible, video)
		}
	}
	return visible, nil
}

// GetVideo fetches one video with its owner joined. A draft is visible only to its owner.
func (a *Aggregator) GetVideo(ctx context.Context, videoID, viewerID string) (_ models.Video, err error) {
	ctx, end := begin(ctx, "channels.get_video")
	defer end(&err)

	if !ids.Valid(videoID) {
		return models.Video{}, apperr.Validation("invalid video id")
	}
	video, err := a.videos.FindByID(ctx, videoID)
	if err != nil {
		return models.Video{}, apperr.FromStore("video does not exist", err)
	}
	if !video.Published && video.OwnerID != viewerID {
		return models.Video{}, apperr.NotFound("video does not exist")
	}
	return video, nil
}

// RecordView counts a view of videoID by accountID and appends it to their watch history under
// the configured history policy.
func (a *Aggregator) RecordView(ctx context.Context, accountID, videoID string) (_ models.Video, err error) {
	ctx, end := begin(ctx, "channels.record_view")
	defer end(&err)

	if !ids.Valid(accountID) {
		return models.Video{}, apperr.Validation("invalid account id")
	}
	if !ids.Valid(videoID) {
		return models.Video{}, apperr.Validation("invalid video id")
	}

	video, err := a.videos.FindByID(ctx, videoID)
	if err != nil {
		return models.Video{}, apperr.FromStore("video does not exist", err)
	}
	if !video.Published && video.OwnerID != accountID {
		return models.Video{}, apperr.NotFound("video does not exist")
	}

	if err := a.history.RecordView(ctx, accountID, videoID, a.policy, a.clock.Now().UTC()); err != nil {
		return models.Video{}, apperr.FromStore("record view", err)
	}
	video.Views++
	return video, nil
}

// PublishInput describes a new video. Media bytes are uploaded elsewhere; only references are
// recorded.
type PublishInput struct {
	Title        string
	Description  string
	Duration     float64
	VideoRef     string
	ThumbnailRef string
}

// PublishVideo creates a published video owned by ownerID.
func (a *Aggregator) PublishVideo(ctx context.Context, ownerID string, in PublishInput) (_ models.Video, err error) {
	ctx, end := begin(ctx, "channels.publish_video")
	defer end(&err)

	if !ids.Valid(ownerID) {
		return models.Video{}, apperr.Validation("invalid owner id")
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return models.Video{}, apperr.Validation("title and description are required")
	}
	videoRef := strings.TrimSpace(in.VideoRef)
	thumbnailRef := strings.TrimSpace(in.ThumbnailRef)
	if videoRef == "" || thumbnailRef == "" {
		return models.Video{}, apperr.Validation("video and thumbnail are required")
	}
	if in.Duration < 0 {
		return models.Video{}, apperr.Validation("duration must not be negative")
	}

	video := models.Video{
		ID:           ids.New(),
		OwnerID:      ownerID,
		Title:        title,
		Description:  description,
		Duration:     in.Duration,
		Published:    true,
		VideoURL:     videoRef,
		ThumbnailURL: thumbnailRef,
		CreatedAt:    a.clock.Now().UTC(),
	}
	if err := a.videos.Create(ctx, video); err != nil {
		return models.Video{}, apperr.FromStore("owner does not exist", err)
	}

	stored, err := a.videos.FindByID(ctx, video.ID)
	if err != nil {
		return models.Video{}, apperr.FromStore("load published video", err)
	}
	logging.FromContext(ctx).Info("video published", "videoId", video.ID, "ownerId", ownerID)
	return stored, nil
}

// TogglePublishStatus flips a video's published flag. Only the owner may do so; anyone else gets
// NotFound so drafts are not disclosed.
func (a *Aggregator) TogglePublishStatus(ctx context.Context, ownerID, videoID string) (_ bool, err error) {
	ctx, end := begin(ctx, "channels.toggle_publish")
	defer end(&err)

	if !ids.Valid(ownerID) || !ids.Valid(videoID) {
		return false, apperr.Validation("invalid owner or video id")
	}
	published, err := a.videos.TogglePublished(ctx, ownerID, videoID)
	if err != nil {
		return false, apperr.FromStore("video does not exist", err)
	}
	return published, nil
}
