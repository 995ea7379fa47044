package relations

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// ToggleResult reports the state a toggle left behind. Exactly one of Subscription and Like is
// set when Removed is false.
type ToggleResult struct {
	Removed      bool                 `json:"removed"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Like         *models.Like         `json:"like,omitempty"`
}

// Engine flips subscriptions and likes. Every toggle is a single atomic store call, so
// concurrent duplicate requests from one actor cannot leave two edges behind.
type Engine struct {
	relations repositories.RelationRepository
	clock     clockwork.Clock
}

// NewEngine constructs an Engine. A nil clock means the wall clock.
func NewEngine(relations repositories.RelationRepository, clock clockwork.Clock) *Engine {
	if relations == nil {
		panic("relations: repository must not be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{relations: relations, clock: clock}
}

// ToggleVideoLike flips the actor's like on a video.
func (e *Engine) ToggleVideoLike(ctx context.Context, actorID, videoID string) (ToggleResult, error) {
	return e.Toggle(ctx, actorID, models.TargetVideo, videoID)
}

// ToggleCommentLike flips the actor's like on a comment.
func (e *Engine) ToggleCommentLike(ctx context.Context, actorID, commentID string) (ToggleResult, error) {
	return e.Toggle(ctx, actorID, models.TargetComment, commentID)
}

// ToggleTweetLike flips the actor's like on a tweet.
func (e *Engine) ToggleTweetLike(ctx context.Context, actorID, tweetID string) (ToggleResult, error) {
	return e.Toggle(ctx, actorID, models.TargetTweet, tweetID)
}

// ToggleSubscription flips the actor's subscription to a channel.
func (e *Engine) ToggleSubscription(ctx context.Context, actorID, channelID string) (ToggleResult, error) {
	return e.Toggle(ctx, actorID, models.TargetChannel, channelID)
}

// Toggle removes the edge (actor, kind, target) when present and creates it otherwise.
func (e *Engine) Toggle(ctx context.Context, actorID string, kind models.TargetKind, targetID string) (_ ToggleResult, err error) {
	op := "relations.toggle_" + string(kind)
	ctx, span := logging.StartSpan(ctx, op)
	span.With("actorId", actorID, "targetKind", string(kind), "targetId", targetID)
	defer func() {
		span.End(err)
		metrics.ObserveOperation(op, err)
	}()

	if !kind.Valid() {
		return ToggleResult{}, apperr.Validation("unknown target kind")
	}
	if !ids.Valid(actorID) {
		return ToggleResult{}, apperr.Validation("invalid actor id")
	}
	if !ids.Valid(targetID) {
		return ToggleResult{}, apperr.Validation("invalid " + string(kind) + " id")
	}
	if kind == models.TargetChannel && actorID == targetID {
		return ToggleResult{}, apperr.Validation("cannot subscribe to your own channel")
	}

	target := models.Target{Kind: kind, ID: targetID}
	outcome, err := e.relations.Toggle(ctx, repositories.Edge{
		ID:        ids.New(),
		ActorID:   actorID,
		Target:    target,
		CreatedAt: e.clock.Now().UTC(),
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return ToggleResult{}, apperr.Wrap(apperr.ErrNotFound, string(kind)+" not found", err)
	}
	if err != nil {
		return ToggleResult{}, apperr.FromStore("toggle "+string(kind), err)
	}

	if outcome.Removed {
		metrics.RelationTogglesTotal.WithLabelValues(string(kind), "removed").Inc()
		return ToggleResult{Removed: true}, nil
	}

	metrics.RelationTogglesTotal.WithLabelValues(string(kind), "created").Inc()
	edge := outcome.Edge
	if kind == models.TargetChannel {
		return ToggleResult{Subscription: &models.Subscription{
			ID:           edge.ID,
			SubscriberID: edge.ActorID,
			ChannelID:    edge.Target.ID,
			CreatedAt:    edge.CreatedAt,
		}}, nil
	}
	return ToggleResult{Like: &models.Like{
		ID:        edge.ID,
		LikedBy:   edge.ActorID,
		Target:    edge.Target,
		CreatedAt: edge.CreatedAt,
	}}, nil
}

// ListSubscribers returns the accounts subscribed to channelID.
func (e *Engine) ListSubscribers(ctx context.Context, channelID string) ([]models.OwnerSummary, error) {
	if !ids.Valid(channelID) {
		return nil, apperr.Validation("invalid channel id")
	}
	subscribers, err := e.relations.ListSubscribers(ctx, channelID)
	if err != nil {
		return nil, apperr.FromStore("list subscribers", err)
	}
	return subscribers, nil
}

// ListSubscribedChannels returns the channels subscriberID follows.
func (e *Engine) ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error) {
	if !ids.Valid(subscriberID) {
		return nil, apperr.Validation("invalid subscriber id")
	}
	channels, err := e.relations.ListSubscribedChannels(ctx, subscriberID)
	if err != nil {
		return nil, apperr.FromStore("list subscribed channels", err)
	}
	return channels, nil
}

// ListLikedVideos returns the videos accountID liked, most recent first.
func (e *Engine) ListLikedVideos(ctx context.Context, accountID string) ([]models.Video, error) {
	if !ids.Valid(accountID) {
		return nil, apperr.Validation("invalid account id")
	}
	videos, err := e.relations.ListLikedVideos(ctx, accountID)
	if err != nil {
		return nil, apperr.FromStore("list liked videos", err)
	}
	return videos, nil
}
