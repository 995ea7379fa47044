package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// Edge is a directed relation from an actor to a target: a subscription when the target is a
// channel, a like otherwise.
type Edge struct {
	ID        string
	ActorID   string
	Target    models.Target
	CreatedAt time.Time
}

// ToggleOutcome reports what a toggle did. Edge is populated only when one was created.
type ToggleOutcome struct {
	Removed bool
	Edge    Edge
}

// RelationRepository is the relationship store.
type RelationRepository interface {
	// Toggle deletes the edge (actor, target) when present and creates edge otherwise, as one
	// atomic conditional write. It returns ErrNotFound when the target does not exist.
	Toggle(ctx context.Context, edge Edge) (ToggleOutcome, error)

	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscriptions(ctx context.Context, subscriberID string) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.OwnerSummary, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error)
	ListLikedVideos(ctx context.Context, accountID string) ([]models.Video, error)
}
