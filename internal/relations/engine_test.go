package relations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

type world struct {
	store   *repositories.MemoryStore
	clock   *clockwork.FakeClock
	engine  *Engine
	alice   string
	bob     string
	video   string
	comment string
	tweet   string
}

func newWorld(t *testing.T) world {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	w := world{store: store, clock: clock, engine: NewEngine(store, clock)}
	w.alice = addAccount(t, store, "alice")
	w.bob = addAccount(t, store, "bob")

	w.video = ids.New()
	require.NoError(t, store.CreateVideo(ctx, models.Video{ID: w.video, OwnerID: w.alice, Title: "Sourdough", Published: true, CreatedAt: clock.Now()}))
	w.comment = ids.New()
	require.NoError(t, store.CreateComment(ctx, models.Comment{ID: w.comment, VideoID: w.video, OwnerID: w.bob, Content: "nice", CreatedAt: clock.Now()}))
	w.tweet = ids.New()
	require.NoError(t, store.CreateTweet(ctx, models.Tweet{ID: w.tweet, OwnerID: w.alice, Content: "new video up", CreatedAt: clock.Now()}))
	return w
}

func addAccount(t *testing.T, store *repositories.MemoryStore, handle string) string {
	t.Helper()
	id := ids.New()
	require.NoError(t, store.Create(context.Background(), models.Account{
		ID:           id,
		Handle:       handle,
		Email:        handle + "@x.com",
		FullName:     handle,
		PasswordHash: "hash",
	}))
	return id
}

func TestToggleSubscriptionScenario(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	created, err := w.engine.ToggleSubscription(ctx, w.bob, w.alice)
	require.NoError(t, err)
	assert.False(t, created.Removed)
	require.NotNil(t, created.Subscription)
	assert.Equal(t, w.bob, created.Subscription.SubscriberID)
	assert.Equal(t, w.alice, created.Subscription.ChannelID)

	subscribed, err := w.store.IsSubscribed(ctx, w.bob, w.alice)
	require.NoError(t, err)
	assert.True(t, subscribed)

	removed, err := w.engine.ToggleSubscription(ctx, w.bob, w.alice)
	require.NoError(t, err)
	assert.True(t, removed.Removed)
	assert.Nil(t, removed.Subscription)

	subscribed, err = w.store.IsSubscribed(ctx, w.bob, w.alice)
	require.NoError(t, err)
	assert.False(t, subscribed)
}

func TestToggleLikesFlipAndRestore(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	toggles := []struct {
		name   string
		toggle func(context.Context, string, string) (ToggleResult, error)
		target models.Target
	}{
		{name: "video", toggle: w.engine.ToggleVideoLike, target: models.Target{Kind: models.TargetVideo, ID: w.video}},
		{name: "comment", toggle: w.engine.ToggleCommentLike, target: models.Target{Kind: models.TargetComment, ID: w.comment}},
		{name: "tweet", toggle: w.engine.ToggleTweetLike, target: models.Target{Kind: models.TargetTweet, ID: w.tweet}},
	}

	for _, tt := range toggles {
		t.Run(tt.name, func(t *testing.T) {
			first, err := tt.toggle(ctx, w.bob, tt.target.ID)
			require.NoError(t, err)
			assert.False(t, first.Removed)
			require.NotNil(t, first.Like)
			assert.Equal(t, tt.target, first.Like.Target)
			assert.Equal(t, w.bob, first.Like.LikedBy)

			second, err := tt.toggle(ctx, w.bob, tt.target.ID)
			require.NoError(t, err)
			assert.True(t, second.Removed)
		})
	}

	stats, err := w.store.Videos().ChannelStats(ctx, w.alice)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalLikes, "double toggle returns to the original state")
}

func TestToggleValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.engine.ToggleVideoLike(ctx, w.bob, "not-an-id")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = w.engine.ToggleVideoLike(ctx, "", w.video)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = w.engine.Toggle(ctx, w.bob, models.TargetKind("playlist"), w.video)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = w.engine.ToggleSubscription(ctx, w.alice, w.alice)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestToggleMissingTarget(t *testing.T) {
	w := newWorld(t)

	_, err := w.engine.ToggleVideoLike(context.Background(), w.bob, ids.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = w.engine.ToggleSubscription(context.Background(), w.bob, ids.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// downRelations fails every toggle the way a timed-out PostgreSQL call does.
type downRelations struct {
	repositories.RelationRepository
}

func (downRelations) Toggle(context.Context, repositories.Edge) (repositories.ToggleOutcome, error) {
	return repositories.ToggleOutcome{}, errors.Join(repositories.ErrUnavailable, context.DeadlineExceeded)
}

func TestToggleStoreFailureIsUnavailableNotMissing(t *testing.T) {
	w := newWorld(t)
	engine := NewEngine(downRelations{RelationRepository: w.store}, w.clock)

	_, err := engine.ToggleVideoLike(context.Background(), w.bob, w.video)
	require.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "toggle video", appErr.Message)
	assert.NotContains(t, appErr.Message, "not found")
}

func TestToggleMissingTargetNamesTheKind(t *testing.T) {
	w := newWorld(t)

	_, err := w.engine.ToggleTweetLike(context.Background(), w.bob, ids.New())
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.ErrNotFound, appErr.Kind)
	assert.Equal(t, "tweet not found", appErr.Message)
}

func TestConcurrentTogglesNeverDuplicate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	const toggles = 9
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.engine.ToggleSubscription(ctx, w.bob, w.alice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := w.store.CountSubscribers(ctx, w.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "an odd number of toggles leaves exactly one edge")
}

func TestListings(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.engine.ToggleSubscription(ctx, w.bob, w.alice)
	require.NoError(t, err)
	_, err = w.engine.ToggleVideoLike(ctx, w.bob, w.video)
	require.NoError(t, err)

	subscribers, err := w.engine.ListSubscribers(ctx, w.alice)
	require.NoError(t, err)
	require.Len(t, subscribers, 1)
	assert.Equal(t, "bob", subscribers[0].Handle)

	channels, err := w.engine.ListSubscribedChannels(ctx, w.bob)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "alice", channels[0].Handle)

	liked, err := w.engine.ListLikedVideos(ctx, w.bob)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, w.video, liked[0].ID)
	require.NotNil(t, liked[0].Owner)
	assert.Equal(t, "alice", liked[0].Owner.Handle)

	empty, err := w.engine.ListSubscribers(ctx, w.bob)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = w.engine.ListLikedVideos(ctx, "bad")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
