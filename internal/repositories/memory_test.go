package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/models"
)

func seedMemoryAccount(t *testing.T, store *MemoryStore, handle string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, store.Create(context.Background(), models.Account{ID: id, Handle: handle, Email: handle + "@example.com"}))
	return id
}

func seedMemoryVideo(t *testing.T, store *MemoryStore, ownerID, title string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, store.CreateVideo(context.Background(), models.Video{ID: id, OwnerID: ownerID, Title: title, Published: true}))
	return id
}

func TestMemoryHistoryDedupKeepsLimitNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	videos := store.Videos()
	owner := seedMemoryAccount(t, store, "alice")
	viewer := seedMemoryAccount(t, store, "carol")
	a := seedMemoryVideo(t, store, owner, "a")
	b := seedMemoryVideo(t, store, owner, "b")
	c := seedMemoryVideo(t, store, owner, "c")

	policy := HistoryPolicy{Dedup: true, Limit: 3}
	for _, id := range []string{a, b, c, b} {
		require.NoError(t, videos.RecordView(ctx, viewer, id, policy, time.Now()))
	}

	history, err := videos.WatchHistory(ctx, viewer)
	require.NoError(t, err)
	got := make([]string, 0, len(history))
	for _, video := range history {
		got = append(got, video.ID)
	}
	assert.Equal(t, []string{a, c, b}, got)
}

func TestMemoryPlaylists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := seedMemoryAccount(t, store, "bob")
	first := seedMemoryVideo(t, store, owner, "first")
	second := seedMemoryVideo(t, store, owner, "second")

	assert.ErrorIs(t, store.CreatePlaylist(ctx, models.Playlist{ID: uuid.NewString(), OwnerID: uuid.NewString(), Name: "x"}), ErrNotFound)

	playlist := models.Playlist{ID: uuid.NewString(), OwnerID: owner, Name: "Bread", Description: "Loaves", CreatedAt: time.Now()}
	require.NoError(t, store.CreatePlaylist(ctx, playlist))
	assert.ErrorIs(t, store.CreatePlaylist(ctx, playlist), ErrConflict)

	require.NoError(t, store.AddPlaylistVideo(ctx, playlist.ID, second))
	require.NoError(t, store.AddPlaylistVideo(ctx, playlist.ID, first))
	assert.ErrorIs(t, store.AddPlaylistVideo(ctx, playlist.ID, first), ErrConflict)
	assert.ErrorIs(t, store.AddPlaylistVideo(ctx, playlist.ID, uuid.NewString()), ErrNotFound)

	found, err := store.FindPlaylist(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, found.VideoIDs)

	found.VideoIDs[0] = "mutated"
	again, err := store.FindPlaylist(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, second, again.VideoIDs[0])
}
