package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// MemoryStore implements every repository interface in process. It backs unit tests and local
// development; each method holds the store lock for its whole read-modify-write, so toggles and
// fingerprint rotations are atomic just like their PostgreSQL counterparts.
type MemoryStore struct {
	mu sync.RWMutex

	accounts      map[string]models.Account
	videos        map[string]models.Video
	comments      map[string]models.Comment
	tweets        map[string]models.Tweet
	playlists     map[string]models.Playlist
	subscriptions map[string]Edge
	likes         map[string]Edge
	history       map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]models.Account),
		videos:        make(map[string]models.Video),
		comments:      make(map[string]models.Comment),
		tweets:        make(map[string]models.Tweet),
		playlists:     make(map[string]models.Playlist),
		subscriptions: make(map[string]Edge),
		likes:         make(map[string]Edge),
		history:       make(map[string][]string),
	}
}

func edgeKey(actorID string, target models.Target) string {
	return fmt.Sprintf("%s|%s|%s", actorID, target.Kind, target.ID)
}

// Create persists a new account, rejecting duplicate ids, handles and emails.
func (s *MemoryStore) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.ID == account.ID || existing.Handle == account.Handle || existing.Email == account.Email {
			return ErrConflict
		}
	}
	s.accounts[account.ID] = account
	return nil
}

// FindByID fetches an account by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return account, nil
}

// FindByHandle fetches an account by handle.
func (s *MemoryStore) FindByHandle(_ context.Context, handle string) (models.Account, error) {
	return s.findAccount(func(a models.Account) bool { return a.Handle == handle })
}

// FindByEmail fetches an account by email.
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (models.Account, error) {
	return s.findAccount(func(a models.Account) bool { return a.Email == email })
}

func (s *MemoryStore) findAccount(match func(models.Account) bool) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if match(account) {
			return account, nil
		}
	}
	return models.Account{}, ErrNotFound
}

// UpdateProfile applies the non-nil fields of update.
func (s *MemoryStore) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	if update.Email != nil && *update.Email != account.Email {
		for _, other := range s.accounts {
			if other.ID != id && other.Email == *update.Email {
				return models.Account{}, ErrConflict
			}
		}
		account.Email = *update.Email
	}
	if update.FullName != nil {
		account.FullName = *update.FullName
	}
	if update.AvatarURL != nil {
		account.AvatarURL = *update.AvatarURL
	}
	if update.CoverImageURL != nil {
		account.CoverImageURL = *update.CoverImageURL
	}
	account.UpdatedAt = update.UpdatedAt
	s.accounts[id] = account
	return account, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string, updatedAt time.Time) error {
	return s.mutateAccount(id, func(a *models.Account) error {
		a.PasswordHash = hash
		a.UpdatedAt = updatedAt
		return nil
	})
}

// SetRefreshFingerprint overwrites the stored fingerprint.
func (s *MemoryStore) SetRefreshFingerprint(_ context.Context, id, fingerprint string) error {
	return s.mutateAccount(id, func(a *models.Account) error {
		a.RefreshFingerprint = fingerprint
		return nil
	})
}

// RotateRefreshFingerprint swaps expected for next when the stored value still equals expected.
func (s *MemoryStore) RotateRefreshFingerprint(_ context.Context, id, expected, next string) error {
	err := s.mutateAccount(id, func(a *models.Account) error {
		if a.RefreshFingerprint == "" || a.RefreshFingerprint != expected {
			return ErrStale
		}
		a.RefreshFingerprint = next
		return nil
	})
	if err == ErrNotFound {
		return ErrStale
	}
	return err
}

// ClearRefreshFingerprint drops the fingerprint and optionally bumps the session version.
func (s *MemoryStore) ClearRefreshFingerprint(_ context.Context, id string, bumpSessionVersion bool) error {
	return s.mutateAccount(id, func(a *models.Account) error {
		a.RefreshFingerprint = ""
		if bumpSessionVersion {
			a.SessionVersion++
		}
		return nil
	})
}

func (s *MemoryStore) mutateAccount(id string, fn func(*models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&account); err != nil {
		return err
	}
	s.accounts[id] = account
	return nil
}

// Toggle deletes or creates the edge under the store lock.
func (s *MemoryStore) Toggle(_ context.Context, edge Edge) (ToggleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.targetExistsLocked(edge.Target) {
		return ToggleOutcome{}, ErrNotFound
	}

	edges := s.likes
	if edge.Target.Kind == models.TargetChannel {
		edges = s.subscriptions
	}

	key := edgeKey(edge.ActorID, edge.Target)
	if _, ok := edges[key]; ok {
		delete(edges, key)
		return ToggleOutcome{Removed: true}, nil
	}
	edges[key] = edge
	return ToggleOutcome{Edge: edge}, nil
}

func (s *MemoryStore) targetExistsLocked(target models.Target) bool {
	var ok bool
	switch target.Kind {
	case models.TargetVideo:
		_, ok = s.videos[target.ID]
	case models.TargetComment:
		_, ok = s.comments[target.ID]
	case models.TargetTweet:
		_, ok = s.tweets[target.ID]
	case models.TargetChannel:
		_, ok = s.accounts[target.ID]
	}
	return ok
}

// CountSubscribers counts edges whose channel is channelID.
func (s *MemoryStore) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, edge := range s.subscriptions {
		if edge.Target.ID == channelID {
			n++
		}
	}
	return n, nil
}

// CountSubscriptions counts edges whose subscriber is subscriberID.
func (s *MemoryStore) CountSubscriptions(_ context.Context, subscriberID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, edge := range s.subscriptions {
		if edge.ActorID == subscriberID {
			n++
		}
	}
	return n, nil
}

// IsSubscribed reports whether the edge subscriberID -> channelID exists.
func (s *MemoryStore) IsSubscribed(_ context.Context, subscriberID, channelID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.subscriptions[edgeKey(subscriberID, models.Target{Kind: models.TargetChannel, ID: channelID})]
	return ok, nil
}

// ListSubscribers returns the accounts subscribed to channelID, most recent first.
func (s *MemoryStore) ListSubscribers(_ context.Context, channelID string) ([]models.OwnerSummary, error) {
	return s.listSubscriptionAccounts(
		func(e Edge) bool { return e.Target.ID == channelID },
		func(e Edge) string { return e.ActorID },
	), nil
}

// ListSubscribedChannels returns the channels subscriberID follows, most recent first.
func (s *MemoryStore) ListSubscribedChannels(_ context.Context, subscriberID string) ([]models.OwnerSummary, error) {
	return s.listSubscriptionAccounts(
		func(e Edge) bool { return e.ActorID == subscriberID },
		func(e Edge) string { return e.Target.ID },
	), nil
}

func (s *MemoryStore) listSubscriptionAccounts(match func(Edge) bool, pick func(Edge) string) []models.OwnerSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []Edge
	for _, edge := range s.subscriptions {
		if match(edge) {
			edges = append(edges, edge)
		}
	}
	sortEdgesNewestFirst(edges)

	out := []models.OwnerSummary{}
	for _, edge := range edges {
		if account, ok := s.accounts[pick(edge)]; ok {
			out = append(out, ownerSummary(account))
		}
	}
	return out
}

// ListLikedVideos returns the videos accountID liked, most recent like first.
func (s *MemoryStore) ListLikedVideos(_ context.Context, accountID string) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []Edge
	for _, edge := range s.likes {
		if edge.ActorID == accountID && edge.Target.Kind == models.TargetVideo {
			edges = append(edges, edge)
		}
	}
	sortEdgesNewestFirst(edges)

	out := []models.Video{}
	for _, edge := range edges {
		video, ok := s.videos[edge.Target.ID]
		if !ok || (!video.Published && video.OwnerID != accountID) {
			continue
		}
		out = append(out, s.withOwnerLocked(video))
	}
	return out, nil
}

func sortEdgesNewestFirst(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.After(edges[j].CreatedAt)
		}
		return edges[i].ID > edges[j].ID
	})
}

func ownerSummary(account models.Account) models.OwnerSummary {
	return models.OwnerSummary{
		ID:        account.ID,
		Handle:    account.Handle,
		FullName:  account.FullName,
		AvatarURL: account.AvatarURL,
	}
}

func (s *MemoryStore) withOwnerLocked(video models.Video) models.Video {
	if account, ok := s.accounts[video.OwnerID]; ok {
		owner := ownerSummary(account)
		video.Owner = &owner
	}
	return video
}

// CreateVideo is a convenience alias used by fixtures.
func (s *MemoryStore) CreateVideo(ctx context.Context, video models.Video) error {
	return s.createVideo(ctx, video)
}

func (s *MemoryStore) createVideo(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[video.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.accounts[video.OwnerID]; !ok {
		return ErrNotFound
	}
	s.videos[video.ID] = video
	return nil
}

// FindVideo fetches a single video with its owner joined.
func (s *MemoryStore) FindVideo(_ context.Context, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return s.withOwnerLocked(video), nil
}

// CreateComment stores a comment on an existing video.
func (s *MemoryStore) CreateComment(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[comment.VideoID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.comments[comment.ID]; ok {
		return ErrConflict
	}
	s.comments[comment.ID] = comment
	return nil
}

// CreateTweet stores a tweet.
func (s *MemoryStore) CreateTweet(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[tweet.OwnerID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.tweets[tweet.ID]; ok {
		return ErrConflict
	}
	s.tweets[tweet.ID] = tweet
	return nil
}

// ListComments returns the video's comments, oldest first.
func (s *MemoryStore) ListComments(_ context.Context, videoID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := make([]models.Comment, 0)
	for _, comment := range s.comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// ListTweets returns the account's tweets, newest first.
func (s *MemoryStore) ListTweets(_ context.Context, ownerID string) ([]models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tweets := make([]models.Tweet, 0)
	for _, tweet := range s.tweets {
		if tweet.OwnerID == ownerID {
			tweets = append(tweets, tweet)
		}
	}
	sort.Slice(tweets, func(i, j int) bool {
		if tweets[i].CreatedAt.Equal(tweets[j].CreatedAt) {
			return tweets[i].ID > tweets[j].ID
		}
		return tweets[i].CreatedAt.After(tweets[j].CreatedAt)
	})
	return tweets, nil
}

// CreatePlaylist stores an empty playlist owned by an existing account.
func (s *MemoryStore) CreatePlaylist(_ context.Context, playlist models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[playlist.OwnerID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.playlists[playlist.ID]; ok {
		return ErrConflict
	}
	playlist.VideoIDs = append([]string(nil), playlist.VideoIDs...)
	s.playlists[playlist.ID] = playlist
	return nil
}

// FindPlaylist fetches a playlist with its videos in insertion order.
func (s *MemoryStore) FindPlaylist(_ context.Context, id string) (models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, ErrNotFound
	}
	return clonePlaylist(playlist), nil
}

// ListPlaylists returns the account's playlists, newest first.
func (s *MemoryStore) ListPlaylists(_ context.Context, ownerID string) ([]models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlists := make([]models.Playlist, 0)
	for _, playlist := range s.playlists {
		if playlist.OwnerID == ownerID {
			playlists = append(playlists, clonePlaylist(playlist))
		}
	}
	sort.Slice(playlists, func(i, j int) bool {
		if playlists[i].CreatedAt.Equal(playlists[j].CreatedAt) {
			return playlists[i].ID > playlists[j].ID
		}
		return playlists[i].CreatedAt.After(playlists[j].CreatedAt)
	})
	return playlists, nil
}

// AddPlaylistVideo appends an existing video to an existing playlist.
func (s *MemoryStore) AddPlaylistVideo(_ context.Context, playlistID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.videos[videoID]; !ok {
		return ErrNotFound
	}
	for _, id := range playlist.VideoIDs {
		if id == videoID {
			return ErrConflict
		}
	}
	playlist.VideoIDs = append(playlist.VideoIDs, videoID)
	s.playlists[playlistID] = playlist
	return nil
}

func clonePlaylist(playlist models.Playlist) models.Playlist {
	videoIDs := make([]string, len(playlist.VideoIDs))
	copy(videoIDs, playlist.VideoIDs)
	playlist.VideoIDs = videoIDs
	return playlist
}

// Videos returns a VideoRepository view over the store. Account and video lookups share method
// names, so the video side lives on a thin adapter.
func (s *MemoryStore) Videos() *MemoryVideoRepository {
	return &MemoryVideoRepository{store: s}
}

// MemoryVideoRepository adapts MemoryStore to VideoRepository and HistoryRepository.
type MemoryVideoRepository struct {
	store *MemoryStore
}

// Create stores a new video.
func (r *MemoryVideoRepository) Create(ctx context.Context, video models.Video) error {
	return r.store.createVideo(ctx, video)
}

// FindByID fetches a single video with its owner joined.
func (r *MemoryVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	return r.store.FindVideo(ctx, id)
}

// TogglePublished flips the published flag of a video owned by ownerID.
func (r *MemoryVideoRepository) TogglePublished(_ context.Context, ownerID, videoID string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[videoID]
	if !ok || video.OwnerID != ownerID {
		return false, ErrNotFound
	}
	video.Published = !video.Published
	s.videos[videoID] = video
	return video.Published, nil
}

// Search matches title or description case-insensitively and returns one page.
func (r *MemoryVideoRepository) Search(_ context.Context, query models.VideoQuery) (models.VideoPage, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query.Text)
	var matched []models.Video
	for _, video := range s.videos {
		if !video.Published && (query.ViewerID == "" || video.OwnerID != query.ViewerID) {
			continue
		}
		if strings.Contains(strings.ToLower(video.Title), needle) || strings.Contains(strings.ToLower(video.Description), needle) {
			matched = append(matched, s.withOwnerLocked(video))
		}
	}

	sortVideos(matched, query.Sort, query.Direction)

	page := models.VideoPage{Total: int64(len(matched)), Page: query.Page, PageSize: query.PageSize, Videos: []models.Video{}}
	start := query.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := start + query.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page.Videos = append(page.Videos, matched[start:end]...)
	return page, nil
}

func sortVideos(videos []models.Video, field models.SortField, direction models.SortDirection) {
	less := func(a, b models.Video) int {
		switch field {
		case models.SortViews:
			return compareInt64(a.Views, b.Views)
		case models.SortTitle:
			return strings.Compare(a.Title, b.Title)
		case models.SortDuration:
			return compareFloat(a.Duration, b.Duration)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		c := less(videos[i], videos[j])
		if c == 0 {
			c = strings.Compare(videos[i].ID, videos[j].ID)
		}
		if direction == models.SortAsc {
			return c < 0
		}
		return c > 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ListByOwner returns every video owned by ownerID, newest first.
func (r *MemoryVideoRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Video, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Video{}
	for _, video := range s.videos {
		if video.OwnerID == ownerID {
			out = append(out, s.withOwnerLocked(video))
		}
	}
	sortVideos(out, models.SortCreatedAt, models.SortDesc)
	return out, nil
}

// ChannelStats computes the owner's aggregates.
func (r *MemoryVideoRepository) ChannelStats(_ context.Context, ownerID string) (models.ChannelStats, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.ChannelStats
	owned := make(map[string]struct{})
	for _, video := range s.videos {
		if video.OwnerID == ownerID {
			owned[video.ID] = struct{}{}
			stats.TotalVideos++
			stats.TotalViews += video.Views
		}
	}
	for _, like := range s.likes {
		if _, ok := owned[like.Target.ID]; ok && like.Target.Kind == models.TargetVideo {
			stats.TotalLikes++
		}
	}
	for _, comment := range s.comments {
		if _, ok := owned[comment.VideoID]; ok {
			stats.TotalComments++
		}
	}
	for _, tweet := range s.tweets {
		if tweet.OwnerID == ownerID {
			stats.TotalTweets++
		}
	}
	for _, sub := range s.subscriptions {
		if sub.Target.ID == ownerID {
			stats.SubscribersCount++
		}
		if sub.ActorID == ownerID {
			stats.SubscribedToCount++
		}
	}
	return stats, nil
}

// RecordView bumps the view counter and appends to the account's history.
func (r *MemoryVideoRepository) RecordView(_ context.Context, accountID, videoID string, policy HistoryPolicy, _ time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[videoID]
	if !ok {
		return ErrNotFound
	}
	video.Views++
	s.videos[videoID] = video

	entries := s.history[accountID]
	if policy.Dedup {
		kept := entries[:0]
		for _, id := range entries {
			if id != videoID {
				kept = append(kept, id)
			}
		}
		entries = kept
	}
	entries = append(entries, videoID)
	if policy.Limit > 0 && len(entries) > policy.Limit {
		entries = append([]string(nil), entries[len(entries)-policy.Limit:]...)
	}
	s.history[accountID] = entries
	return nil
}

// WatchHistory returns the watched videos in append order.
func (r *MemoryVideoRepository) WatchHistory(_ context.Context, accountID string) ([]models.Video, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Video{}
	for _, id := range s.history[accountID] {
		if video, ok := s.videos[id]; ok {
			out = append(out, s.withOwnerLocked(video))
		}
	}
	return out, nil
}

var (
	_ AccountRepository  = (*MemoryStore)(nil)
	_ RelationRepository = (*MemoryStore)(nil)
	_ ContentRepository  = (*MemoryStore)(nil)
	_ VideoRepository    = (*MemoryVideoRepository)(nil)
	_ HistoryRepository  = (*MemoryVideoRepository)(nil)
)
