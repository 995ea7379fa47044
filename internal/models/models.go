package models

import "time"

// Account is the persisted identity record. It carries secrets and must never be serialized
// outward; use Public to obtain the sanitized view.
type Account struct {
	ID                 string
	Handle             string
	Email              string
	FullName           string
	PasswordHash       string
	AvatarURL          string
	CoverImageURL      string
	RefreshFingerprint string
	SessionVersion     int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PublicAccount is the sanitized projection of an Account. It has no password or refresh token
// fields, so no operation can leak them by returning it.
type PublicAccount struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public strips credential material from the account.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:            a.ID,
		Handle:        a.Handle,
		Email:         a.Email,
		FullName:      a.FullName,
		AvatarURL:     a.AvatarURL,
		CoverImageURL: a.CoverImageURL,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// OwnerSummary is the public subset of an account joined onto videos and relation listings.
type OwnerSummary struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

// Video is an uploaded media record. Media bytes live in object storage; only references are kept.
type Video struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"ownerId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Duration     float64       `json:"duration"`
	Views        int64         `json:"views"`
	Published    bool          `json:"isPublished"`
	VideoURL     string        `json:"videoUrl"`
	ThumbnailURL string        `json:"thumbnailUrl"`
	CreatedAt    time.Time     `json:"createdAt"`
	Owner        *OwnerSummary `json:"owner,omitempty"`
}

// Subscription is the directed edge subscriber -> channel. Its existence is the subscribed state.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TargetKind names the entity a relation points at.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
	TargetChannel TargetKind = "channel"
)

// Valid reports whether k is a known target kind.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetVideo, TargetComment, TargetTweet, TargetChannel:
		return true
	}
	return false
}

// Likeable reports whether k may be the target of a Like.
func (k TargetKind) Likeable() bool {
	return k == TargetVideo || k == TargetComment || k == TargetTweet
}

// Target identifies exactly one liked entity.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// Like is the edge account -> target. At most one exists per (account, target).
type Like struct {
	ID        string    `json:"id"`
	LikedBy   string    `json:"likedBy"`
	Target    Target    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a remark left on a video.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tweet is a short text post by an account.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Playlist groups videos curated by an account.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated accounts.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// ChannelProfile is the viewer-scoped view of a channel.
type ChannelProfile struct {
	PublicAccount
	SubscribersCount  int64 `json:"subscribersCount"`
	SubscribedToCount int64 `json:"subscribedToCount"`
	IsSubscribed      bool  `json:"isSubscribed"`
}

// ChannelStats aggregates an owner's content and audience. Missing rows count as zero.
type ChannelStats struct {
	TotalVideos       int64 `json:"totalVideos"`
	TotalViews        int64 `json:"totalViews"`
	TotalLikes        int64 `json:"totalLikes"`
	TotalComments     int64 `json:"totalComments"`
	TotalTweets       int64 `json:"totalTweets"`
	SubscribersCount  int64 `json:"subscribersCount"`
	SubscribedToCount int64 `json:"subscribedToCount"`
}

// SortField enumerates the columns a video listing may be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortViews     SortField = "views"
	SortTitle     SortField = "title"
	SortDuration  SortField = "duration"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// VideoQuery describes a paginated video search.
type VideoQuery struct {
	Text      string
	Sort      SortField
	Direction SortDirection
	Page      int
	PageSize  int
	ViewerID  string
}

// Offset returns the number of rows skipped before the requested page.
func (q VideoQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// VideoPage is one page of a video listing.
type VideoPage struct {
	Videos   []Video `json:"videos"`
	Total    int64   `json:"totalVideos"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}
