package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// ProfileUpdate carries the mutable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName      *string
	Email         *string
	AvatarURL     *string
	CoverImageURL *string
	UpdatedAt     time.Time
}

// AccountRepository is the credential store. Handles and emails are compared exactly; callers
// normalize them before reaching the store.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByHandle(ctx context.Context, handle string) (models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (models.Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error

	// SetRefreshFingerprint overwrites the stored fingerprint unconditionally (login).
	SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error
	// RotateRefreshFingerprint replaces expected with next atomically. It returns ErrStale when
	// the stored fingerprint no longer equals expected.
	RotateRefreshFingerprint(ctx context.Context, id, expected, next string) error
	// ClearRefreshFingerprint removes the fingerprint, optionally bumping the session version so
	// outstanding access tokens stop authenticating.
	ClearRefreshFingerprint(ctx context.Context, id string, bumpSessionVersion bool) error
}
