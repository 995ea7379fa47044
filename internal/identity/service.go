package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// TokenIssuer signs and verifies the access/refresh pair.
type TokenIssuer interface {
	IssuePair(subject auth.Subject) (models.SessionTokens, error)
	VerifyAccess(token string) (auth.Claims, error)
	VerifyRefresh(token string) (auth.Claims, error)
}

// Options tunes a Service.
type Options struct {
	Revocation RevocationPolicy
	Clock      clockwork.Clock
}

// Service owns the account-session invariants: unique credentials, hashed passwords and
// single-use refresh tokens.
type Service struct {
	accounts repositories.AccountRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	policy   RevocationPolicy
	clock    clockwork.Clock
}

// NewService constructs a Service.
func NewService(accounts repositories.AccountRepository, hasher PasswordHasher, tokens TokenIssuer, opts Options) *Service {
	if accounts == nil || hasher == nil || tokens == nil {
		panic("identity: accounts, hasher and tokens must not be nil")
	}
	if opts.Revocation == "" {
		opts.Revocation = RevokeNone
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		policy:   opts.Revocation,
		clock:    opts.Clock,
	}
}

// RegisterInput is the registration command.
type RegisterInput struct {
	Handle    string
	Email     string
	FullName  string
	Password  string
	AvatarRef string
	CoverRef  string
}

// LoginInput is the login command. Either Handle or Email identifies the account; Email wins
// when both are set.
type LoginInput struct {
	Handle   string
	Email    string
	Password string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Account models.PublicAccount `json:"account"`
	Tokens  models.SessionTokens `json:"tokens"`
}

// ProfileInput carries the profile fields to change. Nil fields are left untouched.
type ProfileInput struct {
	FullName *string
	Email    *string
}

func (s *Service) begin(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := logging.StartSpan(ctx, op)
	return ctx, func(errp *error) {
		span.End(*errp)
		metrics.ObserveOperation(op, *errp)
	}
}

// Register creates an account and returns its sanitized view.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ models.PublicAccount, err error) {
	ctx, end := s.begin(ctx, "identity.register")
	defer end(&err)

	handle := NormalizeHandle(in.Handle)
	email := NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	if handle == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return models.PublicAccount{}, apperr.Validation("handle, email, full name and password are required")
	}
	if !validHandle(handle) {
		return models.PublicAccount{}, apperr.Validation("handle must not contain whitespace")
	}
	if !validEmail(email) {
		return models.PublicAccount{}, apperr.Validation("invalid email address")
	}

	if err := s.ensureAvailable(ctx, handle, email); err != nil {
		return models.PublicAccount{}, err
	}

	avatar := strings.TrimSpace(in.AvatarRef)
	if avatar == "" {
		return models.PublicAccount{}, apperr.Validation("avatar is required")
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return models.PublicAccount{}, err
	}

	now := s.clock.Now().UTC()
	account := models.Account{
		ID:            ids.New(),
		Handle:        handle,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatar,
		CoverImageURL: strings.TrimSpace(in.CoverRef),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicAccount{}, apperr.Wrap(apperr.ErrConflict, "handle or email already registered", err)
		}
		return models.PublicAccount{}, apperr.FromStore("create account", err)
	}

	logging.FromContext(ctx).Info("account registered", "accountId", account.ID, "handle", account.Handle)
	return account.Public(), nil
}

func (s *Service) ensureAvailable(ctx context.Context, handle, email string) error {
	if _, err := s.accounts.FindByHandle(ctx, handle); err == nil {
		return apperr.Conflict("handle already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.FromStore("look up handle", err)
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return apperr.Conflict("email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.FromStore("look up email", err)
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperr.Validation("password is too long")
		}
		return "", apperr.Unavailable("hash password", err)
	}
	return hash, nil
}

// Login verifies the credentials, issues a token pair and records the refresh fingerprint.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ LoginResult, err error) {
	ctx, end := s.begin(ctx, "identity.login")
	defer end(&err)

	email := NormalizeEmail(in.Email)
	handle := NormalizeHandle(in.Handle)

	var account models.Account
	switch {
	case email != "":
		account, err = s.accounts.FindByEmail(ctx, email)
	case handle != "":
		account, err = s.accounts.FindByHandle(ctx, handle)
	default:
		return LoginResult{}, apperr.Validation("handle or email is required")
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return LoginResult{}, apperr.NotFound("account does not exist")
		}
		return LoginResult{}, apperr.FromStore("look up account", err)
	}

	if err := s.hasher.Verify(account.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			logging.FromContext(ctx).Warn("login password mismatch", "accountId", account.ID)
			return LoginResult{}, apperr.Auth("invalid credentials")
		}
		return LoginResult{}, apperr.Unavailable("verify password", err)
	}

	tokens, err := s.issue(account)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.accounts.SetRefreshFingerprint(ctx, account.ID, auth.Fingerprint(tokens.RefreshToken)); err != nil {
		return LoginResult{}, apperr.FromStore("store refresh fingerprint", err)
	}

	logging.FromContext(ctx).Info("account logged in", "accountId", account.ID)
	return LoginResult{Account: account.Public(), Tokens: tokens}, nil
}

func (s *Service) issue(account models.Account) (models.SessionTokens, error) {
	tokens, err := s.tokens.IssuePair(auth.Subject{AccountID: account.ID, SessionVersion: account.SessionVersion})
	if err != nil {
		return models.SessionTokens{}, apperr.Unavailable("issue tokens", err)
	}
	return tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is single-use: the stored
// fingerprint is swapped atomically, so a second presentation fails even before it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ models.SessionTokens, err error) {
	ctx, end := s.begin(ctx, "identity.refresh")
	defer end(&err)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return models.SessionTokens{}, apperr.Auth("refresh token is required")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return models.SessionTokens{}, apperr.Wrap(apperr.ErrAuth, "invalid refresh token", err)
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.Auth("invalid refresh token")
		}
		return models.SessionTokens{}, apperr.FromStore("look up account", err)
	}

	presented := auth.Fingerprint(refreshToken)
	if account.RefreshFingerprint == "" || account.RefreshFingerprint != presented {
		metrics.RefreshRejectionsTotal.Inc()
		logging.FromContext(ctx).Warn("refresh token reuse rejected", "accountId", account.ID)
		return models.SessionTokens{}, apperr.Auth("refresh token has been used or revoked")
	}
	if s.policy.bumpsSessionVersion() && claims.SessionVersion != account.SessionVersion {
		return models.SessionTokens{}, apperr.Auth("session has been revoked")
	}

	tokens, err := s.issue(account)
	if err != nil {
		return models.SessionTokens{}, err
	}

	err = s.accounts.RotateRefreshFingerprint(ctx, account.ID, presented, auth.Fingerprint(tokens.RefreshToken))
	switch {
	case err == nil:
		return tokens, nil
	case errors.Is(err, repositories.ErrStale), errors.Is(err, repositories.ErrNotFound):
		metrics.RefreshRejectionsTotal.Inc()
		return models.SessionTokens{}, apperr.Auth("refresh token has been used or revoked")
	default:
		return models.SessionTokens{}, apperr.FromStore("rotate refresh fingerprint", err)
	}
}

// Logout clears the stored fingerprint. Logging out an account that does not exist, or has
// already logged out, succeeds.
func (s *Service) Logout(ctx context.Context, accountID string) (err error) {
	ctx, end := s.begin(ctx, "identity.logout")
	defer end(&err)

	if strings.TrimSpace(accountID) == "" {
		return apperr.Validation("account id is required")
	}

	err = s.accounts.ClearRefreshFingerprint(ctx, accountID, s.policy.bumpsSessionVersion())
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return apperr.FromStore("clear refresh fingerprint", err)
	}
	return nil
}

// ChangePassword replaces the password hash after verifying the old password. A wrong old
// password never reaches the store.
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) (err error) {
	ctx, end := s.begin(ctx, "identity.change_password")
	defer end(&err)

	if strings.TrimSpace(newPassword) == "" {
		return apperr.Validation("new password is required")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return apperr.FromStore("look up account", err)
	}

	if err := s.hasher.Verify(account.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperr.Auth("old password is incorrect")
		}
		return apperr.Unavailable("verify password", err)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash, s.clock.Now().UTC()); err != nil {
		return apperr.FromStore("update password", err)
	}

	if s.policy.revokesOnPasswordChange() {
		if err := s.accounts.ClearRefreshFingerprint(ctx, account.ID, s.policy.bumpsSessionVersion()); err != nil {
			return apperr.FromStore("revoke sessions", err)
		}
	}

	logging.FromContext(ctx).Info("password changed", "accountId", account.ID, "revocation", string(s.policy))
	return nil
}

// UpdateProfile changes the display name and/or email.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, in ProfileInput) (_ models.PublicAccount, err error) {
	ctx, end := s.begin(ctx, "identity.update_profile")
	defer end(&err)

	if in.FullName == nil && in.Email == nil {
		return models.PublicAccount{}, apperr.Validation("full name or email is required")
	}

	var update repositories.ProfileUpdate
	if in.FullName != nil {
		fullName := strings.TrimSpace(*in.FullName)
		if fullName == "" {
			return models.PublicAccount{}, apperr.Validation("full name must not be blank")
		}
		update.FullName = &fullName
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" {
			return models.PublicAccount{}, apperr.Validation("email must not be blank")
		}
		if !validEmail(email) {
			return models.PublicAccount{}, apperr.Validation("invalid email address")
		}
		existing, err := s.accounts.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != accountID:
			return models.PublicAccount{}, apperr.Conflict("email already registered")
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return models.PublicAccount{}, apperr.FromStore("look up email", err)
		}
		update.Email = &email
	}

	return s.applyProfile(ctx, accountID, update)
}

// UpdateAvatar replaces the avatar reference. The avatar is mandatory, so a blank reference is
// rejected.
func (s *Service) UpdateAvatar(ctx context.Context, accountID, avatarRef string) (_ models.PublicAccount, err error) {
	ctx, end := s.begin(ctx, "identity.update_avatar")
	defer end(&err)

	avatar := strings.TrimSpace(avatarRef)
	if avatar == "" {
		return models.PublicAccount{}, apperr.Validation("avatar is required")
	}
	return s.applyProfile(ctx, accountID, repositories.ProfileUpdate{AvatarURL: &avatar})
}

// UpdateCoverImage replaces the cover image reference. A blank reference removes the cover.
func (s *Service) UpdateCoverImage(ctx context.Context, accountID, coverRef string) (_ models.PublicAccount, err error) {
	ctx, end := s.begin(ctx, "identity.update_cover")
	defer end(&err)

	cover := strings.TrimSpace(coverRef)
	return s.applyProfile(ctx, accountID, repositories.ProfileUpdate{CoverImageURL: &cover})
}

func (s *Service) applyProfile(ctx context.Context, accountID string, update repositories.ProfileUpdate) (models.PublicAccount, error) {
	update.UpdatedAt = s.clock.Now().UTC()
	account, err := s.accounts.UpdateProfile(ctx, accountID, update)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicAccount{}, apperr.Wrap(apperr.ErrConflict, "email already registered", err)
		}
		return models.PublicAccount{}, apperr.FromStore("update profile", err)
	}
	return account.Public(), nil
}

// GetCurrentAccount returns the sanitized view of accountID.
func (s *Service) GetCurrentAccount(ctx context.Context, accountID string) (_ models.PublicAccount, err error) {
	ctx, end := s.begin(ctx, "identity.current_account")
	defer end(&err)

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return models.PublicAccount{}, apperr.FromStore("look up account", err)
	}
	return account.Public(), nil
}

// Authenticate resolves an access token to its account id. Verification is stateless unless the
// revocation policy is all, in which case the token's session version must still be current.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (_ string, err error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrAuth, "invalid access token", err)
	}
	if !s.policy.bumpsSessionVersion() {
		return claims.Subject, nil
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", apperr.Auth("invalid access token")
		}
		return "", apperr.FromStore("look up account", err)
	}
	if account.SessionVersion != claims.SessionVersion {
		return "", apperr.Auth("session has been revoked")
	}
	return claims.Subject, nil
}
