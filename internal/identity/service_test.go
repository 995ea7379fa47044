package identity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

type fixture struct {
	store   *repositories.MemoryStore
	clock   *clockwork.FakeClock
	service *Service
}

func newFixture(t *testing.T, policy RevocationPolicy) fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	tokens, err := auth.NewManager(auth.ManagerConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "vidtube-test",
		Clock:         clock,
	})
	require.NoError(t, err)

	store := repositories.NewMemoryStore()
	service := NewService(store, auth.NewHasher(bcrypt.MinCost), tokens, Options{Revocation: policy, Clock: clock})
	return fixture{store: store, clock: clock, service: service}
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Handle:    "alice",
		Email:     "a@x.com",
		FullName:  "Alice A",
		Password:  "pw123",
		AvatarRef: "https://cdn.example.com/alice.png",
	}
}

func (f fixture) register(t *testing.T, in RegisterInput) models.PublicAccount {
	t.Helper()
	account, err := f.service.Register(context.Background(), in)
	require.NoError(t, err)
	return account
}

func TestRegister(t *testing.T) {
	f := newFixture(t, RevokeNone)

	account := f.register(t, RegisterInput{
		Handle:    "  Alice ",
		Email:     "A@X.com",
		FullName:  " Alice A ",
		Password:  "pw123",
		AvatarRef: "avatar.png",
		CoverRef:  "cover.png",
	})

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "alice", account.Handle)
	assert.Equal(t, "a@x.com", account.Email)
	assert.Equal(t, "Alice A", account.FullName)
	assert.Equal(t, "cover.png", account.CoverImageURL)

	stored, err := f.store.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw123")))
}

func TestRegisterDuplicateHandleAnyCase(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())

	dup := aliceInput()
	dup.Handle = "ALICE"
	dup.Email = "other@x.com"
	_, err := f.service.Register(context.Background(), dup)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	dup = aliceInput()
	dup.Handle = "alice2"
	dup.Email = "A@X.COM"
	_, err = f.service.Register(context.Background(), dup)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{name: "blank handle", mutate: func(in *RegisterInput) { in.Handle = "   " }},
		{name: "blank email", mutate: func(in *RegisterInput) { in.Email = "" }},
		{name: "blank full name", mutate: func(in *RegisterInput) { in.FullName = " " }},
		{name: "blank password", mutate: func(in *RegisterInput) { in.Password = "" }},
		{name: "missing avatar", mutate: func(in *RegisterInput) { in.AvatarRef = " " }},
		{name: "invalid email", mutate: func(in *RegisterInput) { in.Email = "not-an-email" }},
		{name: "handle with space", mutate: func(in *RegisterInput) { in.Handle = "al ice" }},
		{name: "password too long", mutate: func(in *RegisterInput) { in.Password = strings.Repeat("p", 80) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, RevokeNone)
			in := aliceInput()
			tt.mutate(&in)

			_, err := f.service.Register(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestLoginAndRefreshRotation(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())
	ctx := context.Background()

	first, err := f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.Tokens.AccessToken)
	assert.NotEmpty(t, first.Tokens.RefreshToken)
	assert.Equal(t, "alice", first.Account.Handle)

	second, err := f.service.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.RefreshToken)

	_, err = f.service.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrAuth, "a rotated-out refresh token must not be accepted twice")

	third, err := f.service.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, third.AccessToken)
}

func TestLoginByEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())

	_, err := f.service.Login(context.Background(), LoginInput{Email: " A@X.COM ", Password: "pw123"})
	assert.NoError(t, err)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())
	ctx := context.Background()

	_, err := f.service.Login(ctx, LoginInput{Password: "pw123"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.service.Login(ctx, LoginInput{Handle: "nobody", Password: "pw123"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.service.Login(ctx, LoginInput{Handle: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestLoginReplacesPreviousRefreshToken(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())
	ctx := context.Background()

	first, err := f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)
	_, err = f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestRefreshRejectsInvalidTokens(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())
	ctx := context.Background()

	_, err := f.service.Refresh(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = f.service.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	login, err := f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, login.Tokens.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrAuth, "access tokens cannot be used to refresh")

	f.clock.Advance(25 * time.Hour)
	_, err = f.service.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrAuth, "expired refresh tokens are rejected")
}

func TestRefreshConcurrentReuseSucceedsOnce(t *testing.T) {
	f := newFixture(t, RevokeNone)
	f.register(t, aliceInput())
	ctx := context.Background()

	login, err := f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Refresh(ctx, login.Tokens.RefreshToken); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newFixture(t, RevokeNone)
	account := f.register(t, aliceInput())
	ctx := context.Background()

	login, err := f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, account.ID))
	require.NoError(t, f.service.Logout(ctx, account.ID), "logout is idempotent")
	require.NoError(t, f.service.Logout(ctx, "0192a000-0000-7000-8000-00000000ffff"))

	_, err = f.service.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrAuth)

	subject, err := f.service.Authenticate(ctx, login.Tokens.AccessToken)
	require.NoError(t, err, "access tokens stay valid under the none policy")
	assert.Equal(t, account.ID, subject)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, RevokeNone)
	account := f.register(t, aliceInput())
	ctx := context.Background()

	before, err := f.store.FindByID(ctx, account.ID)
	require.NoError(t, err)

	err = f.service.ChangePassword(ctx, account.ID, "wrong", "next-pw")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	after, err := f.store.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash, "a failed change must not touch the hash")

	require.NoError(t, f.service.ChangePassword(ctx, account.ID, "pw123", "next-pw"))

	_, err = f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = f.service.Login(ctx, LoginInput{Handle: "alice", Password: "next-pw"})
	assert.NoError(t, err)

	err = f.service.ChangePassword(ctx, account.ID, "next-pw", " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestChangePasswordRevocationPolicies(t *testing.T) {
	tests := []struct {
		policy         RevocationPolicy
		refreshRevoked bool
		accessRevoked  bool
	}{
		{policy: RevokeNone, refreshRevoked: false, accessRevoked: false},
		{policy: RevokeRefresh, refreshRevoked: true, accessRevoked: false},
		{policy: RevokeAll, refreshRevoked: true, accessRevoked: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newFixture(t, tt.policy)
			account := f.register(t, aliceInput())
			ctx := context.Background()

			login, err := f.service.Login(ctx, LoginInput{Handle: "alice", Password: "pw123"})
			require.NoError(t, err)

			require.NoError(t, f.service.ChangePassword(ctx, account.ID, "pw123", "next-pw"))

			_, err = f.service.Refresh(ctx, login.Tokens.RefreshToken)
			assert.Equal(t, tt.refreshRevoked, errors.Is(err, apperr.ErrAuth))

			_, err = f.service.Authenticate(ctx, login.Tokens.AccessToken)
			assert.Equal(t, tt.accessRevoked, errors.Is(err, apperr.ErrAuth))
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, RevokeNone)
	account := f.register(t, aliceInput())
	bob := aliceInput()
	bob.Handle, bob.Email = "bob", "b@x.com"
	f.register(t, bob)
	ctx := context.Background()

	name := "Alice Anders"
	email := "Alice@Example.com"
	updated, err := f.service.UpdateProfile(ctx, account.ID, ProfileInput{FullName: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Alice Anders", updated.FullName)
	assert.Equal(t, "alice@example.com", updated.Email)

	blank := "  "
	_, err = f.service.UpdateProfile(ctx, account.ID, ProfileInput{FullName: &blank})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.service.UpdateProfile(ctx, account.ID, ProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	taken := "B@X.com"
	_, err = f.service.UpdateProfile(ctx, account.ID, ProfileInput{Email: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.service.UpdateProfile(ctx, "0192a000-0000-7000-8000-00000000ffff", ProfileInput{FullName: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateImages(t *testing.T) {
	f := newFixture(t, RevokeNone)
	account := f.register(t, aliceInput())
	ctx := context.Background()

	updated, err := f.service.UpdateAvatar(ctx, account.ID, "new-avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "new-avatar.png", updated.AvatarURL)

	_, err = f.service.UpdateAvatar(ctx, account.ID, " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err = f.service.UpdateCoverImage(ctx, account.ID, "cover.png")
	require.NoError(t, err)
	assert.Equal(t, "cover.png", updated.CoverImageURL)

	updated, err = f.service.UpdateCoverImage(ctx, account.ID, "")
	require.NoError(t, err)
	assert.Empty(t, updated.CoverImageURL)
}

func TestGetCurrentAccount(t *testing.T) {
	f := newFixture(t, RevokeNone)
	account := f.register(t, aliceInput())

	got, err := f.service.GetCurrentAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = f.service.GetCurrentAccount(context.Background(), "0192a000-0000-7000-8000-00000000ffff")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSanitizedViewsCarryNoSecrets(t *testing.T) {
	f := newFixture(t, RevokeNone)
	account := f.register(t, aliceInput())
	login, err := f.service.Login(context.Background(), LoginInput{Handle: "alice", Password: "pw123"})
	require.NoError(t, err)

	stored, err := f.store.FindByID(context.Background(), account.ID)
	require.NoError(t, err)

	for _, view := range []models.PublicAccount{account, login.Account} {
		encoded, err := json.Marshal(view)
		require.NoError(t, err)
		body := string(encoded)
		assert.NotContains(t, body, stored.PasswordHash)
		assert.NotContains(t, body, stored.RefreshFingerprint)
		assert.NotContains(t, strings.ToLower(body), "password")
		assert.NotContains(t, strings.ToLower(body), "refresh")
	}
}

type failingAccounts struct {
	repositories.AccountRepository
}

func (failingAccounts) FindByHandle(context.Context, string) (models.Account, error) {
	return models.Account{}, repositories.ErrUnavailable
}

func (failingAccounts) FindByEmail(context.Context, string) (models.Account, error) {
	return models.Account{}, repositories.ErrUnavailable
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	tokens, err := auth.NewManager(auth.ManagerConfig{
		AccessSecret: "a", RefreshSecret: "b", AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	require.NoError(t, err)
	service := NewService(failingAccounts{}, auth.NewHasher(bcrypt.MinCost), tokens, Options{})

	_, err = service.Register(context.Background(), aliceInput())
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	_, err = service.Login(context.Background(), LoginInput{Handle: "alice", Password: "pw123"})
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestParseRevocationPolicy(t *testing.T) {
	for input, want := range map[string]RevocationPolicy{"": RevokeNone, "none": RevokeNone, "REFRESH": RevokeRefresh, " all ": RevokeAll} {
		got, err := ParseRevocationPolicy(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseRevocationPolicy("sometimes")
	assert.Error(t, err)
}
