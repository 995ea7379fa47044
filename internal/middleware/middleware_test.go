package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiterRefillsOverTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiter(2, time.Minute, 2, time.Hour)
	limiter.WithClock(clock)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "login:5.6.7.8"), "keys are independent")

	clock.Advance(30 * time.Second)
	assert.True(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "login:1.2.3.4"))
}

func TestIPRateLimiterForgetsIdleKeys(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute)
	limiter.WithClock(clock)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "a"))
	require.False(t, limiter.Allow(ctx, "a"))

	clock.Advance(2 * time.Minute)
	limiter.Allow(ctx, "b")
	assert.NotContains(t, limiter.visitors, "a")
}

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *goredis.IntCmd {
	cmd := goredis.NewIntCmd(ctx, "incr", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd {
	cmd := goredis.NewBoolCmd(ctx, "expire", key, expiration)
	f.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func TestRedisRateLimiterFixedWindow(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewRedisRateLimiter(counter, 2, time.Minute)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "login:1.2.3.4"))
	assert.Equal(t, time.Minute, counter.expires["vidtube:ratelimit:login:1.2.3.4"])
	assert.Len(t, counter.expires, 1, "window is set only on the first hit")
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("circuit breaker is open")
	limiter := NewRedisRateLimiter(counter, 1, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(context.Background(), "login:1.2.3.4"))
	}
}

type stubAuthenticator struct {
	tokens map[string]string
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func TestAuthMiddleware(t *testing.T) {
	auth := stubAuthenticator{tokens: map[string]string{"good": "account-1"}}
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, AccountIDFromContext(r.Context()))
	})

	tests := []struct {
		name       string
		middleware func(http.Handler) http.Handler
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "required valid", middleware: RequireAuth(auth), header: "Bearer good", wantStatus: http.StatusOK, wantBody: "account-1"},
		{name: "required lowercase scheme", middleware: RequireAuth(auth), header: "bearer good", wantStatus: http.StatusOK, wantBody: "account-1"},
		{name: "required missing", middleware: RequireAuth(auth), wantStatus: http.StatusUnauthorized},
		{name: "required invalid", middleware: RequireAuth(auth), header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "required wrong scheme", middleware: RequireAuth(auth), header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "optional anonymous", middleware: OptionalAuth(auth), wantStatus: http.StatusOK, wantBody: ""},
		{name: "optional valid", middleware: OptionalAuth(auth), header: "Bearer good", wantStatus: http.StatusOK, wantBody: "account-1"},
		{name: "optional invalid", middleware: OptionalAuth(auth), header: "Bearer bad", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			tt.middleware(echo).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestRequestLoggerSetsRequestIDAndRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequestLogger(logger)(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
