package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/logging"
)

type accountKey struct{}

// Authenticator resolves an access token to the account it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// WithAccountID stores the authenticated account id on ctx.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// AccountIDFromContext returns the authenticated account id, or "" for anonymous requests.
// Handlers read it once and pass it to services as an explicit argument.
func AccountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountKey{}).(string)
	return id
}

// RequireAuth rejects requests without a valid bearer access token.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return authenticate(auth, true)
}

// OptionalAuth identifies the caller when a bearer token is present and lets anonymous requests
// through. A token that is present but invalid is still rejected.
func OptionalAuth(auth Authenticator) func(http.Handler) http.Handler {
	return authenticate(auth, false)
}

func authenticate(auth Authenticator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				if required {
					unauthorized(w, "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			accountID, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Info("access token rejected", "error", err)
				unauthorized(w, "invalid or expired access token")
				return
			}

			ctx := WithAccountID(r.Context(), accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="vidtube"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
