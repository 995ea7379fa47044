package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrInvalidToken indicates the token is malformed, forged, of the wrong type, or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token signature is valid but its lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the payload carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenType      string `json:"typ"`
	SessionVersion int64  `json:"sv"`
}

// Subject identifies whom a token pair is issued to.
type Subject struct {
	AccountID      string
	SessionVersion int64
}

// ManagerConfig configures token signing and lifetimes.
type ManagerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Manager issues and verifies signed access and refresh tokens. Verification is stateless; the
// refresh fingerprint check against the account store is left to the caller.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	clock         clockwork.Clock
}

// NewManager validates cfg and constructs a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		clock:         clock,
	}, nil
}

// IssuePair signs a fresh access and refresh token for subject.
func (m *Manager) IssuePair(subject Subject) (models.SessionTokens, error) {
	if subject.AccountID == "" {
		return models.SessionTokens{}, errors.New("account id must be provided")
	}

	now := m.clock.Now().UTC()
	accessExpires := now.Add(m.accessTTL)
	refreshExpires := now.Add(m.refreshTTL)

	access, err := m.sign(subject, tokenTypeAccess, now, accessExpires, m.accessSecret)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refresh, err := m.sign(subject, tokenTypeRefresh, now, refreshExpires, m.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (m *Manager) sign(subject Subject, tokenType string, issuedAt, expiresAt time.Time, secret []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.AccountID,
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType:      tokenType,
		SessionVersion: subject.SessionVersion,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyAccess decodes an access token and returns its claims.
func (m *Manager) VerifyAccess(token string) (Claims, error) {
	return m.verify(token, tokenTypeAccess, m.accessSecret)
}

// VerifyRefresh decodes a refresh token and returns its claims.
func (m *Manager) VerifyRefresh(token string) (Claims, error) {
	return m.verify(token, tokenTypeRefresh, m.refreshSecret)
}

func (m *Manager) verify(token, tokenType string, secret []byte) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != tokenType || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Fingerprint derives the value stored server-side for a refresh token. Only the digest is
// persisted, so a leaked database row cannot be replayed as a token.
func Fingerprint(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
