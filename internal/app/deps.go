package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/content"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/identity"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/redisclient"
	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

// limiterIdleTTL is how long an idle per-IP bucket is kept by the in-memory limiter.
const limiterIdleTTL = 10 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP handlers. The
// returned cleanup releases connections opened here; it does not close pool.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	tokens, err := auth.NewManager(auth.ManagerConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.TokenIssuer,
	})
	if err != nil {
		return handlers.Dependencies{}, noop, err
	}

	accounts := repositories.NewPostgresAccountRepository(pool, cfg.StoreTimeout)
	relationStore := repositories.NewPostgresRelationRepository(pool, cfg.StoreTimeout)
	videos := repositories.NewPostgresVideoRepository(pool, cfg.StoreTimeout)
	contentStore := repositories.NewPostgresContentRepository(pool, cfg.StoreTimeout)

	identitySvc := identity.NewService(accounts, auth.NewHasher(cfg.BcryptCost), tokens, identity.Options{
		Revocation: cfg.Revocation(),
	})
	relationEngine := relations.NewEngine(relationStore, nil)
	aggregator := channels.NewAggregator(accounts, relationStore, videos, videos, channels.Options{
		History:           repositories.HistoryPolicy{Dedup: cfg.HistoryDedup, Limit: cfg.HistoryLimit},
		SharedCallTimeout: cfg.StoreTimeout,
	})

	deps := handlers.Dependencies{
		Identity:  identitySvc,
		Relations: relationEngine,
		Channels:  aggregator,
		Content:   content.NewService(contentStore, videos, content.Options{}),
		Database:  pool,
	}

	cleanup := noop
	if cfg.RedisAddr != "" {
		client, err := redisclient.New(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return handlers.Dependencies{}, noop, fmt.Errorf("connect redis: %w", err)
		}
		deps.Limiter = middleware.NewRedisRateLimiter(client, cfg.LoginRateLimit, cfg.LoginRateWindow)
		cleanup = func(context.Context) error { return client.Close() }
	} else {
		deps.Limiter = middleware.NewIPRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, cfg.LoginRateBurst, limiterIdleTTL)
	}

	if cfg.S3Bucket != "" {
		media, err := storage.NewS3Storage(ctx, cfg.ObjectStore())
		if err != nil {
			return handlers.Dependencies{}, noop, errors.Join(fmt.Errorf("configure object storage: %w", err), cleanup(ctx))
		}
		deps.Media = media
	} else {
		slog.Warn("VIDTUBE_S3_BUCKET is not set, file uploads are disabled")
	}

	return deps, cleanup, nil
}
