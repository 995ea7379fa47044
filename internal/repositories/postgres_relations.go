package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

var targetTables = map[models.TargetKind]string{
	models.TargetVideo:   "videos",
	models.TargetComment: "comments",
	models.TargetTweet:   "tweets",
	models.TargetChannel: "accounts",
}

// PostgresRelationRepository provides PostgreSQL-backed persistence for subscriptions and likes.
type PostgresRelationRepository struct {
	pgBase
}

// NewPostgresRelationRepository constructs a relation repository backed by PostgreSQL.
func NewPostgresRelationRepository(pool db.Pool, timeout time.Duration) *PostgresRelationRepository {
	return &PostgresRelationRepository{pgBase: newPGBase(pool, timeout)}
}

// Toggle flips the presence of the edge inside a serializable transaction. The unique constraints
// on (subscriber_id, channel_id) and (liked_by, target_kind, target_id) guarantee that concurrent
// toggles can never leave duplicate edges behind; a transaction that loses the race is replayed.
func (r *PostgresRelationRepository) Toggle(ctx context.Context, edge Edge) (ToggleOutcome, error) {
	table, ok := targetTables[edge.Target.Kind]
	if !ok {
		return ToggleOutcome{}, fmt.Errorf("toggle relation: unknown target kind %q", edge.Target.Kind)
	}

	var outcome ToggleOutcome
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return inSerializableTx(ctx, conn, "toggle relation", func(tx pgx.Tx) error {
			outcome = ToggleOutcome{}

			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, edge.Target.ID).Scan(&exists); err != nil {
				return translate("check relation target", err)
			}
			if !exists {
				return ErrNotFound
			}

			var (
				deleteSQL, insertSQL string
				deleteArgs           []any
				insertArgs           []any
			)
			if edge.Target.Kind == models.TargetChannel {
				deleteSQL = `DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2 RETURNING id`
				deleteArgs = []any{edge.ActorID, edge.Target.ID}
				insertSQL = `INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at) VALUES ($1, $2, $3, $4)`
				insertArgs = []any{edge.ID, edge.ActorID, edge.Target.ID, edge.CreatedAt}
			} else {
				deleteSQL = `DELETE FROM likes WHERE liked_by = $1 AND target_kind = $2 AND target_id = $3 RETURNING id`
				deleteArgs = []any{edge.ActorID, string(edge.Target.Kind), edge.Target.ID}
				insertSQL = `INSERT INTO likes (id, liked_by, target_kind, target_id, created_at) VALUES ($1, $2, $3, $4, $5)`
				insertArgs = []any{edge.ID, edge.ActorID, string(edge.Target.Kind), edge.Target.ID, edge.CreatedAt}
			}

			var removedID string
			err := tx.QueryRow(ctx, deleteSQL, deleteArgs...).Scan(&removedID)
			switch {
			case err == nil:
				outcome.Removed = true
				return nil
			case !errors.Is(err, pgx.ErrNoRows):
				return translate("delete relation", err)
			}

			if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
				if isUniqueViolation(err) {
					return errRetryTx
				}
				return translate("insert relation", err)
			}
			outcome.Edge = edge
			return nil
		})
	})
	if err != nil {
		return ToggleOutcome{}, err
	}
	return outcome, nil
}

// CountSubscribers counts edges whose channel is channelID.
func (r *PostgresRelationRepository) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	return r.count(ctx, "count subscribers", `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, channelID)
}

// CountSubscriptions counts edges whose subscriber is subscriberID.
func (r *PostgresRelationRepository) CountSubscriptions(ctx context.Context, subscriberID string) (int64, error) {
	return r.count(ctx, "count subscriptions", `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, subscriberID)
}

func (r *PostgresRelationRepository) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return translate(op, conn.QueryRow(ctx, query, args...).Scan(&n))
	})
	return n, err
}

// IsSubscribed reports whether the edge subscriberID -> channelID exists.
func (r *PostgresRelationRepository) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	var exists bool
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)
    `, subscriberID, channelID).Scan(&exists)
		return translate("check subscription", err)
	})
	return exists, err
}

// ListSubscribers returns the accounts subscribed to channelID, most recent first.
func (r *PostgresRelationRepository) ListSubscribers(ctx context.Context, channelID string) ([]models.OwnerSummary, error) {
	return r.listAccounts(ctx, "list subscribers", `
        SELECT a.id, a.handle, a.full_name, a.avatar_url
        FROM subscriptions s
        JOIN accounts a ON a.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC, s.id DESC
    `, channelID)
}

// ListSubscribedChannels returns the channels subscriberID follows, most recent first.
func (r *PostgresRelationRepository) ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error) {
	return r.listAccounts(ctx, "list subscribed channels", `
        SELECT a.id, a.handle, a.full_name, a.avatar_url
        FROM subscriptions s
        JOIN accounts a ON a.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC, s.id DESC
    `, subscriberID)
}

func (r *PostgresRelationRepository) listAccounts(ctx context.Context, op, query string, arg string) ([]models.OwnerSummary, error) {
	accounts := []models.OwnerSummary{}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, arg)
		if err != nil {
			return translate(op, err)
		}
		defer rows.Close()

		for rows.Next() {
			var summary models.OwnerSummary
			if err := rows.Scan(&summary.ID, &summary.Handle, &summary.FullName, &summary.AvatarURL); err != nil {
				return fmt.Errorf("scan %s: %w", op, err)
			}
			accounts = append(accounts, summary)
		}
		return translate(op, rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListLikedVideos returns the videos accountID liked, most recent like first.
func (r *PostgresRelationRepository) ListLikedVideos(ctx context.Context, accountID string) ([]models.Video, error) {
	var videos []models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		videos, err = queryVideos(ctx, conn, "list liked videos", `
        SELECT `+videoWithOwnerColumns+`
        FROM likes l
        JOIN videos v ON v.id = l.target_id
        JOIN accounts a ON a.id = v.owner_id
        WHERE l.liked_by = $1 AND l.target_kind = 'video'
          AND (v.is_published OR v.owner_id = $1)
        ORDER BY l.created_at DESC, l.id DESC
    `, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return videos, nil
}

var _ RelationRepository = (*PostgresRelationRepository)(nil)
