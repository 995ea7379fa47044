package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

const videoWithOwnerColumns = `v.id, v.owner_id, v.title, v.description, v.duration, v.views, v.is_published,
        v.video_url, v.thumbnail_url, v.created_at, a.id, a.handle, a.full_name, a.avatar_url`

var sortColumns = map[models.SortField]string{
	models.SortCreatedAt: "v.created_at",
	models.SortViews:     "v.views",
	models.SortTitle:     "v.title",
	models.SortDuration:  "v.duration",
}

func scanVideoWithOwner(row scanner) (models.Video, error) {
	var (
		video models.Video
		owner models.OwnerSummary
	)
	err := row.Scan(&video.ID, &video.OwnerID, &video.Title, &video.Description, &video.Duration, &video.Views,
		&video.Published, &video.VideoURL, &video.ThumbnailURL, &video.CreatedAt,
		&owner.ID, &owner.Handle, &owner.FullName, &owner.AvatarURL)
	if err != nil {
		return models.Video{}, err
	}
	video.CreatedAt = video.CreatedAt.UTC()
	video.Owner = &owner
	return video, nil
}

func queryVideos(ctx context.Context, conn *pgxpool.Conn, op, query string, args ...any) ([]models.Video, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		video, err := scanVideoWithOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return videos, nil
}

// likePattern builds a case-insensitive substring pattern with LIKE metacharacters escaped.
func likePattern(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(text) + "%"
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos and watch history.
type PostgresVideoRepository struct {
	pgBase
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool, timeout time.Duration) *PostgresVideoRepository {
	return &PostgresVideoRepository{pgBase: newPGBase(pool, timeout)}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, duration, views, is_published, video_url, thumbnail_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, video.ID, video.OwnerID, video.Title, video.Description, video.Duration, video.Views, video.Published,
			video.VideoURL, video.ThumbnailURL, video.CreatedAt)
		return translate("insert video", err)
	})
}

// FindByID fetches a single video with its owner joined.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	var video models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		video, err = scanVideoWithOwner(conn.QueryRow(ctx, `
        SELECT `+videoWithOwnerColumns+`
        FROM videos v
        JOIN accounts a ON a.id = v.owner_id
        WHERE v.id = $1
    `, id))
		return translate("select video", err)
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// TogglePublished flips is_published for a video owned by ownerID.
func (r *PostgresVideoRepository) TogglePublished(ctx context.Context, ownerID, videoID string) (bool, error) {
	var published bool
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `
        UPDATE videos
        SET is_published = NOT is_published
        WHERE id = $1 AND owner_id = $2
        RETURNING is_published
    `, videoID, ownerID).Scan(&published)
		return translate("toggle video published", err)
	})
	return published, err
}

// Search matches title or description case-insensitively and returns one page of results.
// Unpublished videos are visible only to their owner.
func (r *PostgresVideoRepository) Search(ctx context.Context, query models.VideoQuery) (models.VideoPage, error) {
	column, ok := sortColumns[query.Sort]
	if !ok {
		column = sortColumns[models.SortCreatedAt]
	}
	direction := "DESC"
	if query.Direction == models.SortAsc {
		direction = "ASC"
	}

	page := models.VideoPage{Page: query.Page, PageSize: query.PageSize}
	pattern := likePattern(query.Text)
	viewer := nullableID(query.ViewerID)

	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		if err := conn.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM videos v
        WHERE (v.title ILIKE $1 OR v.description ILIKE $1)
          AND (v.is_published OR v.owner_id = $2)
    `, pattern, viewer).Scan(&page.Total); err != nil {
			return translate("count videos", err)
		}

		videos, err := queryVideos(ctx, conn, "search videos", `
        SELECT `+videoWithOwnerColumns+`
        FROM videos v
        JOIN accounts a ON a.id = v.owner_id
        WHERE (v.title ILIKE $1 OR v.description ILIKE $1)
          AND (v.is_published OR v.owner_id = $2)
        ORDER BY `+column+` `+direction+`, v.id `+direction+`
        LIMIT $3 OFFSET $4
    `, pattern, viewer, query.PageSize, query.Offset())
		if err != nil {
			return err
		}
		page.Videos = videos
		return nil
	})
	if err != nil {
		return models.VideoPage{}, err
	}
	return page, nil
}

// ListByOwner returns every video owned by ownerID, newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error) {
	var videos []models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		videos, err = queryVideos(ctx, conn, "list owner videos", `
        SELECT `+videoWithOwnerColumns+`
        FROM videos v
        JOIN accounts a ON a.id = v.owner_id
        WHERE v.owner_id = $1
        ORDER BY v.created_at DESC, v.id DESC
    `, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// ChannelStats computes every aggregate in a single round trip. Each sub-select yields zero
// rather than NULL when nothing matches.
func (r *PostgresVideoRepository) ChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error) {
	var stats models.ChannelStats
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM videos WHERE owner_id = $1),
            (SELECT COALESCE(SUM(views), 0)::BIGINT FROM videos WHERE owner_id = $1),
            (SELECT COUNT(*) FROM likes l JOIN videos v ON v.id = l.target_id
                WHERE l.target_kind = 'video' AND v.owner_id = $1),
            (SELECT COUNT(*) FROM comments c JOIN videos v ON v.id = c.video_id WHERE v.owner_id = $1),
            (SELECT COUNT(*) FROM tweets WHERE owner_id = $1),
            (SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1),
            (SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1)
    `, ownerID).Scan(&stats.TotalVideos, &stats.TotalViews, &stats.TotalLikes, &stats.TotalComments,
			&stats.TotalTweets, &stats.SubscribersCount, &stats.SubscribedToCount)
		return translate("select channel stats", err)
	})
	if err != nil {
		return models.ChannelStats{}, err
	}
	return stats, nil
}

// RecordView bumps the view counter and appends to watch history in one transaction. Dedup
// leaves gaps in positions, so the limit keeps the newest rows by count.
func (r *PostgresVideoRepository) RecordView(ctx context.Context, accountID, videoID string, policy HistoryPolicy, at time.Time) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return inSerializableTx(ctx, conn, "record view", func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, videoID)
			if err != nil {
				return translate("increment video views", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}

			if policy.Dedup {
				if _, err := tx.Exec(ctx, `DELETE FROM watch_history WHERE account_id = $1 AND video_id = $2`, accountID, videoID); err != nil {
					return translate("dedup watch history", err)
				}
			}

			if _, err := tx.Exec(ctx, `
        INSERT INTO watch_history (account_id, position, video_id, watched_at)
        SELECT $1, COALESCE(MAX(position), 0) + 1, $2, $3
        FROM watch_history
        WHERE account_id = $1
    `, accountID, videoID, at); err != nil {
				if isUniqueViolation(err) {
					return errRetryTx
				}
				return translate("append watch history", err)
			}

			if policy.Limit > 0 {
				if _, err := tx.Exec(ctx, `
        DELETE FROM watch_history
        WHERE account_id = $1
          AND position NOT IN (
              SELECT position FROM watch_history
              WHERE account_id = $1
              ORDER BY position DESC
              LIMIT $2
          )
    `, accountID, policy.Limit); err != nil {
					return translate("trim watch history", err)
				}
			}
			return nil
		})
	})
}

// WatchHistory returns the account's watched videos in append order.
func (r *PostgresVideoRepository) WatchHistory(ctx context.Context, accountID string) ([]models.Video, error) {
	var videos []models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		videos, err = queryVideos(ctx, conn, "select watch history", `
        SELECT `+videoWithOwnerColumns+`
        FROM watch_history h
        JOIN videos v ON v.id = h.video_id
        JOIN accounts a ON a.id = v.owner_id
        WHERE h.account_id = $1
        ORDER BY h.position ASC
    `, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// PostgresContentRepository persists comments, tweets and playlists.
type PostgresContentRepository struct {
	pgBase
}

// NewPostgresContentRepository constructs a content repository backed by PostgreSQL.
func NewPostgresContentRepository(pool db.Pool, timeout time.Duration) *PostgresContentRepository {
	return &PostgresContentRepository{pgBase: newPGBase(pool, timeout)}
}

// CreateComment stores a comment on a video.
func (r *PostgresContentRepository) CreateComment(ctx context.Context, comment models.Comment) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO comments (id, video_id, owner_id, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, comment.ID, comment.VideoID, comment.OwnerID, comment.Content, comment.CreatedAt)
		return translate("insert comment", err)
	})
}

// CreateTweet stores a tweet.
func (r *PostgresContentRepository) CreateTweet(ctx context.Context, tweet models.Tweet) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO tweets (id, owner_id, content, created_at)
        VALUES ($1, $2, $3, $4)
    `, tweet.ID, tweet.OwnerID, tweet.Content, tweet.CreatedAt)
		return translate("insert tweet", err)
	})
}

// ListComments returns a video's comments, oldest first.
func (r *PostgresContentRepository) ListComments(ctx context.Context, videoID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
        SELECT id, video_id, owner_id, content, created_at
        FROM comments
        WHERE video_id = $1
        ORDER BY created_at ASC, id ASC
    `, videoID)
		if err != nil {
			return translate("list comments", err)
		}
		defer rows.Close()

		for rows.Next() {
			var comment models.Comment
			if err := rows.Scan(&comment.ID, &comment.VideoID, &comment.OwnerID, &comment.Content, &comment.CreatedAt); err != nil {
				return fmt.Errorf("scan comment: %w", err)
			}
			comments = append(comments, comment)
		}
		return translate("list comments", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// ListTweets returns an account's tweets, newest first.
func (r *PostgresContentRepository) ListTweets(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	tweets := []models.Tweet{}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
        SELECT id, owner_id, content, created_at
        FROM tweets
        WHERE owner_id = $1
        ORDER BY created_at DESC, id DESC
    `, ownerID)
		if err != nil {
			return translate("list tweets", err)
		}
		defer rows.Close()

		for rows.Next() {
			var tweet models.Tweet
			if err := rows.Scan(&tweet.ID, &tweet.OwnerID, &tweet.Content, &tweet.CreatedAt); err != nil {
				return fmt.Errorf("scan tweet: %w", err)
			}
			tweets = append(tweets, tweet)
		}
		return translate("list tweets", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return tweets, nil
}

// CreatePlaylist stores an empty playlist.
func (r *PostgresContentRepository) CreatePlaylist(ctx context.Context, playlist models.Playlist) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO playlists (id, owner_id, name, description, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description, playlist.CreatedAt)
		return translate("insert playlist", err)
	})
}

const playlistSelect = `
        SELECT p.id, p.owner_id, p.name, p.description, p.created_at,
            COALESCE(ARRAY_AGG(pv.video_id ORDER BY pv.position) FILTER (WHERE pv.video_id IS NOT NULL), '{}')
        FROM playlists p
        LEFT JOIN playlist_videos pv ON pv.playlist_id = p.id`

func scanPlaylist(row scanner) (models.Playlist, error) {
	var playlist models.Playlist
	err := row.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description, &playlist.CreatedAt, &playlist.VideoIDs)
	return playlist, err
}

// FindPlaylist fetches a playlist with its videos in insertion order.
func (r *PostgresContentRepository) FindPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		playlist, err = scanPlaylist(conn.QueryRow(ctx, playlistSelect+`
        WHERE p.id = $1
        GROUP BY p.id, p.owner_id, p.name, p.description, p.created_at
    `, id))
		return translate("find playlist", err)
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// ListPlaylists returns an account's playlists, newest first.
func (r *PostgresContentRepository) ListPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	playlists := []models.Playlist{}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, playlistSelect+`
        WHERE p.owner_id = $1
        GROUP BY p.id, p.owner_id, p.name, p.description, p.created_at
        ORDER BY p.created_at DESC, p.id DESC
    `, ownerID)
		if err != nil {
			return translate("list playlists", err)
		}
		defer rows.Close()

		for rows.Next() {
			playlist, err := scanPlaylist(rows)
			if err != nil {
				return fmt.Errorf("scan playlist: %w", err)
			}
			playlists = append(playlists, playlist)
		}
		return translate("list playlists", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

// AddPlaylistVideo appends a video after the playlist's current last position. Missing playlists
// or videos surface as ErrNotFound through their foreign keys.
func (r *PostgresContentRepository) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return inSerializableTx(ctx, conn, "add playlist video", func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
            INSERT INTO playlist_videos (playlist_id, video_id, position)
            SELECT $1, $2, COALESCE(MAX(position), 0) + 1
            FROM playlist_videos
            WHERE playlist_id = $1
        `, playlistID, videoID)
			return translate("insert playlist video", err)
		})
	})
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ HistoryRepository = (*PostgresVideoRepository)(nil)
var _ ContentRepository = (*PostgresContentRepository)(nil)
