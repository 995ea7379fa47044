package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

const (
	// DefaultQueryTimeout bounds every repository call when no explicit timeout is configured.
	DefaultQueryTimeout = 5 * time.Second

	txMaxAttempts = 3
	txBaseBackoff = 20 * time.Millisecond
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
}

// errRetryTx signals that a transaction lost a race and should be replayed from the start.
var errRetryTx = errors.New("transaction should be retried")

type scanner interface {
	Scan(dest ...any) error
}

// pgBase holds what every PostgreSQL repository needs: a pool and a per-call deadline.
type pgBase struct {
	pool    db.Pool
	timeout time.Duration
}

func newPGBase(pool db.Pool, timeout time.Duration) pgBase {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return pgBase{pool: pool, timeout: timeout}
}

// withConn acquires a pooled connection under the repository deadline and hands it to fn.
func (b pgBase) withConn(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w: %w", ErrUnavailable, err)
	}
	defer conn.Release()

	return fn(ctx, conn)
}

// inSerializableTx runs fn inside a SERIALIZABLE transaction, replaying it when the database
// reports a serialization failure or fn returns errRetryTx.
func inSerializableTx(ctx context.Context, conn *pgxpool.Conn, op string, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * txBaseBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, ctx.Err())
			case <-timer.C:
			}
		}

		tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return translate("begin "+op, err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetryTx(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetryTx(err) {
				lastErr = err
				continue
			}
			return translate("commit "+op, err)
		}
		return nil
	}

	return fmt.Errorf("%s: exceeded %d attempts: %w: %w", op, txMaxAttempts, ErrUnavailable, lastErr)
}

func shouldRetryTx(err error) bool {
	if errors.Is(err, errRetryTx) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// translate maps driver errors onto the repository sentinels. Errors that never reached the
// server (dial failures, deadlines, closed pools) are reported as ErrUnavailable.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pgBase
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool, timeout time.Duration) *PostgresAccountRepository {
	return &PostgresAccountRepository{pgBase: newPGBase(pool, timeout)}
}

const accountColumns = `id, handle, email, full_name, password_hash, avatar_url, cover_image_url,
        refresh_fingerprint, session_version, created_at, updated_at`

func scanAccount(row scanner) (models.Account, error) {
	var (
		account     models.Account
		fingerprint sql.NullString
	)
	err := row.Scan(&account.ID, &account.Handle, &account.Email, &account.FullName, &account.PasswordHash,
		&account.AvatarURL, &account.CoverImageURL, &fingerprint, &account.SessionVersion,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return models.Account{}, err
	}
	account.RefreshFingerprint = fingerprint.String
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

// Create persists a new account record.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO accounts (id, handle, email, full_name, password_hash, avatar_url, cover_image_url,
                              session_version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, account.ID, account.Handle, account.Email, account.FullName, account.PasswordHash, account.AvatarURL,
			account.CoverImageURL, account.SessionVersion, account.CreatedAt, account.UpdatedAt)
		return translate("insert account", err)
	})
}

// FindByID fetches an account by identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, "select account by id", `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// FindByHandle fetches an account by its normalized handle.
func (r *PostgresAccountRepository) FindByHandle(ctx context.Context, handle string) (models.Account, error) {
	return r.findOne(ctx, "select account by handle", `SELECT `+accountColumns+` FROM accounts WHERE handle = $1`, handle)
}

// FindByEmail fetches an account by its normalized email address.
func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, "select account by email", `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, op, query string, arg any) (models.Account, error) {
	var account models.Account
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		account, err = scanAccount(conn.QueryRow(ctx, query, arg))
		return translate(op, err)
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// UpdateProfile applies the non-nil fields of update and returns the stored record.
func (r *PostgresAccountRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (models.Account, error) {
	var account models.Account
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
        UPDATE accounts
        SET full_name = COALESCE($2, full_name),
            email = COALESCE($3, email),
            avatar_url = COALESCE($4, avatar_url),
            cover_image_url = COALESCE($5, cover_image_url),
            updated_at = $6
        WHERE id = $1
        RETURNING `+accountColumns,
			id, update.FullName, update.Email, update.AvatarURL, update.CoverImageURL, update.UpdatedAt)
		var err error
		account, err = scanAccount(row)
		return translate("update account profile", err)
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresAccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, hash, updatedAt)
		if err != nil {
			return translate("update password hash", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetRefreshFingerprint overwrites the stored refresh-token fingerprint.
func (r *PostgresAccountRepository) SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE accounts SET refresh_fingerprint = $2 WHERE id = $1`, id, fingerprint)
		if err != nil {
			return translate("set refresh fingerprint", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RotateRefreshFingerprint swaps expected for next in a single conditional update.
func (r *PostgresAccountRepository) RotateRefreshFingerprint(ctx context.Context, id, expected, next string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET refresh_fingerprint = $3
        WHERE id = $1 AND refresh_fingerprint = $2
    `, id, expected, next)
		if err != nil {
			return translate("rotate refresh fingerprint", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStale
		}
		return nil
	})
}

// ClearRefreshFingerprint drops the stored fingerprint and optionally bumps the session version.
func (r *PostgresAccountRepository) ClearRefreshFingerprint(ctx context.Context, id string, bumpSessionVersion bool) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET refresh_fingerprint = NULL,
            session_version = session_version + CASE WHEN $2 THEN 1 ELSE 0 END
        WHERE id = $1
    `, id, bumpSessionVersion)
		if err != nil {
			return translate("clear refresh fingerprint", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
