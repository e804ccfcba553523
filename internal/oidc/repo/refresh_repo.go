package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RefreshRepo persists refresh sessions. Tokens are stored as SHA-256 digests.
type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db}
}

// EnsureTable creates the refresh session table if not exists.
func (r *RefreshRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS refresh_sessions (
  token_digest TEXT PRIMARY KEY,
  id BIGSERIAL,
  account_id TEXT NOT NULL,
  client_id TEXT NOT NULL DEFAULT '',
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refresh_sessions_account ON refresh_sessions(account_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *RefreshRepo) Save(ctx context.Context, digest string, accountID string, clientID string, expiresAt time.Time) (int64, error) {
	query := `INSERT INTO refresh_sessions (token_digest, account_id, client_id, expires_at) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	row := r.db.QueryRowxContext(ctx, query, digest, accountID, clientID, expiresAt)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RefreshRepo) Get(ctx context.Context, digest string) (int64, string, string, time.Time, error) {
	var id int64
	var accountID, clientID string
	var expiresAt time.Time
	query := `SELECT id, account_id, client_id, expires_at FROM refresh_sessions WHERE token_digest = $1`
	row := r.db.QueryRowxContext(ctx, query, digest)
	if err := row.Scan(&id, &accountID, &clientID, &expiresAt); err != nil {
		return 0, "", "", time.Time{}, err
	}
	return id, accountID, clientID, expiresAt, nil
}

// Delete removes the session stored under digest and reports how many rows went.
func (r *RefreshRepo) Delete(ctx context.Context, digest string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_digest = $1`, digest)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired drops sessions past their expiry and returns how many went.
func (r *RefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
