package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library/internal/account/entity"
)

// AccountRepo provides data access for the accounts table using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, email, provider, subject, password_hash, password_algo, password_updated_at,
	status, login_failed_attempts, locked_until, last_login_at, version, created_at, updated_at`

// EnsureTable creates the accounts table if not exists (idempotent).
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  email CITEXT NOT NULL UNIQUE,
  provider TEXT NOT NULL DEFAULT 'password',
  subject TEXT UNIQUE,
  password_hash TEXT,
  password_algo TEXT,
  password_updated_at TIMESTAMPTZ,
  status TEXT NOT NULL DEFAULT 'active',
  login_failed_attempts INT NOT NULL DEFAULT 0,
  locked_until TIMESTAMPTZ,
  last_login_at TIMESTAMPTZ,
  version BIGINT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_provider ON accounts(provider);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO accounts (id, email, provider, subject, password_hash, password_algo, password_updated_at, status, version)
		VALUES (:id, :email, :provider, :subject, :password_hash, :password_algo, :password_updated_at, :status, :version)
		RETURNING created_at, updated_at`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(&a.CreatedAt, &a.UpdatedAt)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return errors.New("no row returned")
}

// GetByEmail returns an account matched by email (case-insensitive due to citext) or sql.ErrNoRows.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	var a entity.Account
	if err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE email=$1`, email); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetBySubject fetches the account linked to an identity-provider subject.
func (r *AccountRepo) GetBySubject(ctx context.Context, subject string) (*entity.Account, error) {
	var a entity.Account
	if err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE subject=$1`, subject); err != nil {
		return nil, err
	}
	return &a, nil
}

// LinkSubject attaches an identity-provider subject to an existing account.
func (r *AccountRepo) LinkSubject(ctx context.Context, id, subject string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET subject=$2, updated_at=NOW() WHERE id=$1`, id, subject)
	return err
}

// GetMinimalAuthView returns only the fields needed for token claim hydration.
func (r *AccountRepo) GetMinimalAuthView(ctx context.Context, id string) (*entity.MinimalAuthView, error) {
	var v entity.MinimalAuthView
	if err := r.db.GetContext(ctx, &v, `SELECT id, email, version FROM accounts WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &v, nil
}

// IncrementFailedLogin increments the failure counter atomically and returns new value.
func (r *AccountRepo) IncrementFailedLogin(ctx context.Context, id string) (int, error) {
	const q = `UPDATE accounts SET login_failed_attempts = login_failed_attempts + 1, updated_at=NOW() WHERE id=$1 RETURNING login_failed_attempts`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold locks the account if attempts >= threshold and currently active.
func (r *AccountRepo) LockIfThreshold(ctx context.Context, id string, threshold int, lockMinutes int) (bool, error) {
	const q = `UPDATE accounts SET status='locked', locked_until = NOW() + make_interval(mins => $2), updated_at=NOW()
              WHERE id=$1 AND status='active' AND login_failed_attempts >= $3 RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, lockMinutes, threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResetLoginSuccess resets failure metrics on successful authentication.
func (r *AccountRepo) ResetLoginSuccess(ctx context.Context, id string) error {
	const q = `UPDATE accounts SET login_failed_attempts=0, last_login_at=NOW(), locked_until=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// BumpVersion increments version for token invalidation.
func (r *AccountRepo) BumpVersion(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET version = version + 1, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	return err
}

// UnlockIfExpired sets status back to active if locked_until passed.
func (r *AccountRepo) UnlockIfExpired(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE accounts SET status='active', locked_until=NULL, updated_at=NOW()
               WHERE id=$1 AND status='locked' AND locked_until IS NOT NULL AND locked_until < NOW() RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
