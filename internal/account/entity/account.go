package entity

import "time"

// Provider values for Account.Provider.
const (
	ProviderPassword = "password"
	ProviderSSO      = "sso"
)

// Account is a sign-in identity row in the `accounts` table. The profile
// data lives in `people`, keyed by the same ID.
type Account struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	Provider            string     `db:"provider"`
	Subject             *string    `db:"subject"`
	PasswordHash        *string    `db:"password_hash"`
	PasswordAlgo        *string    `db:"password_algo"`
	PasswordUpdatedAt   *time.Time `db:"password_updated_at"`
	Status              string     `db:"status"` // active / locked / disabled
	LoginFailedAttempts int        `db:"login_failed_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	Version             int64      `db:"version"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// MinimalAuthView is the minimal projection required for token claim hydration.
type MinimalAuthView struct {
	ID      string `db:"id"`
	Email   string `db:"email"`
	Version int64  `db:"version"`
}
