package oidc

import "time"

// RefreshSession represents a persisted refresh session.
type RefreshSession struct {
	ID        int64     `db:"id"`
	AccountID string    `db:"account_id"`
	ClientID  string    `db:"client_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// TokenPair is what a successful sign-in hands back to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims is the verified content of an access token.
type Claims struct {
	AccountID string
	Email     string
	Version   int64
}
