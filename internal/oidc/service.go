package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-library/internal/account/entity"
)

var ErrInvalidToken = errors.New("invalid token")

// RefreshStore persists refresh sessions keyed by token digest; *repo.RefreshRepo satisfies it.
type RefreshStore interface {
	Save(ctx context.Context, digest string, accountID string, clientID string, expiresAt time.Time) (int64, error)
	Get(ctx context.Context, digest string) (int64, string, string, time.Time, error)
	Delete(ctx context.Context, digest string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Config controls token lifetimes and the signing key.
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// KeyFile is a PEM encoded RSA private key. Empty means a fresh key per process.
	KeyFile string
}

// OIDCService manages the signing key and token issuance.
type OIDCService struct {
	key     *rsa.PrivateKey
	kid     string
	cfg     Config
	refresh RefreshStore
	now     func() time.Time
}

type accessClaims struct {
	Email   string `json:"email"`
	Version int64  `json:"v"`
	jwt.RegisteredClaims
}

func NewOIDCService(store RefreshStore, cfg Config) (*OIDCService, error) {
	k, err := loadKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	// kid is base64 of a SHA256 prefix of the modulus
	h := sha256.Sum256(k.PublicKey.N.Bytes())
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	return &OIDCService{key: k, kid: kid, cfg: cfg, refresh: store, now: time.Now}, nil
}

func loadKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	k, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return k, nil
}

// JWKS returns a minimal JWKS containing the public key.
func (s *OIDCService) JWKS() map[string]any {
	pub := s.key.PublicKey
	jwk := map[string]any{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": s.kid,
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(new(big.Int).SetInt64(int64(pub.E)).Bytes()),
	}
	return map[string]any{"keys": []any{jwk}}
}

// Issue creates an access token and a persisted opaque refresh token.
func (s *OIDCService) Issue(ctx context.Context, v *entity.MinimalAuthView, clientID string) (*TokenPair, error) {
	now := s.now()
	claims := accessClaims{
		Email:   v.Email,
		Version: v.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   v.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rtBytes := make([]byte, 32)
	if _, err := rand.Read(rtBytes); err != nil {
		return nil, err
	}
	refresh := base64.RawURLEncoding.EncodeToString(rtBytes)
	if _, err := s.refresh.Save(ctx, digest(refresh), v.ID, clientID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return nil, fmt.Errorf("save refresh session: %w", err)
	}
	return &TokenPair{
		AccessToken:  signed,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, nil
}

// VerifyAccess checks signature, issuer and expiry of an access token.
func (s *OIDCService) VerifyAccess(token string) (*Claims, error) {
	var c accessClaims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{AccountID: c.Subject, Email: c.Email, Version: c.Version}, nil
}

// ValidateRefreshToken checks an opaque refresh token and returns the session if valid.
func (s *OIDCService) ValidateRefreshToken(ctx context.Context, token string) (*RefreshSession, bool) {
	id, accountID, clientID, expiresAt, err := s.refresh.Get(ctx, digest(token))
	if err != nil {
		return nil, false
	}
	if expiresAt.Before(s.now()) {
		return nil, false
	}
	return &RefreshSession{ID: id, AccountID: accountID, ClientID: clientID, ExpiresAt: expiresAt}, true
}

// RevokeRefreshToken removes a refresh token from store. It reports false
// when the token was already gone, so only one caller can consume a token.
func (s *OIDCService) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	n, err := s.refresh.Delete(ctx, digest(token))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PruneExpired removes stale refresh sessions.
func (s *OIDCService) PruneExpired(ctx context.Context) (int64, error) {
	return s.refresh.DeleteExpired(ctx, s.now())
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
