package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-library/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-library/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", b.cost()), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return c < b.cost()
}

// Store is the persistence the account service needs; *repo.AccountRepo satisfies it.
type Store interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetBySubject(ctx context.Context, subject string) (*entity.Account, error)
	LinkSubject(ctx context.Context, id, subject string) error
	GetMinimalAuthView(ctx context.Context, id string) (*entity.MinimalAuthView, error)
	IncrementFailedLogin(ctx context.Context, id string) (int, error)
	LockIfThreshold(ctx context.Context, id string, threshold int, lockMinutes int) (bool, error)
	ResetLoginSuccess(ctx context.Context, id string) error
	BumpVersion(ctx context.Context, id string) error
	UnlockIfExpired(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Service orchestrates credential checks and account lifecycle flows.
type Service struct {
	store  Store
	hasher PasswordHasher
	// configuration knobs
	MaxFailed   int
	LockMinutes int
}

func NewService(store Store, hasher PasswordHasher) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{store: store, hasher: hasher, MaxFailed: 6, LockMinutes: 15}
}

var (
	ErrNotFound       = errors.New("account not found")
	ErrLocked         = errors.New("account locked")
	ErrDisabled       = errors.New("account disabled")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrEmailTaken     = errors.New("email already registered")
)

// AuthenticatePassword performs password authentication by email.
// On success resets counters and returns the minimal auth view.
func (s *Service) AuthenticatePassword(ctx context.Context, email, password string) (*entity.MinimalAuthView, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrBadCredentials
	}
	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		} // avoid account enumeration
		return nil, err
	}

	// Expired lock auto-unlock attempt
	if a.Status == "locked" && a.LockedUntil != nil && a.LockedUntil.Before(time.Now()) {
		if unlocked, _ := s.store.UnlockIfExpired(ctx, a.ID); unlocked {
			a.Status = "active"
			a.LockedUntil = nil
		}
	}
	switch a.Status {
	case "locked":
		return nil, ErrLocked
	case "disabled":
		return nil, ErrDisabled
	}
	if a.PasswordHash == nil || *a.PasswordHash == "" {
		return nil, ErrBadCredentials
	}

	if !s.hasher.Verify(*a.PasswordHash, password) {
		if _, incErr := s.store.IncrementFailedLogin(ctx, a.ID); incErr == nil {
			_, _ = s.store.LockIfThreshold(ctx, a.ID, s.MaxFailed, s.LockMinutes)
		}
		return nil, ErrBadCredentials
	}
	if err := s.store.ResetLoginSuccess(ctx, a.ID); err != nil {
		return nil, err
	}
	return &entity.MinimalAuthView{ID: a.ID, Email: a.Email, Version: a.Version}, nil
}

// Signup creates a password account. Input validation happens in the caller.
func (s *Service) Signup(ctx context.Context, email, password string) (*entity.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email required")
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	a := &entity.Account{
		ID:                utilities.NewUUID(),
		Email:             email,
		Provider:          entity.ProviderPassword,
		PasswordHash:      &hash,
		PasswordAlgo:      &algo,
		PasswordUpdatedAt: &now,
		Status:            "active",
		Version:           1,
	}
	if err := s.store.Create(ctx, a); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// FindOrCreateSSO resolves the account for an identity-provider subject. An
// existing password account with the same email is linked rather than duplicated.
func (s *Service) FindOrCreateSSO(ctx context.Context, subject, email string) (*entity.Account, bool, error) {
	if subject == "" {
		return nil, false, errors.New("missing subject")
	}
	a, err := s.store.GetBySubject(ctx, subject)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	email = normalizeEmail(email)
	if email != "" {
		existing, err := s.store.GetByEmail(ctx, email)
		if err == nil {
			if err := s.store.LinkSubject(ctx, existing.ID, subject); err != nil {
				return nil, false, fmt.Errorf("link subject: %w", err)
			}
			existing.Subject = &subject
			return existing, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
	}
	a = &entity.Account{
		ID:       utilities.NewUUID(),
		Email:    email,
		Provider: entity.ProviderSSO,
		Subject:  &subject,
		Status:   "active",
		Version:  1,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("create sso account: %w", err)
	}
	return a, true, nil
}

// Discard removes an account whose signup could not be completed.
func (s *Service) Discard(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// BumpVersion invalidates outstanding access tokens and returns the new version.
func (s *Service) BumpVersion(ctx context.Context, id string) (int64, error) {
	if err := s.store.BumpVersion(ctx, id); err != nil {
		return 0, err
	}
	v, err := s.GetMinimalAuthView(ctx, id)
	if err != nil {
		return 0, err
	}
	return v.Version, nil
}

// GetMinimalAuthView retrieves the minimal projection for an account by ID.
func (s *Service) GetMinimalAuthView(ctx context.Context, id string) (*entity.MinimalAuthView, error) {
	v, err := s.store.GetMinimalAuthView(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
