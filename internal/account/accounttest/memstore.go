// Package accounttest provides an in-memory account store for tests.
package accounttest

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-library/internal/account/entity"
)

// MemStore satisfies account.Store without a database.
type MemStore struct {
	mu   sync.Mutex
	byID map[string]*entity.Account
}

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]*entity.Account)}
}

func (m *MemStore) Create(_ context.Context, a *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == a.Email && a.Email != "" {
			return &pq.Error{Code: "23505", Message: "duplicate email"}
		}
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *MemStore) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MemStore) GetBySubject(_ context.Context, subject string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Subject != nil && *a.Subject == subject {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MemStore) LinkSubject(_ context.Context, id, subject string) error {
	return m.update(id, func(a *entity.Account) { a.Subject = &subject })
}

func (m *MemStore) GetMinimalAuthView(_ context.Context, id string) (*entity.MinimalAuthView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &entity.MinimalAuthView{ID: a.ID, Email: a.Email, Version: a.Version}, nil
}

func (m *MemStore) IncrementFailedLogin(_ context.Context, id string) (int, error) {
	var n int
	err := m.update(id, func(a *entity.Account) {
		a.LoginFailedAttempts++
		n = a.LoginFailedAttempts
	})
	return n, err
}

func (m *MemStore) LockIfThreshold(_ context.Context, id string, threshold int, lockMinutes int) (bool, error) {
	var locked bool
	err := m.update(id, func(a *entity.Account) {
		if a.Status == "active" && a.LoginFailedAttempts >= threshold {
			until := time.Now().Add(time.Duration(lockMinutes) * time.Minute)
			a.Status, a.LockedUntil, locked = "locked", &until, true
		}
	})
	return locked, err
}

func (m *MemStore) ResetLoginSuccess(_ context.Context, id string) error {
	return m.update(id, func(a *entity.Account) {
		now := time.Now()
		a.LoginFailedAttempts, a.LastLoginAt, a.LockedUntil = 0, &now, nil
	})
}

func (m *MemStore) BumpVersion(_ context.Context, id string) error {
	return m.update(id, func(a *entity.Account) { a.Version++ })
}

func (m *MemStore) UnlockIfExpired(_ context.Context, id string) (bool, error) {
	var unlocked bool
	err := m.update(id, func(a *entity.Account) {
		if a.Status == "locked" && a.LockedUntil != nil && a.LockedUntil.Before(time.Now()) {
			a.Status, a.LockedUntil, unlocked = "active", nil, true
		}
	})
	return unlocked, err
}

// Get returns a copy of the stored account for assertions.
func (m *MemStore) Get(id string) (*entity.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *MemStore) update(id string, fn func(*entity.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(a)
	a.UpdatedAt = time.Now()
	return nil
}
