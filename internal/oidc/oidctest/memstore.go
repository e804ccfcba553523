// Package oidctest provides an in-memory refresh session store for tests.
package oidctest

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

type row struct {
	id        int64
	accountID string
	clientID  string
	expiresAt time.Time
}

// MemRefresh satisfies oidc.RefreshStore without a database.
type MemRefresh struct {
	mu   sync.Mutex
	next int64
	rows map[string]row
}

func NewMemRefresh() *MemRefresh {
	return &MemRefresh{rows: make(map[string]row)}
}

func (m *MemRefresh) Save(_ context.Context, digest, accountID, clientID string, expiresAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.rows[digest] = row{id: m.next, accountID: accountID, clientID: clientID, expiresAt: expiresAt}
	return m.next, nil
}

func (m *MemRefresh) Get(_ context.Context, digest string) (int64, string, string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[digest]
	if !ok {
		return 0, "", "", time.Time{}, sql.ErrNoRows
	}
	return r.id, r.accountID, r.clientID, r.expiresAt, nil
}

func (m *MemRefresh) Delete(_ context.Context, digest string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[digest]; !ok {
		return 0, nil
	}
	delete(m.rows, digest)
	return 1, nil
}

func (m *MemRefresh) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, r := range m.rows {
		if r.expiresAt.Before(now) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

// Has reports whether a row is stored under key.
func (m *MemRefresh) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[key]
	return ok
}

// Len returns the number of stored sessions.
func (m *MemRefresh) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
