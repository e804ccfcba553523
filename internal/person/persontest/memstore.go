// Package persontest provides an in-memory people store for tests.
package persontest

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
)

// MemStore satisfies person.Store without a database.
type MemStore struct {
	mu   sync.Mutex
	byID map[string]*entity.Person
	// GetCalls counts Get invocations, for polling assertions.
	GetCalls int
	// OnGet runs before every Get while the lock is not held.
	OnGet func(id string, call int)
}

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]*entity.Person)}
}

// Put stores p as-is.
func (m *MemStore) Put(p *entity.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.byID[p.ID] = &cp
}

func (m *MemStore) Get(_ context.Context, id string) (*entity.Person, error) {
	m.mu.Lock()
	m.GetCalls++
	call, hook := m.GetCalls, m.OnGet
	m.mu.Unlock()
	if hook != nil {
		hook(id, call)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) List(_ context.Context) ([]*entity.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Person, 0, len(m.byID))
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) InsertIfAbsent(_ context.Context, p *entity.Person) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; ok {
		return false, nil
	}
	cp := *p
	cp.CreatedAt = time.Now()
	m.byID[p.ID] = &cp
	return true, nil
}

func (m *MemStore) Upsert(_ context.Context, p *entity.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if existing, ok := m.byID[p.ID]; ok {
		cp.IsAdmin = existing.IsAdmin
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = time.Now()
	}
	m.byID[p.ID] = &cp
	return nil
}

func (m *MemStore) UpdateProfile(_ context.Context, id, firstName, lastName, gender string, age int) (int64, error) {
	return m.update(id, func(p *entity.Person) {
		p.FirstName, p.LastName, p.Gender, p.Age = firstName, lastName, gender, age
	}), nil
}

func (m *MemStore) Update(_ context.Context, in *entity.Person) (int64, error) {
	return m.update(in.ID, func(p *entity.Person) {
		created := p.CreatedAt
		*p = *in
		p.CreatedAt = created
	}), nil
}

func (m *MemStore) SetAdmin(_ context.Context, id string, admin bool) (int64, error) {
	return m.update(id, func(p *entity.Person) { p.IsAdmin = admin }), nil
}

func (m *MemStore) SetAdminByEmail(_ context.Context, email string, admin bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.byID {
		if strings.EqualFold(p.Email, email) {
			p.IsAdmin = admin
			n++
		}
	}
	return n, nil
}

func (m *MemStore) Delete(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return 0, nil
	}
	delete(m.byID, id)
	return 1, nil
}

func (m *MemStore) update(id string, fn func(*entity.Person)) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return 0
	}
	fn(p)
	return 1
}
