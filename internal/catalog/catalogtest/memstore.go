// Package catalogtest provides an in-memory item store for tests.
package catalogtest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog/entity"
)

// MemStore satisfies catalog.Store without a database.
type MemStore struct {
	mu    sync.Mutex
	items map[int64]*entity.Item
	// Referenced marks items that loans point at; deleting them fails like the foreign key would.
	Referenced map[int64]bool
}

func NewMemStore() *MemStore {
	return &MemStore{items: make(map[int64]*entity.Item), Referenced: make(map[int64]bool)}
}

// Put stores it as-is.
func (m *MemStore) Put(it *entity.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	m.items[it.ID] = &cp
}

func (m *MemStore) sorted(keep func(*entity.Item) bool) []*entity.Item {
	out := []*entity.Item{}
	for _, it := range m.items {
		if keep(it) {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemStore) List(_ context.Context) ([]*entity.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(*entity.Item) bool { return true }), nil
}

func (m *MemStore) ListAvailable(_ context.Context) ([]*entity.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(it *entity.Item) bool { return it.Available }), nil
}

func (m *MemStore) Get(_ context.Context, id int64) (*entity.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *it
	return &cp, nil
}

func (m *MemStore) Categories(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, it := range m.items {
		if it.Category != "" && !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemStore) Create(_ context.Context, it *entity.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it.CreatedAt = time.Now()
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *MemStore) Update(_ context.Context, it *entity.Item) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[it.ID]
	if !ok {
		return 0, nil
	}
	cp := *it
	cp.CreatedAt = existing.CreatedAt
	m.items[it.ID] = &cp
	return 1, nil
}

func (m *MemStore) Delete(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Referenced[id] {
		return 0, &pq.Error{Code: "23503", Message: "loans reference item"}
	}
	if _, ok := m.items[id]; !ok {
		return 0, nil
	}
	delete(m.items, id)
	return 1, nil
}

func (m *MemStore) SetAvailable(_ context.Context, id int64, available bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return 0, nil
	}
	it.Available = available
	return 1, nil
}

func (m *MemStore) Claim(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || !it.Available {
		return 0, nil
	}
	it.Available = false
	return 1, nil
}

func (m *MemStore) SetCover(_ context.Context, id int64, url string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return 0, nil
	}
	it.CoverURL = &url
	return 1, nil
}
