// Package loantest provides an in-memory loan store for tests.
package loantest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-library/internal/loan/entity"
)

// MemStore satisfies loan.Store without a database.
type MemStore struct {
	mu    sync.Mutex
	loans map[int64]*entity.Loan
	seq   int
	order map[int64]int
	// People maps person ids to {first, last, email}. Loans for unknown
	// people fail like the foreign key would.
	People map[string][3]string
	// Items maps item ids to {title, author}.
	Items map[int64][2]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		loans:  make(map[int64]*entity.Loan),
		order:  make(map[int64]int),
		People: make(map[string][3]string),
		Items:  make(map[int64][2]string),
	}
}

func (m *MemStore) Create(_ context.Context, l *entity.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.People[l.PersonID]; !ok {
		return &pq.Error{Code: "23503", Message: "person missing"}
	}
	l.CreatedAt = time.Now()
	cp := *l
	m.loans[l.ID] = &cp
	m.seq++
	m.order[l.ID] = m.seq
	return nil
}

func (m *MemStore) Get(_ context.Context, id int64) (*entity.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *l
	return &cp, nil
}

func (m *MemStore) views(keep func(*entity.Loan) bool) []*entity.View {
	out := []*entity.View{}
	for _, l := range m.loans {
		if !keep(l) {
			continue
		}
		p, it := m.People[l.PersonID], m.Items[l.ItemID]
		out = append(out, &entity.View{
			Loan:            *l,
			PersonFirstName: p[0],
			PersonLastName:  p[1],
			PersonEmail:     p[2],
			ItemTitle:       it[0],
			ItemAuthor:      it[1],
		})
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] > m.order[out[j].ID] })
	return out
}

func (m *MemStore) List(_ context.Context) ([]*entity.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views(func(*entity.Loan) bool { return true }), nil
}

func (m *MemStore) ListByPerson(_ context.Context, personID string) ([]*entity.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views(func(l *entity.Loan) bool { return l.PersonID == personID }), nil
}

func (m *MemStore) MarkReturned(_ context.Context, id int64, endDate string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok || l.EndDate != nil {
		return 0, nil
	}
	if endDate < l.StartDate {
		return 0, &pq.Error{Code: "23514", Message: "loans_end_after_start"}
	}
	l.EndDate = &endDate
	return 1, nil
}
