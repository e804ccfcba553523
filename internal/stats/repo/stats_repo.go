package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library/internal/stats/entity"
)

// Counter names one of the scalar counts.
type Counter string

const (
	CountItems          Counter = "items"
	CountAvailableItems Counter = "available_items"
	CountPeople         Counter = "people"
	CountOpenLoans      Counter = "open_loans"
	CountLoans          Counter = "loans"
)

var countQueries = map[Counter]string{
	CountItems:          `SELECT COUNT(*) FROM catalog_items`,
	CountAvailableItems: `SELECT COUNT(*) FROM catalog_items WHERE available`,
	CountPeople:         `SELECT COUNT(*) FROM people`,
	CountOpenLoans:      `SELECT COUNT(*) FROM loans WHERE end_date IS NULL`,
	CountLoans:          `SELECT COUNT(*) FROM loans`,
}

// StatsRepo runs read-only aggregate queries over the library tables.
type StatsRepo struct {
	db *sqlx.DB
}

func NewStatsRepo(db *sqlx.DB) *StatsRepo { return &StatsRepo{db: db} }

func (r *StatsRepo) Count(ctx context.Context, c Counter) (int64, error) {
	q, ok := countQueries[c]
	if !ok {
		return 0, fmt.Errorf("unknown counter %q", c)
	}
	var n int64
	if err := r.db.GetContext(ctx, &n, q); err != nil {
		return 0, err
	}
	return n, nil
}

// LoansByCategory returns the categories with the most loans, largest first.
func (r *StatsRepo) LoansByCategory(ctx context.Context, limit int) ([]entity.Tally, error) {
	const q = `SELECT i.category AS label, COUNT(*) AS count
		FROM loans l JOIN catalog_items i ON i.id = l.item_id
		GROUP BY i.category
		ORDER BY count DESC, label
		LIMIT $1`
	out := []entity.Tally{}
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// LoansByGender counts loans per borrower gender. Blank genders count as Other.
func (r *StatsRepo) LoansByGender(ctx context.Context) ([]entity.Tally, error) {
	const q = `SELECT COALESCE(NULLIF(p.gender, ''), 'Other') AS label, COUNT(*) AS count
		FROM loans l JOIN people p ON p.id = l.person_id
		GROUP BY 1
		ORDER BY count DESC, label`
	out := []entity.Tally{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// TopItems returns the most borrowed items, largest first.
func (r *StatsRepo) TopItems(ctx context.Context, limit int) ([]entity.ItemTally, error) {
	const q = `SELECT i.id AS item_id, i.title, i.author, COUNT(*) AS count
		FROM loans l JOIN catalog_items i ON i.id = l.item_id
		GROUP BY i.id, i.title, i.author
		ORDER BY count DESC, i.title
		LIMIT $1`
	out := []entity.ItemTally{}
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}
