package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library/internal/loan/entity"
)

// LoanRepo provides data access for the loans table.
type LoanRepo struct {
	db *sqlx.DB
}

func NewLoanRepo(db *sqlx.DB) *LoanRepo { return &LoanRepo{db: db} }

// EnsureTable creates the loans table. It must run after people and catalog_items.
func (r *LoanRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS loans (
  id BIGINT PRIMARY KEY,
  person_id TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
  item_id BIGINT NOT NULL REFERENCES catalog_items(id) ON DELETE RESTRICT,
  start_date DATE NOT NULL,
  end_date DATE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT loans_end_after_start CHECK (end_date IS NULL OR end_date >= start_date)
);
CREATE INDEX IF NOT EXISTS idx_loans_person ON loans(person_id);
CREATE INDEX IF NOT EXISTS idx_loans_item ON loans(item_id);
CREATE INDEX IF NOT EXISTS idx_loans_open ON loans(item_id) WHERE end_date IS NULL;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const loanColumns = `l.id, l.person_id, l.item_id,
	to_char(l.start_date, 'YYYY-MM-DD') AS start_date,
	to_char(l.end_date, 'YYYY-MM-DD') AS end_date,
	l.created_at`

const viewQuery = `SELECT ` + loanColumns + `,
	COALESCE(p.first_name, '') AS person_first_name,
	COALESCE(p.last_name, '') AS person_last_name,
	COALESCE(p.email, '') AS person_email,
	COALESCE(i.title, '') AS item_title,
	COALESCE(i.author, '') AS item_author
FROM loans l
LEFT JOIN people p ON p.id = l.person_id
LEFT JOIN catalog_items i ON i.id = l.item_id`

func (r *LoanRepo) Create(ctx context.Context, l *entity.Loan) error {
	const q = `INSERT INTO loans (id, person_id, item_id, start_date, end_date)
		VALUES (:id, :person_id, :item_id, :start_date, :end_date)
		RETURNING created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, l)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&l.CreatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Get returns the loan with id or sql.ErrNoRows.
func (r *LoanRepo) Get(ctx context.Context, id int64) (*entity.Loan, error) {
	var l entity.Loan
	if err := r.db.GetContext(ctx, &l, `SELECT `+loanColumns+` FROM loans l WHERE l.id=$1`, id); err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns every loan, newest first.
func (r *LoanRepo) List(ctx context.Context) ([]*entity.View, error) {
	out := []*entity.View{}
	err := r.db.SelectContext(ctx, &out, viewQuery+` ORDER BY l.created_at DESC, l.id DESC`)
	return out, err
}

// ListByPerson returns one person's loans, newest first.
func (r *LoanRepo) ListByPerson(ctx context.Context, personID string) ([]*entity.View, error) {
	out := []*entity.View{}
	err := r.db.SelectContext(ctx, &out, viewQuery+` WHERE l.person_id=$1 ORDER BY l.created_at DESC, l.id DESC`, personID)
	return out, err
}

// MarkReturned sets the end date of an open loan. Returns affected rows.
func (r *LoanRepo) MarkReturned(ctx context.Context, id int64, endDate string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE loans SET end_date=$2 WHERE id=$1 AND end_date IS NULL`, id, endDate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
