package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog/entity"
)

// ItemRepo provides data access for the catalog_items table.
type ItemRepo struct {
	db *sqlx.DB
}

func NewItemRepo(db *sqlx.DB) *ItemRepo { return &ItemRepo{db: db} }

const itemColumns = `id, title, author, year, category, isbn, available, cover_url, description, created_at`

// EnsureTable creates the catalog_items table and its indexes.
func (r *ItemRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS catalog_items (
  id BIGINT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL DEFAULT '',
  year INT NOT NULL DEFAULT 0,
  category TEXT NOT NULL DEFAULT '',
  isbn TEXT NOT NULL DEFAULT '',
  available BOOLEAN NOT NULL DEFAULT true,
  cover_url TEXT,
  description TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_catalog_items_title ON catalog_items(title);
CREATE INDEX IF NOT EXISTS idx_catalog_items_category ON catalog_items(category);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// List returns every item ordered by title.
func (r *ItemRepo) List(ctx context.Context) ([]*entity.Item, error) {
	out := []*entity.Item{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+itemColumns+` FROM catalog_items ORDER BY title, id`)
	return out, err
}

// ListAvailable returns the items that can be loaned, ordered by title.
func (r *ItemRepo) ListAvailable(ctx context.Context) ([]*entity.Item, error) {
	out := []*entity.Item{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+itemColumns+` FROM catalog_items WHERE available ORDER BY title, id`)
	return out, err
}

// Get returns the item with id or sql.ErrNoRows.
func (r *ItemRepo) Get(ctx context.Context, id int64) (*entity.Item, error) {
	var it entity.Item
	if err := r.db.GetContext(ctx, &it, `SELECT `+itemColumns+` FROM catalog_items WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &it, nil
}

// Categories returns the distinct non-empty categories in order.
func (r *ItemRepo) Categories(ctx context.Context) ([]string, error) {
	out := []string{}
	err := r.db.SelectContext(ctx, &out, `SELECT DISTINCT category FROM catalog_items WHERE category <> '' ORDER BY category`)
	return out, err
}

func (r *ItemRepo) Create(ctx context.Context, it *entity.Item) error {
	const q = `INSERT INTO catalog_items (id, title, author, year, category, isbn, available, cover_url, description)
		VALUES (:id, :title, :author, :year, :category, :isbn, :available, :cover_url, :description)
		RETURNING created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, it)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&it.CreatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Update overwrites the editable columns. Returns affected rows.
func (r *ItemRepo) Update(ctx context.Context, it *entity.Item) (int64, error) {
	const q = `UPDATE catalog_items SET title=:title, author=:author, year=:year, category=:category,
		isbn=:isbn, available=:available, cover_url=:cover_url, description=:description WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, it)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes an item. Fails with a foreign key violation while loans reference it.
func (r *ItemRepo) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAvailable writes the availability flag unconditionally. Returns affected rows.
func (r *ItemRepo) SetAvailable(ctx context.Context, id int64, available bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE catalog_items SET available=$2 WHERE id=$1`, id, available)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Claim flips an available item to unavailable. Zero affected rows means it
// was already out or does not exist.
func (r *ItemRepo) Claim(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE catalog_items SET available=false WHERE id=$1 AND available`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetCover stores the public cover URL. Returns affected rows.
func (r *ItemRepo) SetCover(ctx context.Context, id int64, url string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE catalog_items SET cover_url=$2 WHERE id=$1`, id, url)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
