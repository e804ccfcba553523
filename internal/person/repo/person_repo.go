package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
)

// PersonRepo provides data access for the people table.
type PersonRepo struct {
	db *sqlx.DB
}

func NewPersonRepo(db *sqlx.DB) *PersonRepo { return &PersonRepo{db: db} }

const personColumns = `id, first_name, last_name, gender, age, email, is_admin, created_at`

// EnsureTable creates the people table and the trigger that provisions a
// placeholder person for every single-sign-on account. It must run after
// the accounts table exists.
func (r *PersonRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS people (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  gender TEXT NOT NULL DEFAULT '',
  age INT NOT NULL DEFAULT 0 CHECK (age >= 0 AND age <= 150),
  email TEXT NOT NULL DEFAULT '',
  is_admin BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_people_last_name ON people(last_name);

CREATE OR REPLACE FUNCTION provision_person() RETURNS trigger AS $$
BEGIN
  INSERT INTO people (id, email, first_name, last_name, gender, age, is_admin)
  VALUES (NEW.id, NEW.email, 'To', 'Complete', 'Other', 18, false)
  ON CONFLICT (id) DO NOTHING;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_accounts_provision_person ON accounts;
CREATE TRIGGER trg_accounts_provision_person
  AFTER INSERT ON accounts
  FOR EACH ROW WHEN (NEW.provider <> 'password')
  EXECUTE FUNCTION provision_person();
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Get returns the person with id or sql.ErrNoRows.
func (r *PersonRepo) Get(ctx context.Context, id string) (*entity.Person, error) {
	var p entity.Person
	if err := r.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM people WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every person ordered by last name.
func (r *PersonRepo) List(ctx context.Context) ([]*entity.Person, error) {
	out := []*entity.Person{}
	if err := r.db.SelectContext(ctx, &out, `SELECT `+personColumns+` FROM people ORDER BY last_name, first_name, id`); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertIfAbsent inserts p unless a row with the same id exists. Reports whether a row was written.
func (r *PersonRepo) InsertIfAbsent(ctx context.Context, p *entity.Person) (bool, error) {
	const q = `INSERT INTO people (id, first_name, last_name, gender, age, email, is_admin)
		VALUES (:id, :first_name, :last_name, :gender, :age, :email, :is_admin)
		ON CONFLICT (id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Upsert writes the full profile, replacing any provisioned placeholder.
func (r *PersonRepo) Upsert(ctx context.Context, p *entity.Person) error {
	const q = `INSERT INTO people (id, first_name, last_name, gender, age, email, is_admin)
		VALUES (:id, :first_name, :last_name, :gender, :age, :email, :is_admin)
		ON CONFLICT (id) DO UPDATE SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
			gender=EXCLUDED.gender, age=EXCLUDED.age, email=EXCLUDED.email`
	_, err := r.db.NamedExecContext(ctx, q, p)
	return err
}

// UpdateProfile sets the self-service fields. Returns affected rows.
func (r *PersonRepo) UpdateProfile(ctx context.Context, id, firstName, lastName, gender string, age int) (int64, error) {
	const q = `UPDATE people SET first_name=$2, last_name=$3, gender=$4, age=$5 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, firstName, lastName, gender, age)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Update overwrites the editable columns, including email and role. Returns affected rows.
func (r *PersonRepo) Update(ctx context.Context, p *entity.Person) (int64, error) {
	const q = `UPDATE people SET first_name=:first_name, last_name=:last_name, gender=:gender, age=:age,
		email=:email, is_admin=:is_admin WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAdmin sets the role flag. Returns affected rows.
func (r *PersonRepo) SetAdmin(ctx context.Context, id string, admin bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE people SET is_admin=$2 WHERE id=$1`, id, admin)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAdminByEmail sets the role flag for the person with email. Returns affected rows.
func (r *PersonRepo) SetAdminByEmail(ctx context.Context, email string, admin bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE people SET is_admin=$2 WHERE lower(email)=lower($1)`, email, admin)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a person; the loans foreign key cascades. Returns affected rows.
func (r *PersonRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
