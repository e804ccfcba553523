package entity

import "time"

// DateLayout is the wire and storage format of loan dates.
const DateLayout = "2006-01-02"

// Loan is a row of the loans table. A nil EndDate means the item is still out.
type Loan struct {
	ID        int64     `db:"id" json:"id,string"`
	PersonID  string    `db:"person_id" json:"person_id"`
	ItemID    int64     `db:"item_id" json:"item_id,string"`
	StartDate string    `db:"start_date" json:"start_date"`
	EndDate   *string   `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Active reports whether the loan has not been returned.
func (l *Loan) Active() bool { return l.EndDate == nil }

// View is a loan joined with its person and item summaries.
type View struct {
	Loan
	PersonFirstName string `db:"person_first_name" json:"person_first_name"`
	PersonLastName  string `db:"person_last_name" json:"person_last_name"`
	PersonEmail     string `db:"person_email" json:"person_email"`
	ItemTitle       string `db:"item_title" json:"item_title"`
	ItemAuthor      string `db:"item_author" json:"item_author"`
}
