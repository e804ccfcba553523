package entity

import "time"

// Item represents a book of the catalog_items table.
type Item struct {
	ID          int64     `db:"id" json:"id,string"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	Year        int       `db:"year" json:"year"`
	Category    string    `db:"category" json:"category"`
	ISBN        string    `db:"isbn" json:"isbn"`
	Available   bool      `db:"available" json:"available"`
	CoverURL    *string   `db:"cover_url" json:"cover_url"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
