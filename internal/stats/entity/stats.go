package entity

import "time"

// Tally is one row of a grouped count.
type Tally struct {
	Label string `db:"label" json:"label"`
	Count int64  `db:"count" json:"count"`
}

// ItemTally counts loans per catalog item.
type ItemTally struct {
	ItemID int64  `db:"item_id" json:"item_id,string"`
	Title  string `db:"title" json:"title"`
	Author string `db:"author" json:"author"`
	Count  int64  `db:"count" json:"count"`
}

// Snapshot is the statistics page. The queries behind it run concurrently
// without a shared transaction.
type Snapshot struct {
	TotalItems  int64       `json:"total_items"`
	TotalPeople int64       `json:"total_people"`
	OpenLoans   int64       `json:"open_loans"`
	TotalLoans  int64       `json:"total_loans"`
	ByCategory  []Tally     `json:"loans_by_category"`
	ByGender    []Tally     `json:"loans_by_gender"`
	TopItems    []ItemTally `json:"top_items"`
	TakenAt     time.Time   `json:"taken_at"`
}

// Dashboard is the administrator landing summary.
type Dashboard struct {
	Items          int64 `json:"items"`
	AvailableItems int64 `json:"available_items"`
	People         int64 `json:"people"`
	OpenLoans      int64 `json:"open_loans"`
}
