package entity

import "time"

// Gender values accepted for Person.Gender.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "Other"
)

// Placeholder values written when a person record is provisioned before the
// owner filled in the profile. A profile still carrying any of them is
// treated as incomplete, which also catches a real 18-year-old or a real
// "Other"; that ambiguity is kept on purpose.
const (
	SentinelFirstName = "To"
	SentinelLastName  = "Complete"
	SentinelAge       = 18
	SentinelGender    = GenderOther
)

// Person is a row of the `people` table, keyed by the account ID.
type Person struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Gender    string    `db:"gender" json:"gender"`
	Age       int       `db:"age" json:"age"`
	Email     string    `db:"email" json:"email"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsComplete reports whether the profile was filled in by its owner.
func (p *Person) IsComplete() bool {
	if p == nil {
		return false
	}
	return p.FirstName != "" && p.FirstName != SentinelFirstName &&
		p.LastName != "" && p.LastName != SentinelLastName &&
		p.Age != 0 && p.Age != SentinelAge &&
		p.Gender != "" && p.Gender != SentinelGender
}

// Placeholder returns the minimal record inserted when provisioning never happened.
func Placeholder(id, email string) *Person {
	return &Person{
		ID:        id,
		Email:     email,
		FirstName: SentinelFirstName,
		LastName:  SentinelLastName,
		Gender:    SentinelGender,
		Age:       SentinelAge,
	}
}

// ValidGender reports whether g is one of the accepted gender values.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}
