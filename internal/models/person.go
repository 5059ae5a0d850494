package models

import "time"

// Gender codes stored on the base person record.
type Gender string

const (
	GenderFemale Gender = "F"
	GenderMale   Gender = "H"
)

// Person is the shared identity row linked to a user account.
type Person struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Email     string    `db:"email" json:"email"`
	Gender    Gender    `db:"gender" json:"gender"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// FullName renders "Last First" the way staff lists display people.
func (p Person) FullName() string {
	switch {
	case p.LastName == "":
		return p.FirstName
	case p.FirstName == "":
		return p.LastName
	}
	return p.LastName + " " + p.FirstName
}

// ContinuingEducationPerson holds birth data for an applicant.
type ContinuingEducationPerson struct {
	ID             string     `db:"id" json:"id"`
	PersonID       string     `db:"person_id" json:"personId"`
	BirthDate      *time.Time `db:"birth_date" json:"birthDate,omitempty"`
	BirthLocation  string     `db:"birth_location" json:"birthLocation"`
	BirthCountryID *string    `db:"birth_country_id" json:"birthCountryId,omitempty"`
	BirthCountry   *Country   `db:"-" json:"birthCountry,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}
