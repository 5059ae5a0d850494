package models

import "time"

// Prospect is a lead captured before any admission exists.
type Prospect struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name" validate:"max=250"`
	FirstName   string    `db:"first_name" json:"firstName" validate:"max=250"`
	PostalCode  string    `db:"postal_code" json:"postalCode" validate:"max=12"`
	City        string    `db:"city" json:"city" validate:"max=40"`
	Email       string    `db:"email" json:"email" validate:"required,email"`
	PhoneNumber string    `db:"phone_number" json:"phoneNumber" validate:"max=30"`
	TrainingID  *string   `db:"training_id" json:"trainingId,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ProspectFilter narrows listing queries.
type ProspectFilter struct {
	TrainingID string
	Page       int
	PageSize   int
	Limit      int
	Offset     int
}
