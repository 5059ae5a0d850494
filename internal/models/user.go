package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleManager         UserRole = "MANAGER"
	RoleTrainingManager UserRole = "TRAINING_MANAGER"
	RoleStudentWorker   UserRole = "STUDENT_WORKER"
	RoleParticipant     UserRole = "PARTICIPANT"
)

// IsStaff reports whether the role belongs to the back office.
func (r UserRole) IsStaff() bool {
	switch r {
	case RoleManager, RoleTrainingManager, RoleStudentWorker:
		return true
	}
	return false
}

// CanValidateRegistration reports whether the role holds the registration validation capability.
func (r UserRole) CanValidateRegistration() bool {
	return r == RoleManager
}

// NeedsPerson reports whether the role requires a linked person. Participants
// own admissions through it and training managers are bound to trainings by it.
func (r UserRole) NeedsPerson() bool {
	return r == RoleParticipant || r == RoleTrainingManager
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	PersonID     *string    `db:"person_id" json:"person_id,omitempty"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing accounts.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
