package models

import (
	"fmt"
	"strings"
	"time"
)

// EducationGroupYear is one yearly edition of a curriculum.
type EducationGroupYear struct {
	ID               string `db:"id" json:"id"`
	EducationGroupID string `db:"education_group_id" json:"educationGroupId"`
	Acronym          string `db:"acronym" json:"acronym"`
	PartialAcronym   string `db:"partial_acronym" json:"partialAcronym"`
	Title            string `db:"title" json:"title"`
	AcademicYear     int    `db:"academic_year" json:"academicYear"`
	Faculty          string `db:"faculty" json:"faculty"`
}

// Training is a continuing-education offering built on an education group.
type Training struct {
	ID                    string    `db:"id" json:"id"`
	EducationGroupID      string    `db:"education_group_id" json:"educationGroupId"`
	Active                bool      `db:"active" json:"active"`
	TrainingAid           bool      `db:"training_aid" json:"trainingAid"`
	RegistrationRequired  bool      `db:"registration_required" json:"registrationRequired"`
	SendNotificationEmail bool      `db:"send_notification_emails" json:"sendNotificationEmails"`
	AlternateEmails       string    `db:"alternate_notification_email_addresses" json:"alternateNotificationEmailAddresses"`
	Acronym               string    `db:"acronym" json:"acronym"`
	PartialAcronym        string    `db:"partial_acronym" json:"partialAcronym"`
	Title                 string    `db:"title" json:"title"`
	AcademicYear          int       `db:"academic_year" json:"academicYear"`
	Faculty               string    `db:"faculty" json:"faculty"`
	Managers              []Person  `db:"-" json:"managers,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`
}

// Display renders "PARTIAL - ACRONYM - YEAR".
func (t Training) Display() string {
	var b strings.Builder
	if t.PartialAcronym != "" {
		b.WriteString(t.PartialAcronym)
		b.WriteString(" - ")
	}
	b.WriteString(t.Acronym)
	if t.AcademicYear > 0 {
		b.WriteString(" - ")
		b.WriteString(FormatAcademicYear(t.AcademicYear))
	}
	return b.String()
}

// FormatAcademicYear renders 2024 as "2024-25".
func FormatAcademicYear(year int) string {
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// TrainingFilter narrows listing queries.
type TrainingFilter struct {
	Active    *bool
	ManagerID string
	Search    string
	Page      int
	PageSize  int
	Limit     int
	Offset    int
}
