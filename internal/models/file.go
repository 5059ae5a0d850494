package models

import "time"

// FileCategory classifies uploaded admission documents.
type FileCategory string

const (
	FileCategoryDocument    FileCategory = "DOCUMENT"
	FileCategoryInvoice     FileCategory = "INVOICE"
	FileCategoryParticipant FileCategory = "PARTICIPANT"
)

// Valid reports whether c is a known category.
func (c FileCategory) Valid() bool {
	switch c {
	case FileCategoryDocument, FileCategoryInvoice, FileCategoryParticipant:
		return true
	}
	return false
}

// AdmissionFile is an uploaded document attached to exactly one admission.
type AdmissionFile struct {
	ID          string       `db:"id" json:"id"`
	AdmissionID string       `db:"admission_id" json:"admissionId"`
	Name        string       `db:"name" json:"name"`
	Path        string       `db:"path" json:"-"`
	SizeBytes   int64        `db:"size_bytes" json:"sizeBytes"`
	MimeType    string       `db:"mime_type" json:"mimeType"`
	Category    FileCategory `db:"category" json:"category"`
	UploadedBy  string       `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt  time.Time    `db:"uploaded_at" json:"uploadedAt"`
}
