package dto

import "time"

// BulkResult reports how many admissions a bulk operation touched.
type BulkResult struct {
	Count int64 `json:"count"`
}

// DownloadURL is a signed link to an admission file.
type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ManagerRequest links a person to a training as manager.
type ManagerRequest struct {
	PersonID string `json:"personId" binding:"required"`
}

// InjectionAccepted acknowledges an EPC injection request.
type InjectionAccepted struct {
	AdmissionID string `json:"admissionId"`
	Status      string `json:"status"`
}
