package epc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// ErrMalformedAck marks an acknowledgement that must be dead-lettered.
var ErrMalformedAck = errors.New("malformed epc acknowledgement")

// Ack is the registry's reply to a published registration.
type Ack struct {
	Success            *bool  `json:"success" validate:"required"`
	Message            string `json:"message"`
	StudentCaseUUID    string `json:"student_case_uuid" validate:"required,uuid"`
	RegistrationID     string `json:"registration_id,omitempty" validate:"omitempty,max=20"`
	RegistrationStatus string `json:"registration_status,omitempty"`
}

// Succeeded reports the success flag.
func (a *Ack) Succeeded() bool {
	return a.Success != nil && *a.Success
}

// Tracking returns the tracking status carried by a successful ack. An empty
// status on success means registered.
func (a *Ack) Tracking() models.RegistrationTracking {
	if a.RegistrationStatus == "" {
		return models.TrackingRegistered
	}
	return models.RegistrationTracking(a.RegistrationStatus)
}

var ackValidator = validator.New()

// ParseAck strictly decodes body. Unknown keys, trailing data, missing fields
// and unknown registration statuses all yield ErrMalformedAck.
func ParseAck(body []byte) (*Ack, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var ack Ack
	if err := dec.Decode(&ack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAck, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedAck)
	}
	if err := ackValidator.Struct(ack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAck, err)
	}
	if ack.Succeeded() && !ack.Tracking().Valid() {
		return nil, fmt.Errorf("%w: unknown registration status %q", ErrMalformedAck, ack.RegistrationStatus)
	}
	return &ack, nil
}
