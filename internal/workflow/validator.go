package workflow

import (
	"fmt"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

// ErrorKind classifies transition failures.
type ErrorKind string

const (
	KindForbidden              ErrorKind = "FORBIDDEN"
	KindUnknownState           ErrorKind = "UNKNOWN_STATE"
	KindUnauthorizedValidation ErrorKind = "UNAUTHORIZED_VALIDATION"
)

// TransitionError reports a refused transition. It unwraps to the matching
// application error so HTTP handlers render it with the right status.
type TransitionError struct {
	Kind ErrorKind
	From models.AdmissionState
	To   models.AdmissionState
}

func (e *TransitionError) Error() string {
	return e.appError().Message
}

// Unwrap exposes the application error.
func (e *TransitionError) Unwrap() error {
	return e.appError()
}

func (e *TransitionError) appError() *appErrors.Error {
	switch e.Kind {
	case KindUnknownState:
		return appErrors.Clone(appErrors.ErrUnknownState, fmt.Sprintf("Unknown state %q", string(e.To)))
	case KindUnauthorizedValidation:
		return appErrors.Clone(appErrors.ErrUnauthorizedValidation, "")
	default:
		return appErrors.Clone(appErrors.ErrForbiddenTransition,
			fmt.Sprintf("State change from %s to %s is not allowed", e.From.Label(), e.To.Label()))
	}
}

// ValidateTransition checks requested against the table and returns the state
// to store. When the training needs no registration, ACCEPTED and CANCELLED
// are mapped onto their no-registration variants. Asking for the current state
// is an allowed no-op.
func ValidateTransition(current, requested models.AdmissionState, registrationRequired bool) (models.AdmissionState, error) {
	if !requested.Valid() {
		return current, &TransitionError{Kind: KindUnknownState, From: current, To: requested}
	}
	resulting := remap(requested, registrationRequired)
	if requested == current || resulting == current {
		return current, nil
	}
	if !allowed(current, requested) {
		return current, &TransitionError{Kind: KindForbidden, From: current, To: requested}
	}
	return resulting, nil
}

func remap(requested models.AdmissionState, registrationRequired bool) models.AdmissionState {
	if registrationRequired {
		return requested
	}
	switch requested {
	case models.AdmissionStateAccepted:
		return models.AdmissionStateAcceptedNoRegistrationRequired
	case models.AdmissionStateCancelled:
		return models.AdmissionStateCancelledNoRegistrationRequired
	}
	return requested
}

// Authorize applies the capability check layered on top of the table.
func Authorize(current, target models.AdmissionState, canValidate bool) error {
	if target == models.AdmissionStateValidated && current != target && !canValidate {
		return &TransitionError{Kind: KindUnauthorizedValidation, From: current, To: target}
	}
	return nil
}

// Transition is the outcome of a validated request. Amended is set when the
// state stays put but its reason, condition or academic year changed.
type Transition struct {
	Before  models.AdmissionState
	After   models.AdmissionState
	Amended bool
}

// Changed reports whether the stored state moves.
func (t Transition) Changed() bool {
	return t.Before != t.After
}

// Persist reports whether the admission must be written back.
func (t Transition) Persist() bool {
	return t.Changed() || t.Amended
}
