package workflow

import (
	"strings"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

// ReasonOther marks a free-text reason.
const ReasonOther = "OTHER"

// Rejection reasons offered to staff.
var RejectedReasons = map[string]string{
	"NOT_ADAPTED":            "Your course is not adapted to the program of this training",
	"DONT_MEET_REQUIREMENTS": "You do not meet the admission requirements",
	"PROGRAM_COMPLETE":       "The programme is already complete",
	"NOT_ENOUGH_EXPERIENCE":  "You do not have the experience and/or motivation to follow this program",
	ReasonOther:              "Other",
}

// Waiting reasons offered to staff.
var WaitingReasons = map[string]string{
	"NEXT_EDITION":   "The programme is already complete. We will contact you again for the next edition.",
	"FILE_VERIFYING": "Your admission file is being verified by the responsible training jury. We will report to you as soon as possible.",
	ReasonOther:      "Other",
}

// TransitionRequest is a requested move carrying exactly the payload its target needs.
type TransitionRequest interface {
	Target() models.AdmissionState
	Validate() error
	apply(a *models.Admission, resulting models.AdmissionState)
}

// Rejected moves an admission to REJECTED.
type Rejected struct {
	Reason    string
	OtherText string
}

// Waiting moves an admission to WAITING.
type Waiting struct {
	Reason    string
	OtherText string
}

// Accepted moves an admission to ACCEPTED or its no-registration variant.
type Accepted struct {
	Condition    string
	AcademicYear *int
}

// Cancelled moves an admission to CANCELLED or its no-registration variant.
type Cancelled struct {
	Reason string
}

// Plain moves an admission to a target that needs no payload.
type Plain struct {
	State models.AdmissionState
}

func (Rejected) Target() models.AdmissionState  { return models.AdmissionStateRejected }
func (Waiting) Target() models.AdmissionState   { return models.AdmissionStateWaiting }
func (Accepted) Target() models.AdmissionState  { return models.AdmissionStateAccepted }
func (Cancelled) Target() models.AdmissionState { return models.AdmissionStateCancelled }
func (p Plain) Target() models.AdmissionState   { return p.State }

func (r Rejected) Validate() error {
	return validateReason(RejectedReasons, r.Reason, r.OtherText, "rejection")
}

func (w Waiting) Validate() error {
	return validateReason(WaitingReasons, w.Reason, w.OtherText, "waiting")
}

func (a Accepted) Validate() error {
	if a.AcademicYear != nil && (*a.AcademicYear < 1900 || *a.AcademicYear > 2999) {
		return appErrors.Clone(appErrors.ErrValidation, "academic year is invalid")
	}
	return nil
}

func (Cancelled) Validate() error { return nil }

func (p Plain) Validate() error {
	if !p.State.Valid() {
		return &TransitionError{Kind: KindUnknownState, To: p.State}
	}
	switch p.State {
	case models.AdmissionStateRejected, models.AdmissionStateWaiting:
		return appErrors.Clone(appErrors.ErrValidation, "a reason is required for this state")
	}
	return nil
}

func validateReason(catalogue map[string]string, reason, other, what string) error {
	if strings.TrimSpace(reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "a "+what+" reason is required")
	}
	if _, ok := catalogue[reason]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown "+what+" reason")
	}
	if reason == ReasonOther && strings.TrimSpace(other) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "please specify the "+what+" reason")
	}
	return nil
}

func reasonText(catalogue map[string]string, reason, other string) string {
	if reason == ReasonOther {
		return strings.TrimSpace(other)
	}
	return catalogue[reason]
}

func (r Rejected) apply(a *models.Admission, resulting models.AdmissionState) {
	a.State = resulting
	a.StateReason = reasonText(RejectedReasons, r.Reason, r.OtherText)
}

func (w Waiting) apply(a *models.Admission, resulting models.AdmissionState) {
	a.State = resulting
	a.StateReason = reasonText(WaitingReasons, w.Reason, w.OtherText)
}

func (c Accepted) apply(a *models.Admission, resulting models.AdmissionState) {
	a.State = resulting
	a.StateReason = ""
	a.ConditionOfAccept = strings.TrimSpace(c.Condition)
	if c.AcademicYear != nil {
		a.AcademicYear = *c.AcademicYear
	}
}

func (c Cancelled) apply(a *models.Admission, resulting models.AdmissionState) {
	a.State = resulting
	a.StateReason = strings.TrimSpace(c.Reason)
}

func (p Plain) apply(a *models.Admission, resulting models.AdmissionState) {
	a.State = resulting
	a.StateReason = ""
}

// RawRequest is the wire shape of a transition request.
type RawRequest struct {
	State        string
	Reason       string
	OtherReason  string
	Condition    string
	AcademicYear *int
}

// ParseRequest builds the variant matching raw.State and validates its payload.
func ParseRequest(raw RawRequest) (TransitionRequest, error) {
	state, err := ParseState(raw.State)
	if err != nil {
		return nil, err
	}

	var req TransitionRequest
	switch state {
	case models.AdmissionStateRejected:
		req = Rejected{Reason: raw.Reason, OtherText: raw.OtherReason}
	case models.AdmissionStateWaiting:
		req = Waiting{Reason: raw.Reason, OtherText: raw.OtherReason}
	case models.AdmissionStateAccepted, models.AdmissionStateAcceptedNoRegistrationRequired:
		req = Accepted{Condition: raw.Condition, AcademicYear: raw.AcademicYear}
	case models.AdmissionStateCancelled, models.AdmissionStateCancelledNoRegistrationRequired:
		req = Cancelled{Reason: raw.Reason}
	default:
		req = Plain{State: state}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Apply validates req against a's current state, checks the validation
// capability and mutates a. Restating the current state with a new reason or
// condition reports Amended; a plain restatement leaves a untouched. The returned Transition carries the before and
// after states; a is untouched on error.
func Apply(a *models.Admission, req TransitionRequest, registrationRequired, canValidate bool) (Transition, error) {
	before := a.State
	if err := req.Validate(); err != nil {
		return Transition{Before: before, After: before}, err
	}
	resulting, err := ValidateTransition(before, req.Target(), registrationRequired)
	if err != nil {
		return Transition{Before: before, After: before}, err
	}
	if err := Authorize(before, resulting, canValidate); err != nil {
		return Transition{Before: before, After: before}, err
	}
	if _, plain := req.(Plain); plain && resulting == before {
		return Transition{Before: before, After: before}, nil
	}
	prior := payloadOf(a)
	req.apply(a, resulting)
	return Transition{
		Before:  before,
		After:   resulting,
		Amended: resulting == before && payloadOf(a) != prior,
	}, nil
}

type statePayload struct {
	reason    string
	condition string
	year      int
}

func payloadOf(a *models.Admission) statePayload {
	return statePayload{reason: a.StateReason, condition: a.ConditionOfAccept, year: a.AcademicYear}
}
