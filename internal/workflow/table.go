// Package workflow holds the admission state machine: the table of allowed
// transitions, the transition validator and the per-target request payloads.
package workflow

import (
	"strings"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

type entry struct {
	states  []models.AdmissionState
	choices []models.AdmissionState
}

var (
	draftEntry = entry{
		states:  []models.AdmissionState{models.AdmissionStateSubmitted, models.AdmissionStateCancelled},
		choices: []models.AdmissionState{models.AdmissionStateSubmitted, models.AdmissionStateCancelled},
	}
	submittedEntry = entry{
		states: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateAcceptedNoRegistrationRequired,
			models.AdmissionStateRejected,
			models.AdmissionStateWaiting,
			models.AdmissionStateDraft,
			models.AdmissionStateCancelled,
		},
		choices: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateRejected,
			models.AdmissionStateWaiting,
			models.AdmissionStateDraft,
			models.AdmissionStateCancelled,
		},
	}
	acceptedEntry = entry{
		states:  []models.AdmissionState{models.AdmissionStateRegistrationSubmitted, models.AdmissionStateCancelled},
		choices: []models.AdmissionState{models.AdmissionStateRegistrationSubmitted, models.AdmissionStateCancelled},
	}
	registrationSubmittedEntry = entry{
		states:  []models.AdmissionState{models.AdmissionStateValidated, models.AdmissionStateCancelled},
		choices: []models.AdmissionState{models.AdmissionStateValidated, models.AdmissionStateCancelled},
	}
	rejectedWaitingEntry = entry{
		states: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateRejected,
			models.AdmissionStateWaiting,
			models.AdmissionStateCancelled,
		},
		choices: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateRejected,
			models.AdmissionStateWaiting,
			models.AdmissionStateCancelled,
		},
	}
	cancelledEntry = entry{
		states: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateRejected,
			models.AdmissionStateWaiting,
			models.AdmissionStateValidated,
			models.AdmissionStateRegistrationSubmitted,
			models.AdmissionStateDraft,
			models.AdmissionStateSubmitted,
		},
		choices: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateDraft,
			models.AdmissionStateWaiting,
			models.AdmissionStateRegistrationSubmitted,
			models.AdmissionStateRejected,
			models.AdmissionStateSubmitted,
			models.AdmissionStateValidated,
		},
	}
	// Without a registration phase there is nothing to resume past acceptance.
	cancelledNoRegistrationEntry = entry{
		states: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateRejected,
			models.AdmissionStateWaiting,
			models.AdmissionStateDraft,
			models.AdmissionStateSubmitted,
		},
		choices: []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateDraft,
			models.AdmissionStateWaiting,
			models.AdmissionStateRejected,
			models.AdmissionStateSubmitted,
		},
	}
)

var table = map[models.AdmissionState]entry{
	models.AdmissionStateDraft:                           draftEntry,
	models.AdmissionStateSubmitted:                       submittedEntry,
	models.AdmissionStateWaiting:                         rejectedWaitingEntry,
	models.AdmissionStateRejected:                        rejectedWaitingEntry,
	models.AdmissionStateAccepted:                        acceptedEntry,
	models.AdmissionStateValidated:                       acceptedEntry,
	models.AdmissionStateAcceptedNoRegistrationRequired:  acceptedEntry,
	models.AdmissionStateRegistrationSubmitted:           registrationSubmittedEntry,
	models.AdmissionStateCancelled:                       cancelledEntry,
	models.AdmissionStateCancelledNoRegistrationRequired: cancelledNoRegistrationEntry,
}

// Choice is one selectable target state.
type Choice struct {
	Value models.AdmissionState `json:"value"`
	Label string                `json:"label"`
}

// AllowedTargets returns the states reachable from current.
func AllowedTargets(current models.AdmissionState) []models.AdmissionState {
	e, ok := table[current]
	if !ok {
		return nil
	}
	out := make([]models.AdmissionState, len(e.states))
	copy(out, e.states)
	return out
}

// Choices returns the targets offered to staff for current, with labels.
func Choices(current models.AdmissionState) []Choice {
	e, ok := table[current]
	if !ok {
		return nil
	}
	out := make([]Choice, 0, len(e.choices))
	for _, s := range e.choices {
		out = append(out, Choice{Value: s, Label: s.Label()})
	}
	return out
}

// ParseState normalises raw into a known state.
func ParseState(raw string) (models.AdmissionState, error) {
	state := models.AdmissionState(strings.ToUpper(strings.TrimSpace(raw)))
	if !state.Valid() {
		return "", &TransitionError{Kind: KindUnknownState, To: state}
	}
	return state, nil
}

func allowed(current, requested models.AdmissionState) bool {
	for _, s := range table[current].states {
		if s == requested {
			return true
		}
	}
	return false
}
