package models

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RevisionKind identifies a catalogued revision message.
type RevisionKind string

const (
	RevisionUCLRegistrationComplete   RevisionKind = "UCL_REGISTRATION_COMPLETE"
	RevisionUCLRegistrationSended     RevisionKind = "UCL_REGISTRATION_SENDED"
	RevisionUCLRegistrationRegistered RevisionKind = "UCL_REGISTRATION_REGISTERED"
	RevisionUCLRegistrationRejected   RevisionKind = "UCL_REGISTRATION_REJECTED"
	RevisionUCLRegistrationState      RevisionKind = "UCL_REGISTRATION_STATE_CHANGED"
	RevisionRegistrationFileReceived  RevisionKind = "REGISTRATION_FILE_RECEIVED"
	RevisionRegistrationUpdated       RevisionKind = "REGISTRATION_UPDATED"
	RevisionFileArchived              RevisionKind = "FILE_ARCHIVED"
	RevisionFileUnarchived            RevisionKind = "FILE_UNARCHIVED"
	RevisionAdmissionCreation         RevisionKind = "ADMISSION_CREATION"
	RevisionStateChanged              RevisionKind = "STATE_CHANGED"
	RevisionRegistrationValidated     RevisionKind = "REGISTRATION_VALIDATED"
	RevisionAdmissionAccepted         RevisionKind = "ADMISSION_ACCEPTED"
	RevisionRegistrationSubmitted     RevisionKind = "REGISTRATION_SUBMITTED"
	RevisionAdmissionSubmitted        RevisionKind = "ADMISSION_SUBMITTED"
	RevisionMailSent                  RevisionKind = "MAIL_SENT"
)

var revisionCatalogue = map[RevisionKind]struct {
	icon string
	text string
}{
	RevisionUCLRegistrationComplete:   {"fas fa-university", "UCLouvain registration complete"},
	RevisionUCLRegistrationSended:     {"fas fa-share-square", "Registration sent to EPC"},
	RevisionUCLRegistrationRegistered: {"fas fa-user-check", "Registered in EPC"},
	RevisionUCLRegistrationRejected:   {"fas fa-user-times", "Registration rejected by EPC"},
	RevisionUCLRegistrationState:      {"fas fa-exchange-alt", "EPC registration state changed : %s"},
	RevisionRegistrationFileReceived:  {"fas fa-receipt", "Registration file received"},
	RevisionRegistrationUpdated:       {"fas fa-edit", "Registration updated"},
	RevisionFileArchived:              {"fas fa-folder-plus", "File archived"},
	RevisionFileUnarchived:            {"fas fa-folder-minus", "File unarchived"},
	RevisionAdmissionCreation:         {"fas fa-plus-circle", "Creation of the admission"},
	RevisionStateChanged:              {"fas fa-exchange-alt", "State : %s ► %s"},
	RevisionRegistrationValidated:     {"fas fa-check-double", "Registration validated"},
	RevisionAdmissionAccepted:         {"fas fa-check", "Admission accepted"},
	RevisionRegistrationSubmitted:     {"far fa-paper-plane", "Registration submitted"},
	RevisionAdmissionSubmitted:        {"far fa-paper-plane", "Admission submitted"},
	RevisionMailSent:                  {"far fa-envelope-open", "Mail sent to %s"},
}

// RevisionKinds returns every catalogued kind; history queries filter on this set.
func RevisionKinds() []RevisionKind {
	kinds := make([]RevisionKind, 0, len(revisionCatalogue))
	for kind := range revisionCatalogue {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Catalogued reports whether k belongs to the revision catalogue.
func (k RevisionKind) Catalogued() bool {
	_, ok := revisionCatalogue[k]
	return ok
}

// RevisionMessage is a catalogued message with its rendered text.
type RevisionMessage struct {
	Kind RevisionKind
	Icon string
	Text string
}

// NewRevisionMessage renders kind with args. Unknown kinds yield a zero message.
func NewRevisionMessage(kind RevisionKind, args ...interface{}) RevisionMessage {
	entry, ok := revisionCatalogue[kind]
	if !ok {
		return RevisionMessage{}
	}
	text := entry.text
	if len(args) > 0 {
		text = fmt.Sprintf(entry.text, args...)
	}
	return RevisionMessage{Kind: kind, Icon: entry.icon, Text: text}
}

// StateChangeMessage picks the catalogued message describing a state transition.
func StateChangeMessage(from, to AdmissionState) RevisionMessage {
	switch to {
	case AdmissionStateAccepted:
		return NewRevisionMessage(RevisionAdmissionAccepted)
	case AdmissionStateValidated:
		return NewRevisionMessage(RevisionRegistrationValidated)
	case AdmissionStateRegistrationSubmitted:
		return NewRevisionMessage(RevisionRegistrationSubmitted)
	case AdmissionStateSubmitted:
		return NewRevisionMessage(RevisionAdmissionSubmitted)
	}
	return NewRevisionMessage(RevisionStateChanged, from.Label(), to.Label())
}

// Revision is one append-only history entry for an admission.
type Revision struct {
	ID          string         `db:"id" json:"id"`
	AdmissionID string         `db:"admission_id" json:"admissionId"`
	Kind        RevisionKind   `db:"kind" json:"kind"`
	Icon        string         `db:"icon" json:"icon"`
	Message     string         `db:"message" json:"message"`
	ActorID     *string        `db:"actor_id" json:"actorId,omitempty"`
	ActorName   string         `db:"actor_name" json:"actorName"`
	Snapshot    types.JSONText `db:"snapshot" json:"snapshot,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// Actor identifies who triggered a change. A nil *Actor means the system.
type Actor struct {
	UserID   string
	PersonID string
	Name     string
	Role     UserRole
}
