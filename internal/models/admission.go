package models

import "time"

// AdmissionState is the workflow position of an admission.
type AdmissionState string

const (
	AdmissionStateDraft                           AdmissionState = "DRAFT"
	AdmissionStateSubmitted                       AdmissionState = "SUBMITTED"
	AdmissionStateAccepted                        AdmissionState = "ACCEPTED"
	AdmissionStateAcceptedNoRegistrationRequired  AdmissionState = "ACCEPTED_NO_REGISTRATION_REQUIRED"
	AdmissionStateWaiting                         AdmissionState = "WAITING"
	AdmissionStateRejected                        AdmissionState = "REJECTED"
	AdmissionStateRegistrationSubmitted           AdmissionState = "REGISTRATION_SUBMITTED"
	AdmissionStateValidated                       AdmissionState = "VALIDATED"
	AdmissionStateCancelled                       AdmissionState = "CANCELLED"
	AdmissionStateCancelledNoRegistrationRequired AdmissionState = "CANCELLED_NO_REGISTRATION_REQUIRED"
)

// AdmissionStates lists every known state in display order.
var AdmissionStates = []AdmissionState{
	AdmissionStateDraft,
	AdmissionStateSubmitted,
	AdmissionStateAccepted,
	AdmissionStateAcceptedNoRegistrationRequired,
	AdmissionStateWaiting,
	AdmissionStateRejected,
	AdmissionStateRegistrationSubmitted,
	AdmissionStateValidated,
	AdmissionStateCancelled,
	AdmissionStateCancelledNoRegistrationRequired,
}

var admissionStateLabels = map[AdmissionState]string{
	AdmissionStateDraft:                           "Draft",
	AdmissionStateSubmitted:                       "Submitted",
	AdmissionStateAccepted:                        "Accepted",
	AdmissionStateAcceptedNoRegistrationRequired:  "Accepted (no registration required)",
	AdmissionStateWaiting:                         "Waiting",
	AdmissionStateRejected:                        "Rejected",
	AdmissionStateRegistrationSubmitted:           "Registration submitted",
	AdmissionStateValidated:                       "Validated",
	AdmissionStateCancelled:                       "Cancelled",
	AdmissionStateCancelledNoRegistrationRequired: "Cancelled (no registration required)",
}

// Label returns the human readable state name.
func (s AdmissionState) Label() string {
	if label, ok := admissionStateLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is a known state.
func (s AdmissionState) Valid() bool {
	_, ok := admissionStateLabels[s]
	return ok
}

// IsRegistration reports whether the admission has entered the registration phase.
func (s AdmissionState) IsRegistration() bool {
	switch s {
	case AdmissionStateAccepted, AdmissionStateRegistrationSubmitted, AdmissionStateValidated:
		return true
	}
	return false
}

// RegistrationTracking mirrors the external registry's view of a registration.
type RegistrationTracking string

const (
	TrackingInitState         RegistrationTracking = "INIT_STATE"
	TrackingSended            RegistrationTracking = "SENDED"
	TrackingRegistered        RegistrationTracking = "INSCRIT"
	TrackingOnDemand          RegistrationTracking = "DEMANDE"
	TrackingRejected          RegistrationTracking = "REJECTED"
	TrackingUninformed        RegistrationTracking = "NON_RENSEIGNE"
	TrackingProvisional       RegistrationTracking = "CONDITION"
	TrackingStudentCancel     RegistrationTracking = "ANNULATION_ETD"
	TrackingUniversityCancel  RegistrationTracking = "ANNULATION_UCL"
	TrackingExclusion         RegistrationTracking = "EXCLUSION"
	TrackingCessation         RegistrationTracking = "CESSATION"
	TrackingDeath             RegistrationTracking = "DECES"
	TrackingError             RegistrationTracking = "ERREUR"
	TrackingExchangeIntention RegistrationTracking = "INTENTION_ECHANGE"
	TrackingExchangeCancel    RegistrationTracking = "ANNULATION_ECHANGE"
	TrackingWebReRegistration RegistrationTracking = "REINSCRIPTION_WEB"
	TrackingIPCancel          RegistrationTracking = "ANNULATION_IP"
	TrackingRefusal           RegistrationTracking = "REFUS"
	TrackingCycle             RegistrationTracking = "CYCLE"
	TrackingValuedCredits     RegistrationTracking = "VALISE_CREDITS"
)

var trackingLabels = map[RegistrationTracking]string{
	TrackingInitState:         "Initial state",
	TrackingSended:            "Sended",
	TrackingRegistered:        "Registered",
	TrackingOnDemand:          "On demand",
	TrackingRejected:          "Rejected",
	TrackingUninformed:        "Uninformed",
	TrackingProvisional:       "Provisional",
	TrackingStudentCancel:     "Cancellation (ETD)",
	TrackingUniversityCancel:  "Cancellation (UNIV)",
	TrackingExclusion:         "Exclusion",
	TrackingCessation:         "Cessation",
	TrackingDeath:             "Death",
	TrackingError:             "Error",
	TrackingExchangeIntention: "Register intention",
	TrackingExchangeCancel:    "Intention cancellation",
	TrackingWebReRegistration: "Internet re-registration",
	TrackingIPCancel:          "IP Cancellation",
	TrackingRefusal:           "Refusal",
	TrackingCycle:             "Cycle",
	TrackingValuedCredits:     "Valued credits",
}

// Label returns the human readable tracking status.
func (t RegistrationTracking) Label() string {
	if label, ok := trackingLabels[t]; ok {
		return label
	}
	return string(t)
}

// Valid reports whether t is a known tracking status.
func (t RegistrationTracking) Valid() bool {
	_, ok := trackingLabels[t]
	return ok
}

// RegistrationError enumerates failure codes reported by the registry.
type RegistrationError string

const (
	RegistrationErrorNone                RegistrationError = "IUFC_NO_ERROR"
	RegistrationErrorNameTooLong         RegistrationError = "IUFC_NOM_TROP_LONG"
	RegistrationErrorFirstNameTooLong    RegistrationError = "IUFC_PRENOM_TROP_LONG"
	RegistrationErrorAddressTooLong      RegistrationError = "IUFC_ADRESSE_TROP_LONGUE"
	RegistrationErrorNameMissing         RegistrationError = "IUFC_NOM_MANQUANT"
	RegistrationErrorFirstNameMissing    RegistrationError = "IUFC_PRENOM_MANQUANT"
	RegistrationErrorYearMissing         RegistrationError = "IUFC_ANNEE_MANQUANTE"
	RegistrationErrorProgramMissing      RegistrationError = "IUFC_PROGRAMME_MANQUANT"
	RegistrationErrorNationalityMissing  RegistrationError = "IUFC_NATIONALITE_MANQUANTE"
	RegistrationErrorBirthCountryMissing RegistrationError = "IUFC_PAYS_NAISSANCE_MANQUANT"
	RegistrationErrorAlreadyProcessed    RegistrationError = "IUFC_INSCRIPTION_DEJA_TRAITEE"
	RegistrationErrorNomaCreationFailed  RegistrationError = "IUFC_CREATION_NOMA_ECHOUEE"
	RegistrationErrorUnknown             RegistrationError = "IUFC_ERREUR_INCONNUE"
)

var registrationErrors = map[RegistrationError]string{
	RegistrationErrorNone:                "No error",
	RegistrationErrorNameTooLong:         "Last name too long",
	RegistrationErrorFirstNameTooLong:    "First name too long",
	RegistrationErrorAddressTooLong:      "Address too long",
	RegistrationErrorNameMissing:         "Missing last name",
	RegistrationErrorFirstNameMissing:    "Missing first name",
	RegistrationErrorYearMissing:         "Missing academic year",
	RegistrationErrorProgramMissing:      "Missing program",
	RegistrationErrorNationalityMissing:  "Missing nationality",
	RegistrationErrorBirthCountryMissing: "Missing birth country",
	RegistrationErrorAlreadyProcessed:    "Registration already processed",
	RegistrationErrorNomaCreationFailed:  "Noma creation failed",
	RegistrationErrorUnknown:             "Unknown error",
}

// Label returns the human readable error.
func (e RegistrationError) Label() string {
	if label, ok := registrationErrors[e]; ok {
		return label
	}
	return string(e)
}

// ParseRegistrationError maps a registry message onto a known code.
func ParseRegistrationError(raw string) RegistrationError {
	code := RegistrationError(raw)
	if _, ok := registrationErrors[code]; ok {
		return code
	}
	return RegistrationErrorUnknown
}

// RegistrationType captures who pays for the training.
type RegistrationType string

const (
	RegistrationTypePrivate      RegistrationType = "PRIVATE"
	RegistrationTypeProfessional RegistrationType = "PROFESSIONAL"
)

// MaritalStatus values accepted by the registry.
type MaritalStatus string

const (
	MaritalStatusSingle          MaritalStatus = "SINGLE"
	MaritalStatusMarried         MaritalStatus = "MARRIED"
	MaritalStatusWidowed         MaritalStatus = "WIDOWED"
	MaritalStatusDivorced        MaritalStatus = "DIVORCED"
	MaritalStatusSeparated       MaritalStatus = "SEPARATED"
	MaritalStatusLegalCohabitant MaritalStatus = "LEGAL_COHABITANT"
)

// Admission is one applicant's file for one training offering.
type Admission struct {
	ID                  string         `db:"id" json:"id"`
	PersonInformationID string         `db:"person_information_id" json:"personInformationId"`
	TrainingID          string         `db:"training_id" json:"trainingId"`
	CitizenshipID       *string        `db:"citizenship_id" json:"citizenshipId,omitempty"`
	AddressID           *string        `db:"address_id" json:"addressId,omitempty"`
	PhoneMobile         string         `db:"phone_mobile" json:"phoneMobile"`
	Email               string         `db:"email" json:"email"`
	State               AdmissionState `db:"state" json:"state"`
	StateReason         string         `db:"state_reason" json:"stateReason"`
	ConditionOfAccept   string         `db:"condition_of_acceptance" json:"conditionOfAcceptance"`
	AcademicYear        int            `db:"academic_year" json:"academicYear"`
	Archived            bool           `db:"archived" json:"archived"`

	HighSchoolDiploma          bool   `db:"high_school_diploma" json:"highSchoolDiploma"`
	HighSchoolGraduationYear   *int   `db:"high_school_graduation_year" json:"highSchoolGraduationYear,omitempty"`
	LastDegreeLevel            string `db:"last_degree_level" json:"lastDegreeLevel"`
	LastDegreeField            string `db:"last_degree_field" json:"lastDegreeField"`
	LastDegreeInstitution      string `db:"last_degree_institution" json:"lastDegreeInstitution"`
	LastDegreeGraduationYear   *int   `db:"last_degree_graduation_year" json:"lastDegreeGraduationYear,omitempty"`
	OtherEducationalBackground string `db:"other_educational_background" json:"otherEducationalBackground"`

	ProfessionalStatus         string `db:"professional_status" json:"professionalStatus"`
	CurrentOccupation          string `db:"current_occupation" json:"currentOccupation"`
	CurrentEmployer            string `db:"current_employer" json:"currentEmployer"`
	ActivitySector             string `db:"activity_sector" json:"activitySector"`
	PastProfessionalActivities string `db:"past_professional_activities" json:"pastProfessionalActivities"`
	Motivation                 string `db:"motivation" json:"motivation"`
	ProfessionalInterests      string `db:"professional_personal_interests" json:"professionalPersonalInterests"`
	Awareness                  string `db:"awareness" json:"awareness"`

	RegistrationType        RegistrationType `db:"registration_type" json:"registrationType"`
	UseAddressForBilling    bool             `db:"use_address_for_billing" json:"useAddressForBilling"`
	BillingAddressID        *string          `db:"billing_address_id" json:"billingAddressId,omitempty"`
	HeadOfficeName          string           `db:"head_office_name" json:"headOfficeName"`
	CompanyNumber           string           `db:"company_number" json:"companyNumber"`
	VATNumber               string           `db:"vat_number" json:"vatNumber"`
	NationalRegistryNumber  string           `db:"national_registry_number" json:"nationalRegistryNumber"`
	IDCardNumber            string           `db:"id_card_number" json:"idCardNumber"`
	PassportNumber          string           `db:"passport_number" json:"passportNumber"`
	MaritalStatus           MaritalStatus    `db:"marital_status" json:"maritalStatus"`
	SpouseName              string           `db:"spouse_name" json:"spouseName"`
	ChildrenNumber          int              `db:"children_number" json:"childrenNumber"`
	PreviousUCLRegistration bool             `db:"previous_ucl_registration" json:"previousUclRegistration"`
	PreviousNoma            string           `db:"previous_noma" json:"previousNoma"`
	UseAddressForPost       bool             `db:"use_address_for_post" json:"useAddressForPost"`
	ResidenceAddressID      *string          `db:"residence_address_id" json:"residenceAddressId,omitempty"`
	ResidencePhone          string           `db:"residence_phone" json:"residencePhone"`

	RegistrationFileReceived  bool                 `db:"registration_file_received" json:"registrationFileReceived"`
	PaymentComplete           bool                 `db:"payment_complete" json:"paymentComplete"`
	FormationSpreading        bool                 `db:"formation_spreading" json:"formationSpreading"`
	PriorExperienceValidation bool                 `db:"prior_experience_validation" json:"priorExperienceValidation"`
	AssessmentPresented       bool                 `db:"assessment_presented" json:"assessmentPresented"`
	AssessmentSucceeded       bool                 `db:"assessment_succeeded" json:"assessmentSucceeded"`
	Sessions                  string               `db:"sessions" json:"sessions"`
	UCLRegistrationComplete   RegistrationTracking `db:"ucl_registration_complete" json:"uclRegistrationComplete"`
	UCLRegistrationError      RegistrationError    `db:"ucl_registration_error" json:"uclRegistrationError"`
	Noma                      string               `db:"noma" json:"noma"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// AdmissionDetail bundles an admission with the rows notifications and EPC need.
type AdmissionDetail struct {
	Admission
	Person           Person                    `json:"person"`
	PersonInfo       ContinuingEducationPerson `json:"personInformation"`
	Training         Training                  `json:"training"`
	Citizenship      *Country                  `json:"citizenship,omitempty"`
	Address          *Address                  `json:"address,omitempty"`
	BillingAddress   *Address                  `json:"billingAddress,omitempty"`
	ResidenceAddress *Address                  `json:"residenceAddress,omitempty"`
}

// AdmissionFilter narrows listing queries.
type AdmissionFilter struct {
	States       []AdmissionState
	TrainingIDs  []string
	PersonID     string
	Archived     *bool
	Registration bool
	Search       string
	Page         int
	PageSize     int
	Limit        int
	Offset       int
}
