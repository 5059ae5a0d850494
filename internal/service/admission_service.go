package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/workflow"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type admissionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error
	GetByID(ctx context.Context, id string) (*models.Admission, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error)
	Update(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error
	DeleteDrafts(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error)
}

type admissionPersonStore interface {
	GetInformationByPerson(ctx context.Context, personID string) (*models.ContinuingEducationPerson, error)
	CreateInformation(ctx context.Context, exec sqlx.ExtContext, info *models.ContinuingEducationPerson) error
}

type admissionTrainingReader interface {
	GetByID(ctx context.Context, id string) (*models.Training, error)
}

type admissionDetailLoader interface {
	LoadByID(ctx context.Context, id string) (*models.AdmissionDetail, error)
}

type admissionAddressSaver interface {
	Save(ctx context.Context, exec sqlx.ExtContext, currentID *string, field string, in *AddressInput) (*string, error)
}

type stateChangeNotifier interface {
	NotifyStateChange(ctx context.Context, detail *models.AdmissionDetail, before, after models.AdmissionState, actor *models.Actor) error
}

type registrationPublisher interface {
	Publish(ctx context.Context, admissionID string, actor *models.Actor) error
	PublishDetail(ctx context.Context, detail *models.AdmissionDetail, actor *models.Actor) error
}

// AdmissionRequest carries the admission form fields.
type AdmissionRequest struct {
	TrainingID                 string        `json:"trainingId" validate:"required"`
	PersonID                   string        `json:"personId"`
	CitizenshipID              *string       `json:"citizenshipId"`
	PhoneMobile                string        `json:"phoneMobile" validate:"max=30"`
	Email                      string        `json:"email" validate:"omitempty,email,max=255"`
	Address                    *AddressInput `json:"address"`
	HighSchoolDiploma          bool          `json:"highSchoolDiploma"`
	HighSchoolGraduationYear   *int          `json:"highSchoolGraduationYear" validate:"omitempty,min=1900,max=2999"`
	LastDegreeLevel            string        `json:"lastDegreeLevel" validate:"max=50"`
	LastDegreeField            string        `json:"lastDegreeField" validate:"max=50"`
	LastDegreeInstitution      string        `json:"lastDegreeInstitution" validate:"max=50"`
	LastDegreeGraduationYear   *int          `json:"lastDegreeGraduationYear" validate:"omitempty,min=1900,max=2999"`
	OtherEducationalBackground string        `json:"otherEducationalBackground"`
	ProfessionalStatus         string        `json:"professionalStatus" validate:"max=50"`
	CurrentOccupation          string        `json:"currentOccupation" validate:"max=50"`
	CurrentEmployer            string        `json:"currentEmployer" validate:"max=50"`
	ActivitySector             string        `json:"activitySector" validate:"max=50"`
	PastProfessionalActivities string        `json:"pastProfessionalActivities"`
	Motivation                 string        `json:"motivation"`
	ProfessionalInterests      string        `json:"professionalPersonalInterests"`
	Awareness                  string        `json:"awareness" validate:"max=100"`
}

// RegistrationRequest carries registration fields. Nil fields are left as is.
type RegistrationRequest struct {
	RegistrationType          *models.RegistrationType `json:"registrationType" validate:"omitempty,oneof=PRIVATE PROFESSIONAL"`
	UseAddressForBilling      *bool                    `json:"useAddressForBilling"`
	BillingAddress            *AddressInput            `json:"billingAddress"`
	HeadOfficeName            *string                  `json:"headOfficeName" validate:"omitempty,max=255"`
	CompanyNumber             *string                  `json:"companyNumber" validate:"omitempty,max=255"`
	VATNumber                 *string                  `json:"vatNumber" validate:"omitempty,max=255"`
	NationalRegistryNumber    *string                  `json:"nationalRegistryNumber" validate:"omitempty,max=255"`
	IDCardNumber              *string                  `json:"idCardNumber" validate:"omitempty,max=255"`
	PassportNumber            *string                  `json:"passportNumber" validate:"omitempty,max=255"`
	MaritalStatus             *models.MaritalStatus    `json:"maritalStatus" validate:"omitempty,oneof=SINGLE MARRIED WIDOWED DIVORCED SEPARATED LEGAL_COHABITANT"`
	SpouseName                *string                  `json:"spouseName" validate:"omitempty,max=255"`
	ChildrenNumber            *int                     `json:"childrenNumber" validate:"omitempty,min=0"`
	PreviousUCLRegistration   *bool                    `json:"previousUclRegistration"`
	PreviousNoma              *string                  `json:"previousNoma" validate:"omitempty,max=255"`
	UseAddressForPost         *bool                    `json:"useAddressForPost"`
	ResidenceAddress          *AddressInput            `json:"residenceAddress"`
	ResidencePhone            *string                  `json:"residencePhone" validate:"omitempty,max=30"`
	RegistrationFileReceived  *bool                    `json:"registrationFileReceived"`
	PaymentComplete           *bool                    `json:"paymentComplete"`
	FormationSpreading        *bool                    `json:"formationSpreading"`
	PriorExperienceValidation *bool                    `json:"priorExperienceValidation"`
	AssessmentPresented       *bool                    `json:"assessmentPresented"`
	AssessmentSucceeded       *bool                    `json:"assessmentSucceeded"`
	Sessions                  *string                  `json:"sessions" validate:"omitempty,max=255"`
}

// onlyFileFlag reports whether the request touches nothing but the
// registration file flag.
func (r RegistrationRequest) onlyFileFlag() bool {
	return r.RegistrationFileReceived != nil &&
		r.RegistrationType == nil && r.UseAddressForBilling == nil && r.BillingAddress == nil &&
		r.HeadOfficeName == nil && r.CompanyNumber == nil && r.VATNumber == nil &&
		r.NationalRegistryNumber == nil && r.IDCardNumber == nil && r.PassportNumber == nil &&
		r.MaritalStatus == nil && r.SpouseName == nil && r.ChildrenNumber == nil &&
		r.PreviousUCLRegistration == nil && r.PreviousNoma == nil && r.UseAddressForPost == nil &&
		r.ResidenceAddress == nil && r.ResidencePhone == nil && r.PaymentComplete == nil &&
		r.FormationSpreading == nil && r.PriorExperienceValidation == nil &&
		r.AssessmentPresented == nil && r.AssessmentSucceeded == nil && r.Sessions == nil
}

// ChangeStateRequest is the wire form of a transition request.
type ChangeStateRequest struct {
	State        string `json:"state" validate:"required"`
	Reason       string `json:"reason" validate:"max=50"`
	OtherReason  string `json:"otherReason" validate:"max=255"`
	Condition    string `json:"conditionOfAcceptance"`
	AcademicYear *int   `json:"academicYear"`
}

// BulkRequest lists admissions targeted by a bulk action.
type BulkRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// AdmissionService handles admission and registration use-cases.
type AdmissionService struct {
	admissions admissionStore
	persons    admissionPersonStore
	trainings  admissionTrainingReader
	details    admissionDetailLoader
	addresses  admissionAddressSaver
	revisions  *RevisionService
	access     *AccessPolicy
	notifier   stateChangeNotifier
	publisher  registrationPublisher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdmissionService constructs the admission service.
func NewAdmissionService(
	admissions admissionStore,
	persons admissionPersonStore,
	trainings admissionTrainingReader,
	details admissionDetailLoader,
	addresses admissionAddressSaver,
	revisions *RevisionService,
	access *AccessPolicy,
	notifier stateChangeNotifier,
	publisher registrationPublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		admissions: admissions,
		persons:    persons,
		trainings:  trainings,
		details:    details,
		addresses:  addresses,
		revisions:  revisions,
		access:     access,
		notifier:   notifier,
		publisher:  publisher,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Create opens a draft admission for the caller, or for req.PersonID when
// staff create it on a participant's behalf.
func (s *AdmissionService) Create(ctx context.Context, claims *models.JWTClaims, req AdmissionRequest) (*models.AdmissionDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}

	personID := strings.TrimSpace(req.PersonID)
	switch claims.Role {
	case models.RoleParticipant:
		personID = claims.PersonID
	case models.RoleManager, models.RoleTrainingManager:
	default:
		return nil, appErrors.ErrForbidden
	}
	if personID == "" {
		return nil, appErrors.FieldError("personId", "a participant is required")
	}

	training, err := s.loadTraining(ctx, req.TrainingID)
	if err != nil {
		return nil, err
	}
	if !training.Active {
		return nil, appErrors.FieldError("trainingId", "this training is not open for admissions")
	}

	admission := &models.Admission{State: models.AdmissionStateDraft, AcademicYear: training.AcademicYear}
	applyAdmissionRequest(admission, req)

	err = s.revisions.InTx(ctx, func(exec sqlx.ExtContext) error {
		info, err := s.ensurePersonInformation(ctx, exec, personID)
		if err != nil {
			return err
		}
		admission.PersonInformationID = info.ID

		if admission.AddressID, err = s.addresses.Save(ctx, exec, nil, "address", req.Address); err != nil {
			return err
		}
		if err := s.admissions.Create(ctx, exec, admission); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admission")
		}
		return s.revisions.Record(ctx, exec, models.NewRevisionMessage(models.RevisionAdmissionCreation), admission, claims.Actor())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admission created", zap.String("admission_id", admission.ID), zap.String("training_id", admission.TrainingID))
	return s.details.LoadByID(ctx, admission.ID)
}

// Update replaces the admission form fields.
func (s *AdmissionService) Update(ctx context.Context, claims *models.JWTClaims, id string, req AdmissionRequest) (*models.AdmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}
	if _, err := s.loadTraining(ctx, req.TrainingID); err != nil {
		return nil, err
	}

	err := s.revisions.InTx(ctx, func(exec sqlx.ExtContext) error {
		admission, err := s.admissions.GetForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to load admission")
		}
		if err := s.access.CanEdit(ctx, claims, admission); err != nil {
			return err
		}
		applyAdmissionRequest(admission, req)
		if admission.AddressID, err = s.addresses.Save(ctx, exec, admission.AddressID, "address", req.Address); err != nil {
			return err
		}
		if admission.UseAddressForBilling {
			admission.BillingAddressID = admission.AddressID
		}
		if admission.UseAddressForPost {
			admission.ResidenceAddressID = admission.AddressID
		}
		if err := s.admissions.Update(ctx, exec, admission); err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to update admission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.details.LoadByID(ctx, id)
}

// Get returns one admission with its related rows.
func (s *AdmissionService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AdmissionDetail, error) {
	detail, err := s.details.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanView(ctx, claims, &detail.Admission); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns admissions visible to claims and pagination metadata.
func (s *AdmissionService) List(ctx context.Context, claims *models.JWTClaims, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error) {
	if err := s.access.Scope(ctx, claims, &filter); err != nil {
		return nil, nil, err
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size

	admissions, total, err := s.admissions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admissions")
	}
	return admissions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// DeleteDrafts removes the listed drafts the caller may edit. Admissions past
// the draft state are never deleted.
func (s *AdmissionService) DeleteDrafts(ctx context.Context, claims *models.JWTClaims, req BulkRequest) (int64, error) {
	if claims == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection")
	}

	ids := req.IDs
	if claims.Role != models.RoleManager {
		if claims.Role != models.RoleParticipant {
			return 0, appErrors.ErrForbidden
		}
		owned := make([]string, 0, len(ids))
		for _, id := range ids {
			admission, err := s.admissions.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
			}
			if s.access.CanEdit(ctx, claims, admission) == nil {
				owned = append(owned, id)
			}
		}
		ids = owned
	}

	deleted, err := s.admissions.DeleteDrafts(ctx, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete drafts")
	}
	s.logger.Info("draft admissions deleted", zap.Int64("count", deleted), zap.String("actor_id", claims.UserID))
	return deleted, nil
}

// SetArchived archives or unarchives the listed admissions. Each admission
// whose flag changes gets one revision; all changes commit together.
func (s *AdmissionService) SetArchived(ctx context.Context, claims *models.JWTClaims, req BulkRequest, archived bool) (int, error) {
	if claims == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleManager && claims.Role != models.RoleTrainingManager {
		return 0, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection")
	}

	kind := models.RevisionFileUnarchived
	if archived {
		kind = models.RevisionFileArchived
	}
	msg := models.NewRevisionMessage(kind)
	actor := claims.Actor()

	changes := make([]Change, 0, len(req.IDs))
	for _, id := range req.IDs {
		current, err := s.admissions.GetByID(ctx, id)
		if err != nil {
			return 0, notFoundOrInternal(err, "admission not found", "failed to load admission")
		}
		if err := s.access.CanView(ctx, claims, current); err != nil {
			return 0, err
		}
		if current.Archived == archived {
			continue
		}
		admission := &models.Admission{ID: id}
		changes = append(changes, Change{
			Admission: admission,
			Message:   msg,
			Actor:     actor,
			Mutate: func(ctx context.Context, exec sqlx.ExtContext) error {
				locked, err := s.admissions.GetForUpdate(ctx, exec, admission.ID)
				if err != nil {
					return err
				}
				locked.Archived = archived
				if err := s.admissions.Update(ctx, exec, locked); err != nil {
					return err
				}
				*admission = *locked
				return nil
			},
		})
	}
	if err := s.revisions.Apply(ctx, changes...); err != nil {
		return 0, err
	}
	return len(changes), nil
}

// UpdateRegistration applies registration field changes and records one
// revision.
func (s *AdmissionService) UpdateRegistration(ctx context.Context, claims *models.JWTClaims, id string, req RegistrationRequest) (*models.AdmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	fileFlagOnly := req.onlyFileFlag()

	err := s.revisions.InTx(ctx, func(exec sqlx.ExtContext) error {
		admission, err := s.admissions.GetForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to load admission")
		}
		if err := s.access.CanEditRegistration(ctx, claims, admission, fileFlagOnly); err != nil {
			return err
		}

		fileReceived := !admission.RegistrationFileReceived && req.RegistrationFileReceived != nil && *req.RegistrationFileReceived
		applyRegistrationRequest(admission, req)

		if admission.UseAddressForBilling {
			admission.BillingAddressID = admission.AddressID
		} else if req.BillingAddress != nil {
			current := separateAddress(admission.BillingAddressID, admission.AddressID)
			if admission.BillingAddressID, err = s.addresses.Save(ctx, exec, current, "billing_address", req.BillingAddress); err != nil {
				return err
			}
		}
		if admission.UseAddressForPost {
			admission.ResidenceAddressID = admission.AddressID
		} else if req.ResidenceAddress != nil {
			current := separateAddress(admission.ResidenceAddressID, admission.AddressID)
			if admission.ResidenceAddressID, err = s.addresses.Save(ctx, exec, current, "residence_address", req.ResidenceAddress); err != nil {
				return err
			}
		}

		if err := s.admissions.Update(ctx, exec, admission); err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to update admission")
		}
		msg := models.NewRevisionMessage(models.RevisionRegistrationUpdated)
		if fileFlagOnly && fileReceived {
			msg = models.NewRevisionMessage(models.RevisionRegistrationFileReceived)
		}
		return s.revisions.Record(ctx, exec, msg, admission, claims.Actor())
	})
	if err != nil {
		return nil, err
	}
	return s.details.LoadByID(ctx, id)
}

// ChangeState runs a transition request through the workflow, persists the
// new state with its revision, then notifies and, for VALIDATED, publishes
// the registration to EPC. A publish failure is returned after the state
// change has been committed.
func (s *AdmissionService) ChangeState(ctx context.Context, claims *models.JWTClaims, id string, req ChangeStateRequest) (*models.AdmissionDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid state change")
	}
	request, err := workflow.ParseRequest(workflow.RawRequest{
		State:        req.State,
		Reason:       req.Reason,
		OtherReason:  req.OtherReason,
		Condition:    req.Condition,
		AcademicYear: req.AcademicYear,
	})
	if err != nil {
		return nil, err
	}

	actor := claims.Actor()
	var transition workflow.Transition
	err = s.revisions.InTx(ctx, func(exec sqlx.ExtContext) error {
		admission, err := s.admissions.GetForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to load admission")
		}
		if err := s.access.CanChangeState(ctx, claims, admission, request.Target()); err != nil {
			return err
		}
		training, err := s.loadTraining(ctx, admission.TrainingID)
		if err != nil {
			return err
		}

		transition, err = workflow.Apply(admission, request, training.RegistrationRequired, claims.Role.CanValidateRegistration())
		if err != nil {
			return err
		}
		if !transition.Persist() {
			return nil
		}
		if transition.After == models.AdmissionStateSubmitted && admission.SubmittedAt == nil {
			submitted := s.now().UTC()
			admission.SubmittedAt = &submitted
		}
		if err := s.admissions.Update(ctx, exec, admission); err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to update admission")
		}
		return s.revisions.Record(ctx, exec, models.StateChangeMessage(transition.Before, transition.After), admission, actor)
	})
	if err != nil {
		s.logger.Info("state change refused",
			zap.String("admission_id", id),
			zap.String("requested", req.State),
			zap.Error(err))
		return nil, err
	}

	detail, err := s.details.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transition.Changed() {
		return detail, nil
	}

	s.metrics.RecordTransition(transition.Before, transition.After)
	s.logger.Info("admission state changed",
		zap.String("admission_id", id),
		zap.String("from", string(transition.Before)),
		zap.String("to", string(transition.After)),
		zap.String("actor_id", claims.UserID))

	if s.notifier != nil {
		if err := s.notifier.NotifyStateChange(ctx, detail, transition.Before, transition.After, actor); err != nil {
			s.logger.Warn("state change notification failed", zap.String("admission_id", id), zap.Error(err))
		}
	}

	if transition.After == models.AdmissionStateValidated && s.publisher != nil {
		if err := s.publisher.PublishDetail(ctx, detail, actor); err != nil {
			return detail, err
		}
	}
	return detail, nil
}

// InjectEPC retries the EPC publish of a validated registration.
func (s *AdmissionService) InjectEPC(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if !claims.Role.CanValidateRegistration() {
		return appErrors.Clone(appErrors.ErrUnauthorizedValidation, "")
	}
	if s.publisher == nil {
		return appErrors.Clone(appErrors.ErrInternal, "registration queue unavailable")
	}
	return s.publisher.Publish(ctx, id, claims.Actor())
}

// History lists the admission's catalogued revisions, newest first.
func (s *AdmissionService) History(ctx context.Context, claims *models.JWTClaims, id string) ([]models.Revision, error) {
	admission, err := s.admissions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "admission not found", "failed to load admission")
	}
	if err := s.access.CanView(ctx, claims, admission); err != nil {
		return nil, err
	}
	return s.revisions.History(ctx, id)
}

// Choices lists the states the caller may request for the admission.
func (s *AdmissionService) Choices(ctx context.Context, claims *models.JWTClaims, id string) ([]workflow.Choice, error) {
	admission, err := s.admissions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "admission not found", "failed to load admission")
	}
	if err := s.access.CanView(ctx, claims, admission); err != nil {
		return nil, err
	}

	choices := workflow.Choices(admission.State)
	out := make([]workflow.Choice, 0, len(choices))
	for _, choice := range choices {
		if choice.Value == models.AdmissionStateValidated && !claims.Role.CanValidateRegistration() {
			continue
		}
		if s.access.CanChangeState(ctx, claims, admission, choice.Value) != nil {
			continue
		}
		out = append(out, choice)
	}
	return out, nil
}

func (s *AdmissionService) loadTraining(ctx context.Context, id string) (*models.Training, error) {
	training, err := s.trainings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.FieldError("trainingId", "unknown training")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}

func (s *AdmissionService) ensurePersonInformation(ctx context.Context, exec sqlx.ExtContext, personID string) (*models.ContinuingEducationPerson, error) {
	info, err := s.persons.GetInformationByPerson(ctx, personID)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	info = &models.ContinuingEducationPerson{PersonID: personID}
	if err := s.persons.CreateInformation(ctx, exec, info); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create participant profile")
	}
	return info, nil
}

func applyAdmissionRequest(a *models.Admission, req AdmissionRequest) {
	a.TrainingID = req.TrainingID
	a.CitizenshipID = normalizeRef(req.CitizenshipID)
	a.PhoneMobile = strings.TrimSpace(req.PhoneMobile)
	a.Email = strings.TrimSpace(req.Email)
	a.HighSchoolDiploma = req.HighSchoolDiploma
	a.HighSchoolGraduationYear = req.HighSchoolGraduationYear
	a.LastDegreeLevel = strings.TrimSpace(req.LastDegreeLevel)
	a.LastDegreeField = strings.TrimSpace(req.LastDegreeField)
	a.LastDegreeInstitution = strings.TrimSpace(req.LastDegreeInstitution)
	a.LastDegreeGraduationYear = req.LastDegreeGraduationYear
	a.OtherEducationalBackground = strings.TrimSpace(req.OtherEducationalBackground)
	a.ProfessionalStatus = strings.TrimSpace(req.ProfessionalStatus)
	a.CurrentOccupation = strings.TrimSpace(req.CurrentOccupation)
	a.CurrentEmployer = strings.TrimSpace(req.CurrentEmployer)
	a.ActivitySector = strings.TrimSpace(req.ActivitySector)
	a.PastProfessionalActivities = strings.TrimSpace(req.PastProfessionalActivities)
	a.Motivation = strings.TrimSpace(req.Motivation)
	a.ProfessionalInterests = strings.TrimSpace(req.ProfessionalInterests)
	a.Awareness = strings.TrimSpace(req.Awareness)
}

func applyRegistrationRequest(a *models.Admission, req RegistrationRequest) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	if req.RegistrationType != nil {
		a.RegistrationType = *req.RegistrationType
	}
	if req.MaritalStatus != nil {
		a.MaritalStatus = *req.MaritalStatus
	}
	if req.ChildrenNumber != nil {
		a.ChildrenNumber = *req.ChildrenNumber
	}
	setBool(&a.UseAddressForBilling, req.UseAddressForBilling)
	setBool(&a.PreviousUCLRegistration, req.PreviousUCLRegistration)
	setBool(&a.UseAddressForPost, req.UseAddressForPost)
	setBool(&a.RegistrationFileReceived, req.RegistrationFileReceived)
	setBool(&a.PaymentComplete, req.PaymentComplete)
	setBool(&a.FormationSpreading, req.FormationSpreading)
	setBool(&a.PriorExperienceValidation, req.PriorExperienceValidation)
	setBool(&a.AssessmentPresented, req.AssessmentPresented)
	setBool(&a.AssessmentSucceeded, req.AssessmentSucceeded)
	setString(&a.HeadOfficeName, req.HeadOfficeName)
	setString(&a.CompanyNumber, req.CompanyNumber)
	setString(&a.VATNumber, req.VATNumber)
	setString(&a.NationalRegistryNumber, req.NationalRegistryNumber)
	setString(&a.IDCardNumber, req.IDCardNumber)
	setString(&a.PassportNumber, req.PassportNumber)
	setString(&a.SpouseName, req.SpouseName)
	setString(&a.PreviousNoma, req.PreviousNoma)
	setString(&a.ResidencePhone, req.ResidencePhone)
	setString(&a.Sessions, req.Sessions)
}

// separateAddress returns current unless it is shared with the contact
// address, in which case a new row must be created.
func separateAddress(current, contact *string) *string {
	if current == nil || contact == nil {
		return current
	}
	if *current == *contact {
		return nil
	}
	return current
}
