package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type accessTrainingReader interface {
	ManagedTrainingIDs(ctx context.Context, personID string) ([]string, error)
}

type accessPersonReader interface {
	GetInformationByPerson(ctx context.Context, personID string) (*models.ContinuingEducationPerson, error)
}

// AccessPolicy decides which admissions a principal may read or change.
type AccessPolicy struct {
	trainings accessTrainingReader
	persons   accessPersonReader
}

// NewAccessPolicy wires the lookups used for role scoping.
func NewAccessPolicy(trainings accessTrainingReader, persons accessPersonReader) *AccessPolicy {
	return &AccessPolicy{trainings: trainings, persons: persons}
}

// CanView reports whether claims may read admission.
func (p *AccessPolicy) CanView(ctx context.Context, claims *models.JWTClaims, admission *models.Admission) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleManager, models.RoleStudentWorker:
		return nil
	case models.RoleTrainingManager:
		return p.managesTraining(ctx, claims, admission.TrainingID)
	case models.RoleParticipant:
		return p.ownsAdmission(ctx, claims, admission)
	default:
		return appErrors.ErrForbidden
	}
}

// CanEdit reports whether claims may change admission form fields.
// Participants edit their own drafts; staff edit submitted files.
func (p *AccessPolicy) CanEdit(ctx context.Context, claims *models.JWTClaims, admission *models.Admission) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleParticipant:
		if admission.State != models.AdmissionStateDraft {
			return appErrors.Clone(appErrors.ErrForbidden, "only draft admissions can be edited")
		}
		return p.ownsAdmission(ctx, claims, admission)
	case models.RoleManager, models.RoleTrainingManager:
		if admission.State == models.AdmissionStateDraft {
			return appErrors.Clone(appErrors.ErrForbidden, "draft admissions are edited by their participant")
		}
		return p.CanView(ctx, claims, admission)
	default:
		return appErrors.ErrForbidden
	}
}

// CanChangeState reports whether claims may request target for admission.
// Participants may only submit a draft or the registration of an accepted
// admission. The validation capability itself is checked by the workflow.
func (p *AccessPolicy) CanChangeState(ctx context.Context, claims *models.JWTClaims, admission *models.Admission, target models.AdmissionState) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleManager, models.RoleTrainingManager:
		return p.CanView(ctx, claims, admission)
	case models.RoleParticipant:
		switch {
		case target == models.AdmissionStateSubmitted && admission.State == models.AdmissionStateDraft:
		case target == models.AdmissionStateRegistrationSubmitted && admission.State == models.AdmissionStateAccepted:
		default:
			return appErrors.Clone(appErrors.ErrForbidden, "participants can only submit a draft admission or the registration of an accepted one")
		}
		return p.ownsAdmission(ctx, claims, admission)
	default:
		return appErrors.ErrForbidden
	}
}

// CanChangeFiles reports whether claims may upload or delete documents of
// admission. Participants are limited to drafts and accepted admissions.
func (p *AccessPolicy) CanChangeFiles(ctx context.Context, claims *models.JWTClaims, admission *models.Admission) error {
	if err := p.CanView(ctx, claims, admission); err != nil {
		return err
	}
	switch claims.Role {
	case models.RoleStudentWorker:
		return appErrors.ErrForbidden
	case models.RoleParticipant:
		if admission.State != models.AdmissionStateDraft && admission.State != models.AdmissionStateAccepted {
			return appErrors.Clone(appErrors.ErrForbidden, "documents can only be changed while the admission is a draft or accepted")
		}
	}
	return nil
}

// CanEditRegistration reports whether claims may change registration fields.
// Student workers may only touch the registration file flag.
func (p *AccessPolicy) CanEditRegistration(ctx context.Context, claims *models.JWTClaims, admission *models.Admission, fileFlagOnly bool) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleManager, models.RoleTrainingManager:
		return p.CanView(ctx, claims, admission)
	case models.RoleStudentWorker:
		if !fileFlagOnly {
			return appErrors.Clone(appErrors.ErrForbidden, "student workers can only mark the registration file as received")
		}
		return nil
	case models.RoleParticipant:
		if admission.State != models.AdmissionStateAccepted {
			return appErrors.Clone(appErrors.ErrForbidden, "the registration can only be completed once the admission is accepted")
		}
		return p.ownsAdmission(ctx, claims, admission)
	default:
		return appErrors.ErrForbidden
	}
}

// Scope restricts filter to what claims may list.
func (p *AccessPolicy) Scope(ctx context.Context, claims *models.JWTClaims, filter *models.AdmissionFilter) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleManager, models.RoleStudentWorker:
		return nil
	case models.RoleTrainingManager:
		managed, err := p.managed(ctx, claims.PersonID)
		if err != nil {
			return err
		}
		if len(filter.TrainingIDs) == 0 {
			filter.TrainingIDs = managed
		} else {
			filter.TrainingIDs = intersect(filter.TrainingIDs, managed)
		}
		if len(filter.TrainingIDs) == 0 {
			// Matches nothing.
			filter.TrainingIDs = []string{""}
		}
		return nil
	case models.RoleParticipant:
		if claims.PersonID == "" {
			return appErrors.ErrForbidden
		}
		filter.PersonID = claims.PersonID
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

func (p *AccessPolicy) managesTraining(ctx context.Context, claims *models.JWTClaims, trainingID string) error {
	managed, err := p.managed(ctx, claims.PersonID)
	if err != nil {
		return err
	}
	for _, id := range managed {
		if id == trainingID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you do not manage this training")
}

func (p *AccessPolicy) managed(ctx context.Context, personID string) ([]string, error) {
	if personID == "" {
		return nil, nil
	}
	ids, err := p.trainings.ManagedTrainingIDs(ctx, personID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load managed trainings")
	}
	return ids, nil
}

func (p *AccessPolicy) ownsAdmission(ctx context.Context, claims *models.JWTClaims, admission *models.Admission) error {
	if claims.PersonID == "" {
		return appErrors.ErrForbidden
	}
	info, err := p.persons.GetInformationByPerson(ctx, claims.PersonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrForbidden
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	if info.ID != admission.PersonInformationID {
		return appErrors.ErrForbidden
	}
	return nil
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
