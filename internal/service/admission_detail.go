package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type detailAdmissionReader interface {
	GetByID(ctx context.Context, id string) (*models.Admission, error)
}

type detailPersonReader interface {
	GetByID(ctx context.Context, id string) (*models.Person, error)
	GetInformation(ctx context.Context, id string) (*models.ContinuingEducationPerson, error)
}

type detailAddressReader interface {
	GetByID(ctx context.Context, id string) (*models.Address, error)
	GetCountry(ctx context.Context, id string) (*models.Country, error)
}

type detailTrainingReader interface {
	GetByID(ctx context.Context, id string) (*models.Training, error)
}

// DetailLoader assembles an admission with its person, training and addresses.
type DetailLoader struct {
	admissions detailAdmissionReader
	persons    detailPersonReader
	addresses  detailAddressReader
	trainings  detailTrainingReader
}

// NewDetailLoader wires the readers.
func NewDetailLoader(admissions detailAdmissionReader, persons detailPersonReader, addresses detailAddressReader, trainings detailTrainingReader) *DetailLoader {
	return &DetailLoader{admissions: admissions, persons: persons, addresses: addresses, trainings: trainings}
}

// LoadByID fetches the admission then its related rows.
func (l *DetailLoader) LoadByID(ctx context.Context, id string) (*models.AdmissionDetail, error) {
	admission, err := l.admissions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "admission not found", "failed to load admission")
	}
	return l.Load(ctx, admission)
}

// Load completes admission with its related rows.
func (l *DetailLoader) Load(ctx context.Context, admission *models.Admission) (*models.AdmissionDetail, error) {
	detail := &models.AdmissionDetail{Admission: *admission}

	info, err := l.persons.GetInformation(ctx, admission.PersonInformationID)
	if err != nil {
		return nil, notFoundOrInternal(err, "participant not found", "failed to load participant")
	}
	if info.BirthCountryID != nil {
		if info.BirthCountry, err = l.country(ctx, *info.BirthCountryID); err != nil {
			return nil, err
		}
	}
	detail.PersonInfo = *info

	person, err := l.persons.GetByID(ctx, info.PersonID)
	if err != nil {
		return nil, notFoundOrInternal(err, "person not found", "failed to load person")
	}
	detail.Person = *person

	training, err := l.trainings.GetByID(ctx, admission.TrainingID)
	if err != nil {
		return nil, notFoundOrInternal(err, "training not found", "failed to load training")
	}
	detail.Training = *training

	if admission.CitizenshipID != nil {
		if detail.Citizenship, err = l.country(ctx, *admission.CitizenshipID); err != nil {
			return nil, err
		}
	}
	if detail.Address, err = l.address(ctx, admission.AddressID); err != nil {
		return nil, err
	}
	if detail.BillingAddress, err = l.address(ctx, admission.BillingAddressID); err != nil {
		return nil, err
	}
	if detail.ResidenceAddress, err = l.address(ctx, admission.ResidenceAddressID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (l *DetailLoader) country(ctx context.Context, id string) (*models.Country, error) {
	country, err := l.addresses.GetCountry(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load country")
	}
	return country, nil
}

func (l *DetailLoader) address(ctx context.Context, id *string) (*models.Address, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	address, err := l.addresses.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load address")
	}
	return address, nil
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
