package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type prospectStore interface {
	Create(ctx context.Context, prospect *models.Prospect) error
	List(ctx context.Context, filter models.ProspectFilter) ([]models.Prospect, int, error)
}

type prospectTrainingReader interface {
	GetByID(ctx context.Context, id string) (*models.Training, error)
}

// CreateProspectRequest is submitted anonymously from the public site.
type CreateProspectRequest struct {
	Name        string  `json:"name" validate:"max=250"`
	FirstName   string  `json:"firstName" validate:"max=250"`
	PostalCode  string  `json:"postalCode" validate:"max=12"`
	City        string  `json:"city" validate:"max=40"`
	Email       string  `json:"email" validate:"required,email"`
	PhoneNumber string  `json:"phoneNumber" validate:"max=30"`
	TrainingID  *string `json:"trainingId"`
}

// ProspectService captures leads and lists them for managers.
type ProspectService struct {
	repo      prospectStore
	trainings prospectTrainingReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProspectService constructs the service.
func NewProspectService(repo prospectStore, trainings prospectTrainingReader, validate *validator.Validate, logger *zap.Logger) *ProspectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProspectService{repo: repo, trainings: trainings, validator: validate, logger: logger}
}

// Create stores a prospect. A referenced training must exist and be active.
func (s *ProspectService) Create(ctx context.Context, req CreateProspectRequest) (*models.Prospect, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prospect payload")
	}

	trainingID := normalizeRef(req.TrainingID)
	if trainingID != nil {
		training, err := s.trainings.GetByID(ctx, *trainingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.FieldError("trainingId", "unknown training")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
		}
		if !training.Active {
			return nil, appErrors.FieldError("trainingId", "training is not open to applications")
		}
	}

	prospect := &models.Prospect{
		Name:        strings.TrimSpace(req.Name),
		FirstName:   strings.TrimSpace(req.FirstName),
		PostalCode:  strings.TrimSpace(req.PostalCode),
		City:        strings.TrimSpace(req.City),
		Email:       req.Email,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		TrainingID:  trainingID,
	}
	if err := s.repo.Create(ctx, prospect); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create prospect")
	}
	s.logger.Info("prospect created", zap.String("prospect_id", prospect.ID))
	return prospect, nil
}

// List returns prospects for managers.
func (s *ProspectService) List(ctx context.Context, claims *models.JWTClaims, filter models.ProspectFilter) ([]models.Prospect, *models.Pagination, error) {
	if claims == nil || claims.Role != models.RoleManager {
		return nil, nil, appErrors.ErrForbidden
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	if size > 200 {
		size = 200
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size

	prospects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prospects")
	}
	return prospects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
