package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

const trainingCachePrefix = "trainings:"

type trainingStore interface {
	GetByID(ctx context.Context, id string) (*models.Training, error)
	List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error)
	Create(ctx context.Context, training *models.Training) error
	Update(ctx context.Context, training *models.Training) error
	ListYears(ctx context.Context, educationGroupID string) ([]models.EducationGroupYear, error)
	ListManagers(ctx context.Context, trainingID string) ([]models.Person, error)
	AddManager(ctx context.Context, trainingID, personID string) error
	RemoveManager(ctx context.Context, trainingID, personID string) error
	ManagedTrainingIDs(ctx context.Context, personID string) ([]string, error)
}

// CreateTrainingRequest publishes an education group as a training.
type CreateTrainingRequest struct {
	EducationGroupID       string   `json:"educationGroupId" validate:"required"`
	Active                 bool     `json:"active"`
	TrainingAid            bool     `json:"trainingAid"`
	RegistrationRequired   *bool    `json:"registrationRequired"`
	SendNotificationEmails *bool    `json:"sendNotificationEmails"`
	AlternateEmails        []string `json:"alternateNotificationEmailAddresses" validate:"omitempty,dive,email"`
}

// UpdateTrainingRequest changes training flags. Nil fields are left untouched;
// an empty email list clears the alternate addresses.
type UpdateTrainingRequest struct {
	Active                 *bool    `json:"active"`
	TrainingAid            *bool    `json:"trainingAid"`
	RegistrationRequired   *bool    `json:"registrationRequired"`
	SendNotificationEmails *bool    `json:"sendNotificationEmails"`
	AlternateEmails        []string `json:"alternateNotificationEmailAddresses" validate:"omitempty,dive,email"`
}

// TrainingService manages continuing-education trainings and their managers.
type TrainingService struct {
	repo      trainingStore
	cache     *CacheService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewTrainingService constructs the service.
func NewTrainingService(repo trainingStore, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *TrainingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TrainingService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger, ttl: ttl}
}

// List returns trainings visible to the caller. Participants only see active ones.
func (s *TrainingService) List(ctx context.Context, claims *models.JWTClaims, filter models.TrainingFilter) ([]models.Training, *models.Pagination, error) {
	if claims != nil && claims.Role == models.RoleParticipant {
		active := true
		filter.Active = &active
		filter.ManagerID = ""
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

	trainings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainings")
	}
	return trainings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a training with its managers.
func (s *TrainingService) Get(ctx context.Context, id string) (*models.Training, error) {
	training, _, err := s.GetCached(ctx, id)
	return training, err
}

// GetCached is Get that also reports whether the training came from cache.
func (s *TrainingService) GetCached(ctx context.Context, id string) (*models.Training, bool, error) {
	return cached(ctx, s.cache, trainingCachePrefix+id, s.ttl, func(ctx context.Context) (*models.Training, error) {
		training, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
		}
		managers, err := s.repo.ListManagers(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training managers")
		}
		training.Managers = managers
		return training, nil
	})
}

// Create publishes a training. The education group must have at least one
// yearly edition; acronym, title and year are taken from the latest one.
func (s *TrainingService) Create(ctx context.Context, claims *models.JWTClaims, req CreateTrainingRequest) (*models.Training, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}
	latest, err := s.latestYear(ctx, req.EducationGroupID)
	if err != nil {
		return nil, err
	}

	training := &models.Training{
		EducationGroupID:      req.EducationGroupID,
		Active:                req.Active,
		TrainingAid:           req.TrainingAid,
		RegistrationRequired:  boolOr(req.RegistrationRequired, true),
		SendNotificationEmail: boolOr(req.SendNotificationEmails, true),
		AlternateEmails:       joinEmails(req.AlternateEmails),
	}
	if err := s.repo.Create(ctx, training); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training")
	}
	training.Acronym = latest.Acronym
	training.PartialAcronym = latest.PartialAcronym
	training.Title = latest.Title
	training.AcademicYear = latest.AcademicYear
	training.Faculty = latest.Faculty

	s.logger.Info("training created", zap.String("training_id", training.ID), zap.String("acronym", training.Acronym))
	s.emitAudit(ctx, claims, training.ID)
	return training, nil
}

// Update changes training flags. Training managers may only update their own trainings.
func (s *TrainingService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateTrainingRequest) (*models.Training, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}
	if err := s.ensureManages(ctx, claims, id); err != nil {
		return nil, err
	}
	training, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "training not found", "failed to load training")
	}

	if req.Active != nil {
		training.Active = *req.Active
	}
	if req.TrainingAid != nil {
		training.TrainingAid = *req.TrainingAid
	}
	if req.RegistrationRequired != nil {
		training.RegistrationRequired = *req.RegistrationRequired
	}
	if req.SendNotificationEmails != nil {
		training.SendNotificationEmail = *req.SendNotificationEmails
	}
	if req.AlternateEmails != nil {
		training.AlternateEmails = joinEmails(req.AlternateEmails)
	}

	if err := s.repo.Update(ctx, training); err != nil {
		return nil, notFoundOrInternal(err, "training not found", "failed to update training")
	}
	s.invalidate(ctx, id)
	s.emitAudit(ctx, claims, id)
	return training, nil
}

// AddManager links a person as training manager.
func (s *TrainingService) AddManager(ctx context.Context, claims *models.JWTClaims, trainingID, personID string) error {
	if strings.TrimSpace(personID) == "" {
		return appErrors.FieldError("personId", "is required")
	}
	if _, err := s.Get(ctx, trainingID); err != nil {
		return err
	}
	if err := s.repo.AddManager(ctx, trainingID, personID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add training manager")
	}
	s.invalidate(ctx, trainingID)
	s.emitAudit(ctx, claims, trainingID)
	return nil
}

// RemoveManager unlinks a training manager.
func (s *TrainingService) RemoveManager(ctx context.Context, claims *models.JWTClaims, trainingID, personID string) error {
	if err := s.repo.RemoveManager(ctx, trainingID, personID); err != nil {
		return notFoundOrInternal(err, "manager not linked to training", "failed to remove training manager")
	}
	s.invalidate(ctx, trainingID)
	s.emitAudit(ctx, claims, trainingID)
	return nil
}

func (s *TrainingService) latestYear(ctx context.Context, educationGroupID string) (*models.EducationGroupYear, error) {
	years, err := s.repo.ListYears(ctx, educationGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load education group years")
	}
	if len(years) == 0 {
		return nil, appErrors.FieldError("educationGroupId", "education group has no yearly edition")
	}
	latest := years[0]
	for _, year := range years[1:] {
		if year.AcademicYear > latest.AcademicYear {
			latest = year
		}
	}
	return &latest, nil
}

func (s *TrainingService) ensureManages(ctx context.Context, claims *models.JWTClaims, trainingID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleManager:
		return nil
	case models.RoleTrainingManager:
		ids, err := s.repo.ManagedTrainingIDs(ctx, claims.PersonID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load managed trainings")
		}
		for _, id := range ids {
			if id == trainingID {
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you do not manage this training")
	default:
		return appErrors.ErrForbidden
	}
}

func (s *TrainingService) invalidate(ctx context.Context, id string) {
	s.cache.Forget(ctx, trainingCachePrefix+id)
}

func (s *TrainingService) emitAudit(ctx context.Context, claims *models.JWTClaims, trainingID string) {
	if s.audit == nil || claims == nil {
		return
	}
	userID := claims.UserID
	resourceID := trainingID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionTrainingUpdate,
		Resource:   "training",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "training-service",
	}); err != nil {
		s.logger.Warn("failed to create training audit", zap.Error(err))
	}
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func joinEmails(emails []string) string {
	cleaned := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.TrimSpace(email)
		key := strings.ToLower(email)
		if email == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, email)
	}
	return strings.Join(cleaned, ",")
}
