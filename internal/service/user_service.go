package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type accountPersonStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error
}

// CreateUserRequest represents payload for creating accounts.
type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email"`
	FirstName string          `json:"firstName" validate:"required"`
	LastName  string          `json:"lastName" validate:"required"`
	Gender    models.Gender   `json:"gender" validate:"omitempty,oneof=F H"`
	Role      models.UserRole `json:"role" validate:"required,oneof=MANAGER TRAINING_MANAGER STUDENT_WORKER PARTICIPANT"`
	Active    bool            `json:"active"`
	Password  string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest changes the role or active flag of an account.
type UpdateUserRequest struct {
	Role   *models.UserRole `json:"role" validate:"omitempty,oneof=MANAGER TRAINING_MANAGER STUDENT_WORKER PARTICIPANT"`
	Active *bool            `json:"active"`
}

// UserService handles account management for managers.
type UserService struct {
	repo      userRepository
	persons   accountPersonStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, persons accountPersonStore, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, persons: persons, validator: validate, logger: logger}
}

// List returns paginated accounts and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns an account by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Create adds an account together with the person it identifies. Training
// managers are linked to trainings through that person.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	person := &models.Person{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Gender:    req.Gender,
	}
	if err := s.persons.Create(ctx, nil, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
	}

	personID := person.ID
	user := &models.User{
		ID:           uuid.NewString(),
		PersonID:     &personID,
		Email:        email,
		FullName:     person.FullName(),
		Role:         req.Role,
		Active:       req.Active,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("account created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	s.recordAudit(ctx, actorID, models.AuditActionAccountCreate, user.ID, nil, newPayload, meta)
	return user, nil
}

// Update modifies the role or active flag. Disabling an account through
// Update also revokes its sessions.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	if id == actorID && req.Role != nil && *req.Role != models.RoleManager {
		return nil, appErrors.FieldError("role", "managers cannot demote themselves")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "user not found", "failed to load user")
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"role": user.Role, "active": user.Active})

	if req.Role != nil {
		user.Role = *req.Role
	}
	disabled := false
	if req.Active != nil {
		disabled = user.Active && !*req.Active
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, notFoundOrInternal(err, "user not found", "failed to update user")
	}
	if disabled {
		s.revokeSessions(ctx, user.ID)
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"role": user.Role, "active": user.Active})
	s.recordAudit(ctx, actorID, models.AuditActionAccountUpdate, user.ID, oldPayload, newPayload, meta)
	return user, nil
}

// Delete disables an account and revokes its refresh tokens. Accounts are
// never removed because revisions reference their authors.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "managers cannot disable their own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOrInternal(err, "user not found", "failed to load user")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return notFoundOrInternal(err, "user not found", "failed to disable user")
	}
	s.revokeSessions(ctx, id)

	oldPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	newPayload, _ := json.Marshal(map[string]interface{}{"active": false})
	s.recordAudit(ctx, actorID, models.AuditActionAccountDisable, user.ID, oldPayload, newPayload, meta)
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *UserService) recordAudit(ctx context.Context, actorID, action, userID string, oldValues, newValues []byte, meta models.LoginRequest) {
	resourceID := userID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record account audit log", zap.String("action", action), zap.Error(err))
	}
}
