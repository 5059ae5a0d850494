package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	lastList  models.UserFilter
	listErr   error
	revoked   []string
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastList = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type accountPersonStub struct {
	created []models.Person
}

func (a *accountPersonStub) Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error {
	person.ID = "person-new"
	a.created = append(a.created, *person)
	return nil
}

func newUserFixture(users map[string]*models.User) (*UserService, *mockUserRepo, *accountPersonStub) {
	repo := &mockUserRepo{users: users}
	persons := &accountPersonStub{}
	return NewUserService(repo, persons, validator.New(), zap.NewNop()), repo, persons
}

func TestUserServiceListClampsPaging(t *testing.T) {
	svc, repo, _ := newUserFixture(nil)
	repo.listUsers = []models.User{{ID: "1", Email: "a@example.org"}}
	repo.listCount = 1

	users, pagination, err := svc.List(context.Background(), models.UserFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 200, pagination.PageSize)
	assert.Equal(t, 200, repo.lastList.PageSize)
}

func TestUserServiceCreateLinksPerson(t *testing.T) {
	svc, repo, persons := newUserFixture(map[string]*models.User{})

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:     " Trainer@Example.org ",
		FirstName: "Tom",
		LastName:  "Trainer",
		Role:      models.RoleTrainingManager,
		Active:    true,
		Password:  "secret123",
	}, "actor", models.LoginRequest{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "trainer@example.org", user.Email)
	assert.Equal(t, "Trainer Tom", user.FullName)
	require.NotNil(t, user.PersonID)
	assert.Equal(t, "person-new", *user.PersonID)
	require.Len(t, persons.created, 1)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionAccountCreate, repo.auditLogs[0].Action)
	assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)

	_, err = svc.Create(context.Background(), CreateUserRequest{
		Email: "trainer@example.org", FirstName: "T", LastName: "T", Role: models.RoleParticipant, Password: "secret123",
	}, "actor", models.LoginRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc, _, persons := newUserFixture(map[string]*models.User{})

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "x@example.org", FirstName: "X", LastName: "Y", Role: "ADMIN", Password: "secret123",
	}, "actor", models.LoginRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, persons.created)
}

func TestUserServiceUpdateDisablingRevokesSessions(t *testing.T) {
	svc, repo, _ := newUserFixture(map[string]*models.User{
		"1": {ID: "1", Email: "a@example.org", Role: models.RoleStudentWorker, Active: true},
	})
	role := models.RoleTrainingManager
	active := false

	user, err := svc.Update(context.Background(), "1", UpdateUserRequest{Role: &role, Active: &active}, "actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTrainingManager, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, []string{"1"}, repo.revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.NotEmpty(t, repo.auditLogs[0].OldValues)
}

func TestUserServiceUpdateSelfDemotion(t *testing.T) {
	svc, _, _ := newUserFixture(map[string]*models.User{
		"actor": {ID: "actor", Role: models.RoleManager, Active: true},
	})
	role := models.RoleParticipant

	_, err := svc.Update(context.Background(), "actor", UpdateUserRequest{Role: &role}, "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "role")

	_, err = svc.Update(context.Background(), "missing", UpdateUserRequest{}, "actor", models.LoginRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceDeleteDisables(t *testing.T) {
	svc, repo, _ := newUserFixture(map[string]*models.User{
		"1": {ID: "1", Email: "a@example.org", Role: models.RoleParticipant, Active: true},
	})

	require.NoError(t, svc.Delete(context.Background(), "1", "actor", models.LoginRequest{}))
	assert.False(t, repo.users["1"].Active)
	assert.Equal(t, []string{"1"}, repo.revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionAccountDisable, repo.auditLogs[0].Action)

	err := svc.Delete(context.Background(), "actor", "actor", models.LoginRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
