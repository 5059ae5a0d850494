package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
)

type trainingServiceMock struct {
	hit    bool
	filter models.TrainingFilter
	person string
}

func (m *trainingServiceMock) List(ctx context.Context, claims *models.JWTClaims, filter models.TrainingFilter) ([]models.Training, *models.Pagination, error) {
	m.filter = filter
	return nil, &models.Pagination{Page: 1, PageSize: filter.PageSize}, nil
}

func (m *trainingServiceMock) GetCached(ctx context.Context, id string) (*models.Training, bool, error) {
	return &models.Training{ID: id, Acronym: "MDEMO2FC"}, m.hit, nil
}

func (m *trainingServiceMock) Create(ctx context.Context, claims *models.JWTClaims, req service.CreateTrainingRequest) (*models.Training, error) {
	return &models.Training{ID: "tr-new"}, nil
}

func (m *trainingServiceMock) Update(ctx context.Context, claims *models.JWTClaims, id string, req service.UpdateTrainingRequest) (*models.Training, error) {
	return &models.Training{ID: id}, nil
}

func (m *trainingServiceMock) AddManager(ctx context.Context, claims *models.JWTClaims, trainingID, personID string) error {
	m.person = personID
	return nil
}

func (m *trainingServiceMock) RemoveManager(ctx context.Context, claims *models.JWTClaims, trainingID, personID string) error {
	return nil
}

func TestTrainingHandlerGetReportsCacheHit(t *testing.T) {
	handler := NewTrainingHandler(&trainingServiceMock{hit: true})
	c, w := newJSONContext(http.MethodGet, "/trainings/tr-1", nil, &models.JWTClaims{UserID: "u-m", Role: models.RoleManager})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	require.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
}

func TestTrainingHandlerListAndManagers(t *testing.T) {
	svc := &trainingServiceMock{}
	handler := NewTrainingHandler(svc)
	claims := &models.JWTClaims{UserID: "u-m", Role: models.RoleManager}

	c, w := newJSONContext(http.MethodGet, "/trainings?active=true&search=%20demo%20", nil, claims)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, *svc.filter.Active)
	require.Equal(t, "demo", svc.filter.Search)
	require.Equal(t, 50, svc.filter.PageSize)

	c, w = newJSONContext(http.MethodPost, "/trainings/tr-1/managers", []byte(`{"personId":"person-x"}`), claims)
	handler.AddManager(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "person-x", svc.person)

	c, w = newJSONContext(http.MethodPost, "/trainings/tr-1/managers", []byte(`{}`), claims)
	handler.AddManager(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
