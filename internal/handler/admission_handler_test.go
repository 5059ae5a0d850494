package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/middleware"
	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/internal/workflow"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

type admissionServiceMock struct {
	filter     models.AdmissionFilter
	stateReq   service.ChangeStateRequest
	archived   *bool
	stateErr   error
	injectErr  error
	lastClaims *models.JWTClaims
}

func (m *admissionServiceMock) List(ctx context.Context, claims *models.JWTClaims, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error) {
	m.filter = filter
	return []models.Admission{{ID: "adm-1"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (m *admissionServiceMock) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AdmissionDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
}

func (m *admissionServiceMock) Create(ctx context.Context, claims *models.JWTClaims, req service.AdmissionRequest) (*models.AdmissionDetail, error) {
	return &models.AdmissionDetail{}, nil
}

func (m *admissionServiceMock) Update(ctx context.Context, claims *models.JWTClaims, id string, req service.AdmissionRequest) (*models.AdmissionDetail, error) {
	return &models.AdmissionDetail{}, nil
}

func (m *admissionServiceMock) UpdateRegistration(ctx context.Context, claims *models.JWTClaims, id string, req service.RegistrationRequest) (*models.AdmissionDetail, error) {
	return &models.AdmissionDetail{}, nil
}

func (m *admissionServiceMock) ChangeState(ctx context.Context, claims *models.JWTClaims, id string, req service.ChangeStateRequest) (*models.AdmissionDetail, error) {
	m.stateReq = req
	m.lastClaims = claims
	if m.stateErr != nil {
		return nil, m.stateErr
	}
	return &models.AdmissionDetail{}, nil
}

func (m *admissionServiceMock) DeleteDrafts(ctx context.Context, claims *models.JWTClaims, req service.BulkRequest) (int64, error) {
	return int64(len(req.IDs)), nil
}

func (m *admissionServiceMock) SetArchived(ctx context.Context, claims *models.JWTClaims, req service.BulkRequest, archived bool) (int, error) {
	m.archived = &archived
	return len(req.IDs), nil
}

func (m *admissionServiceMock) InjectEPC(ctx context.Context, claims *models.JWTClaims, id string) error {
	return m.injectErr
}

func (m *admissionServiceMock) History(ctx context.Context, claims *models.JWTClaims, id string) ([]models.Revision, error) {
	return nil, nil
}

func (m *admissionServiceMock) Choices(ctx context.Context, claims *models.JWTClaims, id string) ([]workflow.Choice, error) {
	return []workflow.Choice{{Value: models.AdmissionStateAccepted, Label: "Accepted"}}, nil
}

func newJSONContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAdmissionHandlerListParsesFilters(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc)
	c, w := newJSONContext(http.MethodGet, "/admissions?state=submitted,accepted&trainingId=tr-1&trainingId=tr-2&archived=false&registration=true&page=2&limit=10", nil, &models.JWTClaims{UserID: "u-m", Role: models.RoleManager})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []models.AdmissionState{models.AdmissionStateSubmitted, models.AdmissionStateAccepted}, svc.filter.States)
	require.Equal(t, []string{"tr-1", "tr-2"}, svc.filter.TrainingIDs)
	require.NotNil(t, svc.filter.Archived)
	require.False(t, *svc.filter.Archived)
	require.True(t, svc.filter.Registration)
	require.Equal(t, 2, svc.filter.Page)
	require.Equal(t, 10, svc.filter.PageSize)

	body := decodeEnvelope(t, w)
	require.Contains(t, body, "pagination")
}

func TestAdmissionHandlerListRejectsUnknownState(t *testing.T) {
	handler := NewAdmissionHandler(&admissionServiceMock{})
	c, w := newJSONContext(http.MethodGet, "/admissions?state=graduated", nil, &models.JWTClaims{UserID: "u-m", Role: models.RoleManager})

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmissionHandlerChangeState(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc)
	claims := &models.JWTClaims{UserID: "u-m", Role: models.RoleManager}
	c, w := newJSONContext(http.MethodPatch, "/admissions/adm-1/state", []byte(`{"state":"REJECTED","reason":"Not enough experience"}`), claims)
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}

	handler.ChangeState(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "REJECTED", svc.stateReq.State)
	require.Equal(t, "Not enough experience", svc.stateReq.Reason)
	require.Same(t, claims, svc.lastClaims)

	svc.stateErr = appErrors.ErrForbiddenTransition
	c, w = newJSONContext(http.MethodPatch, "/admissions/adm-1/state", []byte(`{"state":"DRAFT"}`), claims)
	handler.ChangeState(c)
	require.Equal(t, http.StatusConflict, w.Code)

	c, w = newJSONContext(http.MethodPatch, "/admissions/adm-1/state", []byte(`not json`), claims)
	handler.ChangeState(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmissionHandlerArchiveAndUnarchive(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc)
	claims := &models.JWTClaims{UserID: "u-m", Role: models.RoleManager}

	c, w := newJSONContext(http.MethodPost, "/admissions/archive", []byte(`{"ids":["a","b"]}`), claims)
	handler.Archive(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, *svc.archived)
	body := decodeEnvelope(t, w)
	require.Equal(t, float64(2), body["data"].(map[string]interface{})["count"])

	c, _ = newJSONContext(http.MethodPost, "/admissions/unarchive", []byte(`{"ids":["a"]}`), claims)
	handler.Unarchive(c)
	require.False(t, *svc.archived)
}

func TestAdmissionHandlerInject(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc)
	claims := &models.JWTClaims{UserID: "u-m", Role: models.RoleManager}

	c, w := newJSONContext(http.MethodPost, "/admissions/adm-1/inject", nil, claims)
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}
	handler.Inject(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	svc.injectErr = appErrors.ErrPublish
	c, w = newJSONContext(http.MethodPost, "/admissions/adm-1/inject", nil, claims)
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}
	handler.Inject(c)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, appErrors.ErrPublish.Code, envelope.Error.Code)
}

func TestAdmissionHandlerGetNotFound(t *testing.T) {
	handler := NewAdmissionHandler(&admissionServiceMock{})
	c, w := newJSONContext(http.MethodGet, "/admissions/missing", nil, &models.JWTClaims{UserID: "u-m", Role: models.RoleManager})
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
