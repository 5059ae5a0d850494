package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type authServiceMock struct {
	login      models.LoginRequest
	logoutUser string
	logoutRaw  string
	logoutMeta models.LoginRequest
	changed    string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.login = req
	if req.Password != "secret123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{
		TokenPair: models.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"},
		User:      models.UserInfo{ID: "u1"},
	}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error) {
	if req.RefreshToken != "refresh" {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error {
	m.logoutRaw, m.logoutUser, m.logoutMeta = refreshToken, userID, meta
	return nil
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	m.changed = userID
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID, Role: models.RoleManager}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newJSONContext(http.MethodPost, "/auth/login", []byte(`{"email":"user@example.org","password":"secret123"}`), nil)
	c.Request.Header.Set("User-Agent", "test-agent")
	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user@example.org", svc.login.Email)
	require.Equal(t, "test-agent", svc.login.UserAgent)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	require.Equal(t, "access", data["access_token"])

	c, w = newJSONContext(http.MethodPost, "/auth/login", []byte(`{"email":"user@example.org","password":"nope"}`), nil)
	h.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newJSONContext(http.MethodPost, "/auth/login", []byte(`{`), nil)
	h.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})

	c, w := newJSONContext(http.MethodPost, "/auth/refresh", []byte(`{"refresh_token":"refresh"}`), nil)
	h.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newJSONContext(http.MethodPost, "/auth/refresh", []byte(`{"refresh_token":"stolen"}`), nil)
	h.Refresh(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogoutRequiresSession(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newJSONContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`), nil)
	h.Logout(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newJSONContext(http.MethodPost, "/auth/logout", []byte(`{}`), &models.JWTClaims{UserID: "u1"})
	h.Logout(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`), &models.JWTClaims{UserID: "u1"})
	h.Logout(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "u1", svc.logoutUser)
	require.Equal(t, "refresh", svc.logoutRaw)
}

func TestAuthHandlerChangePasswordAndMe(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleManager}

	c, w := newJSONContext(http.MethodPost, "/auth/change-password", []byte(`{"old_password":"secret123","new_password":"secret456"}`), claims)
	h.ChangePassword(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "u1", svc.changed)

	c, w = newJSONContext(http.MethodGet, "/auth/me", nil, claims)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	require.Equal(t, "u1", data["id"])
}
