package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-subtracker/internal/application/session"
	"github.com/go-subtracker/internal/config"
	"github.com/go-subtracker/internal/domain"
	jwtinfra "github.com/go-subtracker/internal/infrastructure/jwt"
	"github.com/go-subtracker/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) GetMe(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) UpdateMe(ctx context.Context, userID string, req domain.UpdateMeRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*session.LoginResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

// bearerReq builds a request with a signed Bearer token for the given userID and role.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID, role string, body []byte) *http.Request {
	t.Helper()
	token, _, err := p.Sign(userID, role)
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

// asUser returns a request whose context already carries claims for userID.
func asUser(method, target, userID string, body []byte) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID, Role: domain.RoleUser}))
}

// --- Register ---

func TestRegister_InvalidBody(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{})
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegister_ValidationFailure(t *testing.T) {
	svc := &mockUserSvc{}
	h := NewUserHandler(svc)
	body, _ := json.Marshal(domain.CreateUserRequest{Email: "alice@example.com"})
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_ServiceConflict(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrConflict)
	h := NewUserHandler(svc)
	body, _ := json.Marshal(domain.CreateUserRequest{
		Email: "alice@example.com", Password: "secret123", FirstName: "Alice",
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestRegister_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(&domain.User{UserID: "u1", Email: "alice@example.com", PasswordHash: "hash"}, nil)
	h := NewUserHandler(svc)
	body, _ := json.Marshal(domain.CreateUserRequest{
		Email: "alice@example.com", Password: "secret123", FirstName: "Alice",
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "hash")
	var resp domain.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "u1", resp.UserID)
	svc.AssertExpectations(t)
}

// --- Me ---

func TestGetMe_MissingClaims(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{})
	rr := httptest.NewRecorder()
	h.GetMe(rr, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetMe_ThroughAuth(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	prefs := domain.DefaultNotificationPreferences()
	svc.On("GetMe", mock.Anything, "u1").Return(&domain.User{UserID: "u1", NotificationPreferences: &prefs}, nil)
	h := NewUserHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.GetMe), rr, bearerReq(t, p, http.MethodGet, "/v1/me", "u1", domain.RoleUser, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"reminder_days":[3,1]`)
	svc.AssertExpectations(t)
}

func TestGetMe_NotFound(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("GetMe", mock.Anything, "u1").Return(nil, domain.ErrNotFound)
	rr := httptest.NewRecorder()
	NewUserHandler(svc).GetMe(rr, asUser(http.MethodGet, "/v1/me", "u1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateMe_RejectsOutOfRangeReminderDays(t *testing.T) {
	svc := &mockUserSvc{}
	body := []byte(`{"notification_preferences":{"reminder_days":[3,400]}}`)
	rr := httptest.NewRecorder()
	NewUserHandler(svc).UpdateMe(rr, asUser(http.MethodPut, "/v1/me", "u1", body))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "UpdateMe", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateMe_RejectsDuplicateReminderDays(t *testing.T) {
	body := []byte(`{"notification_preferences":{"reminder_days":[3,3]}}`)
	rr := httptest.NewRecorder()
	NewUserHandler(&mockUserSvc{}).UpdateMe(rr, asUser(http.MethodPut, "/v1/me", "u1", body))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUpdateMe_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("UpdateMe", mock.Anything, "u1", mock.MatchedBy(func(req domain.UpdateMeRequest) bool {
		p := req.NotificationPreferences
		return p != nil && p.EmailEnabled != nil && !*p.EmailEnabled && len(p.ReminderDays) == 2 && p.ReminderDays[0] == 7
	})).Return(&domain.User{UserID: "u1"}, nil)

	body := []byte(`{"notification_preferences":{"email_enabled":false,"reminder_days":[7,-1]}}`)
	rr := httptest.NewRecorder()
	NewUserHandler(svc).UpdateMe(rr, asUser(http.MethodPut, "/v1/me", "u1", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- Login ---

func TestLogin_Unauthorized(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.ErrUnauthorized)
	body, _ := json.Marshal(session.LoginRequest{Email: "a@example.com", Password: "x"})
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Login(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogin_Disabled(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.ErrForbidden)
	body, _ := json.Marshal(session.LoginRequest{Email: "a@example.com", Password: "x"})
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Login(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLogin_HappyPath(t *testing.T) {
	svc := &mockSessionSvc{}
	exp := time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC)
	svc.On("Login", mock.Anything, session.LoginRequest{Email: "a@example.com", Password: "secret123"}).
		Return(&session.LoginResult{Bearer: "tok", ExpiresAt: exp, User: &domain.User{UserID: "u1"}}, nil)
	body, _ := json.Marshal(session.LoginRequest{Email: "a@example.com", Password: "secret123"})
	rr := httptest.NewRecorder()
	NewSessionHandler(svc).Login(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp AuthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "tok", resp.Bearer)
	assert.True(t, exp.Equal(resp.ExpiresAt))
	assert.Equal(t, "u1", resp.User.UserID)
}

func TestLogin_MissingFields(t *testing.T) {
	rr := httptest.NewRecorder()
	NewSessionHandler(&mockSessionSvc{}).Login(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/login", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

// --- health ---

func TestPing(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("action", "ping")
	NewHealthHandler().Ping(rr, r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}
