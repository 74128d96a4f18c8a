package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignInWithGoogle(ctx context.Context, credential string) (*service.AuthResult, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func requestWithUserID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-123")
	return req.WithContext(ctx)
}

func newTestUser() *domain.User {
	return &domain.User{
		ID:        "user-123",
		GoogleID:  "g-789",
		Email:     "jo@example.com",
		Name:      "Jo",
		Picture:   "https://example.com/jo.png",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAuthHandler_GoogleAuth_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("SignInWithGoogle", mock.Anything, "cred-abc").Return(&service.AuthResult{
		AccessToken: "token-xyz",
		User:        newTestUser(),
	}, nil)

	body := `{"credential":"cred-abc"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.GoogleAuth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "token-xyz", data["access_token"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "user-123", user["id"])
	assert.Equal(t, "jo@example.com", user["email"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_GoogleAuth_MissingCredential(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.GoogleAuth(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "SignInWithGoogle")
}

func TestAuthHandler_GoogleAuth_InvalidCredential(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("SignInWithGoogle", mock.Anything, "bogus").Return(nil, domain.ErrInvalidCredential)

	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader([]byte(`{"credential":"bogus"}`)))
	w := httptest.NewRecorder()

	handler.GoogleAuth(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Me_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("Me", mock.Anything, "user-123").Return(newTestUser(), nil)

	req := requestWithUserID(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	handler.Me(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "g-789", data["google_id"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_Me_Unauthorized(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	handler.Me(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockSvc.AssertNotCalled(t, "Me")
}
