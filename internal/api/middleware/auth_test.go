package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestBearerAuth_Success(t *testing.T) {
	mockVerifier := new(MockTokenVerifier)
	mockVerifier.On("VerifyToken", mock.Anything, "valid-token").Return("user-789", nil)

	var capturedUserID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := BearerAuth(mockVerifier)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-789", capturedUserID)
	mockVerifier.AssertExpectations(t)
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	mockVerifier := new(MockTokenVerifier)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := BearerAuth(mockVerifier)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockVerifier.AssertNotCalled(t, "VerifyToken")
}

func TestBearerAuth_WrongScheme(t *testing.T) {
	mockVerifier := new(MockTokenVerifier)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := BearerAuth(mockVerifier)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_InvalidToken(t *testing.T) {
	mockVerifier := new(MockTokenVerifier)
	mockVerifier.On("VerifyToken", mock.Anything, "expired").Return("", assert.AnError)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := BearerAuth(mockVerifier)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockVerifier.AssertExpectations(t)
}

func TestGetUserID_ValidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDKey, "user-123")
	assert.Equal(t, "user-123", GetUserID(ctx))
}

func TestGetUserID_MissingContext(t *testing.T) {
	assert.Equal(t, "", GetUserID(context.Background()))
}
