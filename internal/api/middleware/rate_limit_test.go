package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToCapacity(t *testing.T) {
	limiter := NewRateLimiter(3)

	assert.True(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-1"))
	assert.False(t, limiter.Allow("user-1"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1)

	assert.True(t, limiter.Allow("user-1"))
	assert.False(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-2"))
}

func TestRateLimiter_ZeroDisablesLimiting(t *testing.T) {
	limiter := NewRateLimiter(0)

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("user-1"))
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := RateLimit(limiter)(handler)

	makeRequest := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		if userID != "" {
			req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
		}
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, makeRequest("user-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, makeRequest("user-1").Code)

	// A different user is unaffected.
	assert.Equal(t, http.StatusOK, makeRequest("user-2").Code)
}

func TestRateLimit_AnonymousFallsBackToIP(t *testing.T) {
	limiter := NewRateLimiter(1)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := RateLimit(limiter)(handler)

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
