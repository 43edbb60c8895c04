package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware_AuthBudget(t *testing.T) {
	mw := NewRateLimitMiddleware(100, 1)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	// Burst of 1: the second immediate attempt is throttled.
	req2 := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_GeneralBudget(t *testing.T) {
	mw := NewRateLimitMiddleware(100, 1)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/api/v1/sync/clients/changes", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_PerClientIsolation(t *testing.T) {
	mw := NewRateLimitMiddleware(100, 1)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	exhaust := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	exhaust.Header.Set("X-Forwarded-For", "10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), exhaust)

	blocked := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	blocked.Header.Set("X-Forwarded-For", "10.0.0.1")
	recBlocked := httptest.NewRecorder()
	handler.ServeHTTP(recBlocked, blocked)
	assert.Equal(t, http.StatusTooManyRequests, recBlocked.Code)

	other := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	other.Header.Set("X-Forwarded-For", "10.0.0.2")
	recOther := httptest.NewRecorder()
	handler.ServeHTTP(recOther, other)
	assert.Equal(t, http.StatusOK, recOther.Code)
}

func TestRateLimitMiddleware_WebsocketExempt(t *testing.T) {
	mw := NewRateLimitMiddleware(100, 1)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/ws", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
