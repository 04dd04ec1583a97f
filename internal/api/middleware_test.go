package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiterPerClient(t *testing.T) {
	l := newRateLimiter(1, 2)
	now := time.Now()
	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now), "buckets are per client")
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)))

	l.sweep(now.Add(time.Hour), time.Minute)
	assert.Empty(t, l.clients)

	assert.Nil(t, newRateLimiter(0, 10))
}

func TestRateLimitResponds429(t *testing.T) {
	s := &Server{Log: zap.NewNop(), limiter: newRateLimiter(1, 1)}
	h := s.rateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodGet, "/v1/wizard", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRecovererWritesProblem(t *testing.T) {
	s := &Server{Log: zap.NewNop()}
	h := s.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
