package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareLogsStatusAndRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var seen string
	h := Middleware(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/wizard", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "rid-1", seen)
	assert.Equal(t, "rid-1", rr.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, int64(http.StatusTeapot), entry.ContextMap()["status"])
	assert.Equal(t, "/v1/wizard", entry.ContextMap()["path"])
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Middleware(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, int64(2), logs.All()[0].ContextMap()["body_size"])
}

func TestNew(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		log, err := New(env)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}
}
