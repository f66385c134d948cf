package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"diaspora-map/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Config
		debug bool
	}{
		{"development defaults to debug", config.Config{Environment: "development"}, true},
		{"production defaults to info", config.Config{Environment: "production"}, false},
		{"explicit level", config.Config{Environment: "development", LogLevel: "warn"}, false},
		{"unknown level keeps default", config.Config{Environment: "development", LogLevel: "chatty"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&tt.cfg)
			assert.Equal(t, tt.debug, l.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestForRequest(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	var inner *zap.Logger
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = ForRequest(base, r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals?limit=5", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, inner)
	inner.Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/proposals", fields["path"])
	assert.Equal(t, "req-42", fields["request_id"])
}
