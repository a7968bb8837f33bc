package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KennethHeine/chat-ai/internal/config"
	"github.com/KennethHeine/chat-ai/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("APP_ENV", config.EnvTest)
	t.Setenv("SESSION_BACKEND", config.BackendMemory)
	t.Setenv("GITHUB_CLIENT_ID", "client-123")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestNew_Routes(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/auth/github", http.StatusFound},
		{http.MethodGet, "/auth/github/callback", http.StatusBadRequest},
		{http.MethodGet, "/auth/me", http.StatusUnauthorized},
		{http.MethodGet, "/auth/copilot-token", http.StatusUnauthorized},
		{http.MethodPost, "/auth/logout", http.StatusOK},
		{http.MethodPost, "/api/chat", http.StatusUnauthorized},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("X-Forwarded-For", "192.0.2.1")
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSetupInfra_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "cookie", env: map[string]string{"SESSION_BACKEND": "cookie", "SESSION_SECRET": "s3cret"}},
		{name: "cookie dev fallback", env: map[string]string{"SESSION_BACKEND": "cookie", "APP_ENV": "development"}},
		{name: "cookie without secret", env: map[string]string{"SESSION_BACKEND": "cookie"}, wantErr: true},
		{name: "redis", env: map[string]string{"SESSION_BACKEND": "redis", "REDIS_ADDR": mr.Addr()}},
		{name: "sql", env: map[string]string{"SESSION_BACKEND": "sql", "DATABASE_URL": ":memory:"}},
		{name: "memory", env: map[string]string{"SESSION_BACKEND": "memory"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", config.EnvTest)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.Load("")
			require.NoError(t, err)

			infra, err := setupInfra(context.Background(), cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, infra.Sessions)
			assert.NoError(t, infra.Sessions.Close())
		})
	}
}

func TestSetupInfra_CookieBackendWarnsOutsideDevelopment(t *testing.T) {
	tests := []struct {
		env      string
		wantWarn bool
	}{
		{env: config.EnvTest, wantWarn: true},
		{env: config.EnvDev, wantWarn: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			prev := logger.Logger()
			logger.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
			t.Cleanup(func() { logger.SetLogger(prev) })

			t.Setenv("APP_ENV", tt.env)
			t.Setenv("SESSION_BACKEND", config.BackendCookie)
			t.Setenv("SESSION_SECRET", "s3cret")
			cfg, err := config.Load("")
			require.NoError(t, err)

			infra, err := setupInfra(context.Background(), cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = infra.Sessions.Close() })

			if tt.wantWarn {
				assert.Contains(t, buf.String(), "cannot revoke sessions server-side")
			} else {
				assert.NotContains(t, buf.String(), "cannot revoke sessions server-side")
			}
		})
	}
}
