package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "client", err: Client("Missing authorization code"), wantStatus: 400, wantBody: `{"error":"Missing authorization code"}`},
		{name: "auth", err: Auth("Not authenticated"), wantStatus: 401, wantBody: `{"error":"Not authenticated"}`},
		{name: "upstream passthrough", err: Upstream(http.StatusForbidden, "Token exchange failed: nope"), wantStatus: 403, wantBody: `{"error":"Token exchange failed: nope"}`},
		{name: "transport hides cause", err: Transport("GitHub authentication failed", errors.New("dial tcp: refused")), wantStatus: 502, wantBody: `{"error":"GitHub authentication failed"}`},
		{name: "rate limited", err: RateLimited(), wantStatus: 429, wantBody: `{"error":"Too many requests. Please try again later."}`},
		{name: "wrapped", err: fmt.Errorf("handler: %w", Config("GITHUB_CLIENT_ID is not configured")), wantStatus: 500, wantBody: `{"error":"GITHUB_CLIENT_ID is not configured"}`},
		{name: "untyped", err: errors.New("pq: password authentication failed"), wantStatus: 500, wantBody: `{"error":"internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			Write(c, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.True(t, c.IsAborted())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Internal("failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal: failed: boom", err.Error())
	assert.Equal(t, "client: bad", Client("bad").Error())
}
