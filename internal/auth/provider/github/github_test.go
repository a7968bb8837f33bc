package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/KennethHeine/chat-ai/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGitHub struct {
	tokenStatus int
	tokenBody   map[string]any
	userStatus  int

	gotForm url.Values
	gotAuth string
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		f.gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
		}
		_ = json.NewEncoder(w).Encode(f.tokenBody)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		if f.userStatus >= 300 {
			http.Error(w, `{"message":"Bad credentials"}`, f.userStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if f.userStatus != 0 {
			w.WriteHeader(f.userStatus)
		}
		_, _ = w.Write([]byte(`{"login":"octocat","avatar_url":"https://avatars.example.com/u/1","id":1}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(baseURL string) *Provider {
	return New(Config{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		AuthorizeURL: baseURL + "/login/oauth/authorize",
		TokenURL:     baseURL + "/login/oauth/access_token",
		APIURL:       baseURL,
	})
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := newTestProvider("https://github.example.com")

	u, err := url.Parse(p.AuthCodeURL("state-abc", "challenge-xyz"))
	require.NoError(t, err)

	assert.Equal(t, "github.example.com", u.Host)
	assert.Equal(t, "/login/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "read:user", q.Get("scope"))
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "challenge-xyz", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestProvider_Configured(t *testing.T) {
	assert.True(t, newTestProvider("https://github.example.com").Configured())
	assert.False(t, New(Config{}).Configured())
	assert.Equal(t, "github", New(Config{}).Name())
}

func TestProvider_ExchangeCode(t *testing.T) {
	fake := &fakeGitHub{tokenBody: map[string]any{
		"access_token": "gho_abc",
		"token_type":   "bearer",
		"scope":        "read:user",
	}}
	srv := fake.server(t)
	p := newTestProvider(srv.URL)

	identity, err := p.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)

	assert.Equal(t, "github", identity.Provider)
	assert.Equal(t, "gho_abc", identity.AccessToken)
	assert.Equal(t, "octocat", identity.Login)
	assert.Equal(t, "https://avatars.example.com/u/1", identity.AvatarURL)

	assert.Equal(t, "client-123", fake.gotForm.Get("client_id"))
	assert.Equal(t, "secret-456", fake.gotForm.Get("client_secret"))
	assert.Equal(t, "the-code", fake.gotForm.Get("code"))
	assert.Equal(t, "the-verifier", fake.gotForm.Get("code_verifier"))
	assert.Equal(t, "Bearer gho_abc", fake.gotAuth)
}

func TestProvider_ExchangeCodeAcceptsAny2xxProfile(t *testing.T) {
	fake := &fakeGitHub{
		tokenBody:  map[string]any{"access_token": "gho_abc", "token_type": "bearer"},
		userStatus: http.StatusNonAuthoritativeInfo,
	}
	srv := fake.server(t)
	p := newTestProvider(srv.URL)

	identity, err := p.ExchangeCode(context.Background(), "code", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "octocat", identity.Login)
}

func TestProvider_ExchangeCodeFailures(t *testing.T) {
	tests := []struct {
		name        string
		fake        *fakeGitHub
		wantStatus  int
		wantMessage string
	}{
		{
			name: "provider error with description",
			fake: &fakeGitHub{tokenBody: map[string]any{
				"error":             "bad_verification_code",
				"error_description": "The code passed is incorrect or expired.",
			}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "The code passed is incorrect or expired.",
		},
		{
			name:        "provider error without description",
			fake:        &fakeGitHub{tokenBody: map[string]any{"error": "incorrect_client_credentials"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "incorrect_client_credentials",
		},
		{
			name:        "token endpoint failure",
			fake:        &fakeGitHub{tokenStatus: http.StatusInternalServerError, tokenBody: map[string]any{}},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "GitHub authentication failed",
		},
		{
			name: "profile fetch rejected",
			fake: &fakeGitHub{
				tokenBody:  map[string]any{"access_token": "gho_abc", "token_type": "bearer"},
				userStatus: http.StatusUnauthorized,
			},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "Failed to fetch GitHub user info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tt.fake.server(t)
			p := newTestProvider(srv.URL)

			identity, err := p.ExchangeCode(context.Background(), "code", "verifier")
			require.Error(t, err)
			assert.Nil(t, identity)

			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantStatus, appErr.Status)
			assert.Equal(t, tt.wantMessage, appErr.Message)
		})
	}
}

func TestProvider_ExchangeCodeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	p := newTestProvider(srv.URL)

	_, err := p.ExchangeCode(context.Background(), "code", "verifier")

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, apperr.KindUpstream, appErr.Kind)
}
