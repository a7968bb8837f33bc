package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KennethHeine/chat-ai/internal/apperr"
	"github.com/KennethHeine/chat-ai/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatClient_Complete(t *testing.T) {
	var (
		gotPath    string
		gotAuth    string
		gotPayload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello there"}}]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewChatClient(srv.Client(), "")
	cred := &session.Credential{Token: "copilot-token", BaseURL: srv.URL + "/"}
	messages := []json.RawMessage{json.RawMessage(`{"role":"user","content":"Hi"}`)}

	reply, err := c.Complete(context.Background(), cred, "", messages)
	require.NoError(t, err)

	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer copilot-token", gotAuth)
	assert.Equal(t, "gpt-4o", gotPayload["model"])
	assert.Equal(t, false, gotPayload["stream"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "Hi"}}, gotPayload["messages"])
}

func TestChatClient_ModelOverride(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotModel = payload.Model
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewChatClient(srv.Client(), "gpt-4o")
	_, err := c.Complete(context.Background(), &session.Credential{Token: "t", BaseURL: srv.URL}, "claude-sonnet-4", nil)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", gotModel)
}

func TestChatClient_NoReply(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "no choices", body: `{"choices":[]}`, want: NoReply},
		{name: "null content", body: `{"choices":[{"message":{"content":null}}]}`, want: NoReply},
		{name: "empty content kept", body: `{"choices":[{"message":{"content":""}}]}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			c := NewChatClient(srv.Client(), "gpt-4o")
			reply, err := c.Complete(context.Background(), &session.Credential{Token: "t", BaseURL: srv.URL}, "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestChatClient_Accepts2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"created"}}]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewChatClient(srv.Client(), "gpt-4o")
	reply, err := c.Complete(context.Background(), &session.Credential{Token: "t", BaseURL: srv.URL}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "created", reply)
}

func TestChatClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	t.Cleanup(srv.Close)

	c := NewChatClient(srv.Client(), "gpt-4o")
	_, err := c.Complete(context.Background(), &session.Credential{Token: "t", BaseURL: srv.URL}, "", nil)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
	assert.Equal(t, "Copilot API error: rate limited", appErr.Message)
}

func TestChatClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewChatClient(nil, "gpt-4o")
	_, err := c.Complete(context.Background(), &session.Credential{Token: "t", BaseURL: srv.URL}, "", nil)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}
