package copilot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KennethHeine/chat-ai/internal/apperr"
	"github.com/KennethHeine/chat-ai/internal/session"
)

const (
	DefaultModel = "gpt-4o"

	// NoReply is returned when the model answers without any content.
	NoReply = "No response from model."

	integrationID = "vscode-chat"
)

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []json.RawMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatClient sends non-streaming chat completions to the Copilot API.
// Messages are forwarded verbatim.
type ChatClient struct {
	client *http.Client
	model  string
}

func NewChatClient(client *http.Client, model string) *ChatClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if model == "" {
		model = DefaultModel
	}
	return &ChatClient{client: client, model: model}
}

// Complete posts messages to <baseUrl>/chat/completions and returns the
// first choice's content. An empty model selects the client's default. A
// non-OK status is passed through.
func (c *ChatClient) Complete(ctx context.Context, cred *session.Credential, model string, messages []json.RawMessage) (string, error) {
	if model == "" {
		model = c.model
	}
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", apperr.Internal("failed to encode chat request", err)
	}

	endpoint := strings.TrimRight(cred.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Internal("failed to build chat request", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Copilot-Integration-Id", integrationID)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperr.Transport("Copilot API request failed", err)
	}
	defer resp.Body.Close()

	if !successful(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", apperr.Upstream(resp.StatusCode, "Copilot API error: "+string(body))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Transport("Copilot API request failed", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return NoReply, nil
	}
	return *out.Choices[0].Message.Content, nil
}
