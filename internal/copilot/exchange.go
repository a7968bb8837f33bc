// Package copilot exchanges a GitHub identity token for a short-lived
// Copilot API credential and proxies chat completions with it.
package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/KennethHeine/chat-ai/internal/apperr"
	"github.com/KennethHeine/chat-ai/internal/logger"
	"github.com/KennethHeine/chat-ai/internal/session"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTokenURL = "https://api.github.com/copilot_internal/v2/token"
	DefaultBaseURL  = "https://api.individual.githubcopilot.com"

	// Upstream expiries below this are unix seconds, at or above it unix
	// milliseconds.
	secondsThreshold = 10_000_000_000

	maxErrorBody = 64 << 10
	userAgent    = "chat-ai"
)

var proxyEndpoint = regexp.MustCompile(`proxy-ep=([^;]+)`)

func successful(status int) bool {
	return status >= 200 && status <= 299
}

// ParseBaseURL derives the API base URL from the proxy-ep attribute of a
// Copilot token. The "proxy." host prefix is rewritten to "api.". Tokens
// without the attribute yield fallback.
func ParseBaseURL(token, fallback string) string {
	m := proxyEndpoint.FindStringSubmatch(token)
	if m == nil {
		return fallback
	}
	host := m[1]
	if strings.HasPrefix(host, "proxy.") {
		host = "api." + strings.TrimPrefix(host, "proxy.")
	}
	return "https://" + host
}

// NormalizeExpiry returns expiresAt in unix milliseconds.
func NormalizeExpiry(expiresAt int64) int64 {
	if expiresAt < secondsThreshold {
		return expiresAt * 1000
	}
	return expiresAt
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// Exchanger resolves downstream credentials for a session, serving the
// session's cached credential while it is usable.
type Exchanger struct {
	client         *http.Client
	tokenURL       string
	defaultBaseURL string
	margin         time.Duration
	now            func() time.Time

	group singleflight.Group
}

type Option func(*Exchanger)

func WithHTTPClient(c *http.Client) Option {
	return func(e *Exchanger) {
		if c != nil {
			e.client = c
		}
	}
}

func WithTokenURL(u string) Option {
	return func(e *Exchanger) {
		if u != "" {
			e.tokenURL = u
		}
	}
}

func WithDefaultBaseURL(u string) Option {
	return func(e *Exchanger) {
		if u != "" {
			e.defaultBaseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExchanger(opts ...Option) *Exchanger {
	e := &Exchanger{
		client:         &http.Client{Timeout: 10 * time.Second},
		tokenURL:       DefaultTokenURL,
		defaultBaseURL: DefaultBaseURL,
		margin:         session.RefreshMargin,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve returns a credential for data. A usable cached credential is
// returned without any network I/O and refreshed is false. Otherwise the
// identity token is exchanged and the caller must persist the result.
func (e *Exchanger) Resolve(ctx context.Context, data *session.Data) (cred *session.Credential, refreshed bool, err error) {
	if !data.Authenticated() {
		return nil, false, apperr.Auth("Not authenticated")
	}
	if data.Credential.Usable(e.now(), e.margin) {
		c := *data.Credential
		return &c, false, nil
	}

	cred, err = e.Exchange(ctx, data.IdentityToken)
	if err != nil {
		return nil, false, err
	}
	return cred, true, nil
}

// Exchange performs the upstream exchange. Concurrent calls for the same
// identity token share one request. The shared request is detached from
// any single caller's cancellation and bounded by the client timeout; a
// caller whose ctx ends stops waiting without failing the others.
func (e *Exchanger) Exchange(ctx context.Context, identityToken string) (*session.Credential, error) {
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(identityToken, func() (any, error) {
		return e.exchange(shared, identityToken)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("copilot token exchange coalesced", nil)
		}
		c := *res.Val.(*session.Credential)
		return &c, nil
	}
}

func (e *Exchanger) exchange(ctx context.Context, identityToken string) (*session.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.tokenURL, nil)
	if err != nil {
		return nil, apperr.Internal("Copilot token exchange failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+identityToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperr.Transport("Copilot token exchange failed", err)
	}
	defer resp.Body.Close()

	if !successful(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Warn("copilot token exchange rejected", map[string]any{
			"status": resp.StatusCode,
		})
		return nil, apperr.Upstream(resp.StatusCode, "Token exchange failed: "+string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, apperr.Transport("Copilot token exchange failed", err)
	}
	if tr.Token == "" {
		return nil, apperr.Transport("Copilot token exchange failed", fmt.Errorf("copilot: response without token"))
	}

	cred := &session.Credential{
		Token:     tr.Token,
		BaseURL:   ParseBaseURL(tr.Token, e.defaultBaseURL),
		ExpiresAt: NormalizeExpiry(tr.ExpiresAt),
	}

	logger.Info("copilot token exchanged", map[string]any{
		"base_url":   cred.BaseURL,
		"expires_at": cred.ExpiresAt,
	})

	return cred, nil
}
