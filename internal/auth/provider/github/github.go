package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KennethHeine/chat-ai/internal/apperr"
	"github.com/KennethHeine/chat-ai/internal/auth"
	"github.com/KennethHeine/chat-ai/internal/logger"

	"golang.org/x/oauth2"
)

const (
	providerName = "github"
	userAgent    = "chat-ai"
)

// Scope only needs the public profile; Copilot access is granted by the
// account's subscription, not by an OAuth scope.
const scope = "read:user"

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // optional, GitHub falls back to the app's callback URL
	AuthorizeURL string
	TokenURL     string
	APIURL       string
	HTTPClient   *http.Client
}

type Provider struct {
	oauthConfig *oauth2.Config
	apiURL      string
	httpClient  *http.Client
}

func New(cfg Config) *Provider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizeURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{scope},
	}

	return &Provider{
		oauthConfig: oauthCfg,
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		httpClient:  client,
	}
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Configured() bool {
	return p.oauthConfig.ClientID != ""
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Identity, error) {

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && (re.ErrorCode != "" || re.ErrorDescription != "") {
			msg := re.ErrorDescription
			if msg == "" {
				msg = re.ErrorCode
			}
			logger.Warn("github token exchange rejected", map[string]any{
				"error": re.ErrorCode,
			})
			return nil, &apperr.Error{
				Kind:    apperr.KindClient,
				Status:  http.StatusBadRequest,
				Message: msg,
				Err:     err,
			}
		}
		return nil, apperr.Transport("GitHub authentication failed", err)
	}

	profile, err := p.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	logger.Info("github identity resolved", map[string]any{
		"login": profile.Login,
	})

	return &auth.Identity{
		Provider:    providerName,
		AccessToken: token.AccessToken,
		Login:       profile.Login,
		AvatarURL:   profile.AvatarURL,
	}, nil
}

type userProfile struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

func (p *Provider) fetchProfile(ctx context.Context, accessToken string) (*userProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return nil, apperr.Internal("GitHub authentication failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport("GitHub authentication failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.Error{
			Kind:    apperr.KindUpstream,
			Status:  http.StatusBadGateway,
			Message: "Failed to fetch GitHub user info",
			Err:     fmt.Errorf("github: GET /user returned %d", resp.StatusCode),
		}
	}

	var profile userProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, apperr.Transport("GitHub authentication failed", err)
	}
	return &profile, nil
}
