package provider

import (
	"context"

	"github.com/KennethHeine/chat-ai/internal/auth"
)

// OAuthProvider defines the contract every external auth provider
// must implement. Implementations return identity facts only and
// must not perform session management.
type OAuthProvider interface {
	// Name returns the provider identifier used in routes (e.g. "github").
	Name() string

	// Configured reports whether a client identifier is available. An
	// unconfigured provider stays registered so the entry route can fail
	// with a configuration error instead of a 404.
	Configured() bool

	// AuthCodeURL returns the OAuth authorization URL.
	// State and PKCE parameters are provided by the caller.
	AuthCodeURL(state string, codeChallenge string) string

	// ExchangeCode exchanges the authorization code for an access token,
	// fetches the user's profile and returns a normalized identity.
	// Failures are *apperr.Error values carrying the HTTP status to report.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*auth.Identity, error)
}
