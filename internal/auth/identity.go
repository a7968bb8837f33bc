package auth

// Identity is what an OAuth provider returns after a successful code
// exchange: the provider's access token and a profile snapshot. It contains
// facts only, no session decisions.
type Identity struct {
	Provider    string // e.g. "github"
	AccessToken string // provider access token, used later for credential exchange
	Login       string
	AvatarURL   string
}
