// Package session owns the lifecycle of an authenticated browser session:
// the session value, its durable stores, the stateless cookie backend and
// the Manager that mints and parses the session cookie.
package session

import (
	"errors"
	"time"
)

// RefreshMargin is how long before expiry a cached downstream credential
// stops being served.
const RefreshMargin = 5 * time.Minute

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by stores and backends when a session does not
// exist or has expired.
var ErrNotFound = errors.New("session: not found")

// User is the profile snapshot captured at login. It is never refreshed.
type User struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
}

// Credential is a cached downstream API credential. ExpiresAt is in unix
// milliseconds.
type Credential struct {
	Token     string `json:"token"`
	BaseURL   string `json:"baseUrl"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Usable reports whether the credential may still be served at now, i.e.
// more than margin remains before it expires.
func (c *Credential) Usable(now time.Time, margin time.Duration) bool {
	if c == nil || c.Token == "" {
		return false
	}
	return c.ExpiresAt-now.UnixMilli() > margin.Milliseconds()
}

// Data is the state carried by one session.
type Data struct {
	IdentityToken string      `json:"identityToken"`
	User          User        `json:"user"`
	Credential    *Credential `json:"credential,omitempty"`
	ExpiresAt     time.Time   `json:"expiresAt"`
}

// Authenticated reports whether the session carries an identity token.
func (d *Data) Authenticated() bool {
	return d != nil && d.IdentityToken != ""
}

// Expired reports whether the session is past its absolute expiry.
func (d *Data) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// Patch is a merge-style update: nil fields are left unchanged.
type Patch struct {
	User       *User
	Credential *Credential
}

func (p Patch) empty() bool {
	return p.User == nil && p.Credential == nil
}

// Apply returns a copy of d with the patch's fields replaced.
func (d Data) Apply(p Patch) Data {
	if p.User != nil {
		d.User = *p.User
	}
	if p.Credential != nil {
		cred := *p.Credential
		d.Credential = &cred
	}
	return d
}

func (d Data) clone() Data {
	if d.Credential != nil {
		cred := *d.Credential
		d.Credential = &cred
	}
	return d
}
