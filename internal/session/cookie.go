package session

import (
	"net/http"
)

const (
	CookieName = "session"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Name     string
	Path     string
	MaxAge   int // seconds
	Secure   bool
	SameSite http.SameSite
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = CookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.MaxAge <= 0 {
		o.MaxAge = int(DefaultTTL.Seconds())
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// cookie builds the directive carrying value.
func (o CookieOptions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.Path,
		MaxAge:   o.MaxAge,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// expired builds a directive that removes the cookie immediately
// (Max-Age=0 on the wire).
func (o CookieOptions) expired() *http.Cookie {
	c := o.cookie("")
	c.MaxAge = -1
	return c
}

func (o CookieOptions) value(r *http.Request) string {
	c, err := r.Cookie(o.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
