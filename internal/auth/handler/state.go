package handler

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__oauth_state"
	flowCookieTTL   = 5 * time.Minute
)

func generateState(c *gin.Context, secure bool) string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)

	state := base64.RawURLEncoding.EncodeToString(b)
	setFlowCookie(c, stateCookieName, state, secure)

	return state
}

func validateState(c *gin.Context, cookieState string) bool {
	stateQuery := c.Query("state")
	if stateQuery == "" || cookieState == "" {
		return false
	}
	return cookieState == stateQuery
}

func flowCookie(c *gin.Context, name string) string {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setFlowCookie stores short-lived OAuth flow data. Lax lets the cookie
// ride along on the provider's top-level redirect back to the callback.
func setFlowCookie(c *gin.Context, name, value string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flowCookieTTL.Seconds()),
	})
}

func clearFlowCookies(c *gin.Context, secure bool) {
	for _, name := range []string{stateCookieName, pkceCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
