package handler

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const pkceCookieName = "__oauth_pkce"

// generatePKCE stores a fresh verifier in a cookie and returns its S256
// challenge.
func generatePKCE(c *gin.Context, secure bool) (challenge string) {
	verifier := oauth2.GenerateVerifier()
	setFlowCookie(c, pkceCookieName, verifier, secure)
	return oauth2.S256ChallengeFromVerifier(verifier)
}
