package middleware

import (
	"net/http"

	"github.com/KennethHeine/chat-ai/internal/session"

	"github.com/gin-gonic/gin"
)

// Gin adapts a net/http middleware to Gin. When the middleware answers the
// request itself the Gin chain is aborted.
func Gin(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		if c.Writer.Written() {
			c.Abort()
		}
	}
}

// GinRequireAuth adapts AuthMiddleware to Gin.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return Gin(auth.RequireAuth)
}

// SessionFrom returns the session placed in the request by RequireAuth.
func SessionFrom(c *gin.Context) *session.Data {
	data, _ := SessionFromContext(c.Request.Context())
	return data
}
