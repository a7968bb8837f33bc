package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/KennethHeine/chat-ai/internal/session"
)

// unexported, collision-proof context key
type sessionContextKeyType struct{}

var sessionKey = sessionContextKeyType{}

// SessionFromContext extracts the authenticated session from context.
func SessionFromContext(ctx context.Context) (*session.Data, bool) {
	data, ok := ctx.Value(sessionKey).(*session.Data)
	return data, ok && data != nil
}

// WithSession returns a copy of ctx carrying data.
func WithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, sessionKey, data)
}

type AuthMiddleware struct {
	Sessions *session.Manager
}

func NewAuthMiddleware(sessions *session.Manager) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions}
}

// RequireAuth resolves the session once and rejects requests that are not
// authenticated. Expiry is enforced by the session backend.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := a.Sessions.Get(r)
		if !data.Authenticated() {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), data)))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
