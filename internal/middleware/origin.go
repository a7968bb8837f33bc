package middleware

import (
	"net/http"
	"strings"

	"github.com/KennethHeine/chat-ai/internal/logger"
)

// OriginGuard rejects state-changing requests whose Origin header names a
// different site than the one serving the request. Requests without an
// Origin header pass, since non-browser clients do not send one.
func OriginGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if expected := RequestOrigin(r); origin != expected {
			logger.Warn("origin mismatch", map[string]any{
				"origin":   origin,
				"expected": expected,
				"path":     r.URL.Path,
			})
			writeError(w, http.StatusForbidden, "Origin not allowed")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestOrigin is "<scheme>://<host>" as seen by the server. The scheme
// comes from X-Forwarded-Proto when present, otherwise from the connection.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
