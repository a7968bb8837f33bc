package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests that carry no client
// identifying header. Callers should give it a stricter limit.
const UnknownClient = "unknown"

// ClientIPHeader is consulted when X-Forwarded-For is absent.
const ClientIPHeader = "Client-IP"

// ClientID resolves the rate-limit key for r: the first X-Forwarded-For
// entry, then the Client-IP header, then UnknownClient.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(ClientIPHeader)); ip != "" {
		return ip
	}
	return UnknownClient
}

// EffectiveMax applies the unknown-client ceiling to maxRequests.
func EffectiveMax(clientID string, maxRequests, unknownMax int) int {
	if clientID == UnknownClient && unknownMax > 0 && unknownMax < maxRequests {
		return unknownMax
	}
	return maxRequests
}
