package middleware

import (
	"strconv"

	"github.com/KennethHeine/chat-ai/internal/apperr"
	"github.com/KennethHeine/chat-ai/internal/logger"
	"github.com/KennethHeine/chat-ai/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit enforces maxRequests per window for route. Clients that
// cannot be identified share one bucket limited to unknownMax.
func RateLimit(limiter *ratelimit.Limiter, route string, maxRequests, unknownMax int) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := ratelimit.ClientID(c.Request)
		limit := ratelimit.EffectiveMax(clientID, maxRequests, unknownMax)

		res := limiter.Check(clientID, route, limit)
		if !res.Allowed {
			logger.Warn("rate limit exceeded", map[string]any{
				"route":       route,
				"client":      clientID,
				"retry_after": res.RetryAfter,
			})
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			apperr.Write(c, apperr.RateLimited())
			return
		}

		c.Next()
	}
}
