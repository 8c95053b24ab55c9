package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/coredesk/coredesk-gateway/internal/ratelimit"
	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/gin-gonic/gin"
)

// RateLimit applies the preset's fixed-window quota to the authenticated
// actor, falling back to the client IP on unauthenticated routes. Runs on
// every request before any handler work.
func RateLimit(limiter *ratelimit.Limiter, preset ratelimit.Preset) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetString(CtxActorID)
		if actorID == "" {
			actorID = "ip:" + c.ClientIP()
		}

		result, err := limiter.Check(c.Request.Context(), actorID, preset)
		if err != nil {
			// Unknown preset: misconfigured route, not user behavior
			log.Printf("ratelimit: %v (route %s)", err, c.FullPath())
			response.AbortError(c, http.StatusInternalServerError, response.CodeInternal,
				"Rate limit misconfigured")
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.RetryAfter))

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", result.RetryAfter))
			response.AbortError(c, http.StatusTooManyRequests, response.CodeRateLimited,
				fmt.Sprintf("Too many requests. Retry in %d seconds.", result.RetryAfter))
			return
		}

		c.Next()
	}
}
