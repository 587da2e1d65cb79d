package middleware

import (
	"fmt"
	"strconv"
	"time"

	"banking-services/internal/core/ports"
	"banking-services/pkg/apperror"
	"banking-services/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules builds the per-group limits from requests-per-minute settings.
// A non-positive value disables the group.
func RateLimitRules(transactionsPerMinute, accountsPerMinute int64) map[string]RateLimitRule {
	rules := make(map[string]RateLimitRule)
	if transactionsPerMinute > 0 {
		rules["transactions"] = RateLimitRule{Limit: transactionsPerMinute, Window: time.Minute}
	}
	if accountsPerMinute > 0 {
		rules["accounts"] = RateLimitRule{Limit: accountsPerMinute, Window: time.Minute}
	}
	return rules
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// When the store fails the request is let through.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits by calling service when known, else by client IP.
func extractIdentifier(c *gin.Context) string {
	if subject := c.GetString(CtxServiceSubject); subject != "" {
		return "svc:" + subject
	}
	return "ip:" + c.ClientIP()
}
