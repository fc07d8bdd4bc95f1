package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"marketplace-ledger/config"
	redisStore "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	GroupWithdrawals = "withdrawals"
	GroupSettlements = "settlements"
	GroupAdmin       = "admin"
	GroupReads       = "reads"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRules builds per-group rules from configuration. Groups with a
// non-positive limit are left out and therefore unlimited.
func RateLimitRules(cfg config.RateLimitConfig) map[string]RateLimitRule {
	rules := make(map[string]RateLimitRule, 4)
	add := func(group string, perMinute int64) {
		if perMinute > 0 {
			rules[group] = RateLimitRule{Limit: perMinute, Window: time.Minute}
		}
	}
	add(GroupWithdrawals, cfg.WithdrawalsPerMinute)
	add(GroupSettlements, cfg.SettlementsPerMinute)
	add(GroupAdmin, cfg.AdminPerMinute)
	add(GroupReads, cfg.ReadsPerMinute)
	return rules
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Store failures let the request through.
func RateLimiter(store RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
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

// extractIdentifier keys authenticated callers by actor and everyone else by client IP.
func extractIdentifier(c *gin.Context) string {
	if actor, ok := ActorFrom(c); ok {
		if ref := actor.Ref(); ref != nil {
			return "actor:" + ref.String()
		}
		return "role:" + string(actor.Role)
	}
	return "ip:" + c.ClientIP()
}
