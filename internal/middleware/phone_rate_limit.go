package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/idmint/idmint/internal/logging"
	"github.com/idmint/idmint/internal/ratelimit"
)

const (
	rateKeyPrefix = "rl:"
	rateWindow    = time.Hour
)

// Rate limit scopes. Each scope counts separately for the same phone.
const (
	ScopeOTPRequest = "otp"
	ScopeOTPVerify  = "verify"
)

// PhoneRateLimit caps requests per phoneNumber per hour within scope. Redis
// is used when available so the limit holds across instances; otherwise, and
// on cache errors, the in-process limiter decides.
func PhoneRateLimit(cache *redis.Client, scope string, perHour int, logger *slog.Logger) fiber.Handler {
	if perHour <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	local := ratelimit.PerHour(perHour)
	prefix := rateKeyPrefix + scope + ":"

	return func(c *fiber.Ctx) error {
		var req struct {
			Phone string `json:"phoneNumber"`
		}
		_ = c.BodyParser(&req)
		phone := strings.TrimSpace(req.Phone)
		if phone == "" {
			// Let the handler report the missing field.
			return c.Next()
		}

		if cache != nil {
			count, err := incrWindow(c.UserContext(), cache, prefix+phone)
			if err == nil {
				if count > int64(perHour) {
					return tooManyRequests(scope, phone, logger)
				}
				return c.Next()
			}
			logger.Warn("rate limit counter unavailable",
				slog.String("scope", scope),
				slog.String("phone", logging.RedactPhone(phone)),
				slog.Any("error", err),
			)
		}

		if !local.Allow(phone, time.Now()) {
			return tooManyRequests(scope, phone, logger)
		}
		return c.Next()
	}
}

func incrWindow(ctx context.Context, cache *redis.Client, key string) (int64, error) {
	count, err := cache.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		cache.Expire(ctx, key, rateWindow)
	}
	return count, nil
}

func tooManyRequests(scope, phone string, logger *slog.Logger) error {
	logger.Warn("rate limit exceeded",
		slog.String("scope", scope),
		slog.String("phone", logging.RedactPhone(phone)),
	)
	return fiber.NewError(http.StatusTooManyRequests, "Too many attempts, try again later.")
}
