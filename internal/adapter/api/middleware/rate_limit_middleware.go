package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tutorlink/internal/infrastructure/ratelimit"
	"tutorlink/pkg/errors"
	"tutorlink/pkg/logger"
	"tutorlink/pkg/response"
)

// RateLimit limits requests per client IP using the given action's policy.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if allowed, wait := limiter.Allow(ip, action); !allowed {
				logger.Warn("RATE LIMIT: Blocked %s request from IP %s (retry in %v)", action, ip, wait)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", wait.Round(time.Millisecond)))
			}

			return next(c)
		}
	}
}
