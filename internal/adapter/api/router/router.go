package router

import (
	"github.com/labstack/echo/v4"

	"tutorlink/internal/adapter/api/middleware"
	"tutorlink/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	SetupChatRouter(e, authMiddleware, limiter)
	SetupWebSocketRouter(e)
	SetupHealthRouter(e)
}
