package router

import (
	"github.com/labstack/echo/v4"

	"tutorlink/internal/adapter/api/handler"
	"tutorlink/internal/adapter/api/middleware"
	"tutorlink/internal/infrastructure/ratelimit"
)

func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	chatHandler := handler.GetChatHandler()
	limit := middleware.RateLimit(limiter, ratelimit.ActionHTTP)

	chatGroup := e.Group("/chat", limit, authMiddleware.Authenticate)
	chatGroup.GET("", chatHandler.ListChats)
	chatGroup.POST("", chatHandler.CreateChat)
	chatGroup.GET("/:chatId", chatHandler.GetChat)

	// GET takes a chat id, DELETE a message id. Both share the param name.
	messageGroup := e.Group("/message", limit, authMiddleware.Authenticate)
	messageGroup.GET("/:id", chatHandler.GetChatMessages)
	messageGroup.DELETE("/:id", chatHandler.DeleteMessage)
}
