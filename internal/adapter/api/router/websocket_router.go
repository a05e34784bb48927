package router

import (
	"github.com/labstack/echo/v4"

	"tutorlink/internal/adapter/api/handler"
)

// SetupWebSocketRouter mounts the realtime endpoint. Clients authenticate with the join event.
func SetupWebSocketRouter(e *echo.Echo) {
	e.GET("/ws", handler.GetWebSocketHandler().HandleWebSocket)
}
