package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "tutorlink/internal/infrastructure/websocket"
)

type HealthHandler struct {
	registry *ws.Registry
}

var healthHandler *HealthHandler

func NewHealthHandler(registry *ws.Registry) *HealthHandler {
	return &HealthHandler{
		registry: registry,
	}
}

func SetupHealthHandler(registry *ws.Registry) {
	healthHandler = NewHealthHandler(registry)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"connections": h.registry.Count(),
	})
}
