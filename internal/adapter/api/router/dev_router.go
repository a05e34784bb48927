package router

import (
	"github.com/labstack/echo/v4"

	"tutorlink/internal/adapter/api/handler"
)

// SetupDevRouter mounts the dev credential endpoint when a DevTokenHandler was set up.
func SetupDevRouter(e *echo.Echo) {
	devTokenHandler := handler.GetDevTokenHandler()
	if devTokenHandler == nil {
		return
	}

	e.POST("/dev/token", devTokenHandler.IssueToken)
}
