package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "tutorlink/internal/infrastructure/websocket"
	"tutorlink/pkg/logger"
)

type WebSocketHandler struct {
	gateway  *ws.Gateway
	upgrader gorillaws.Upgrader
}

func NewWebSocketHandler(gateway *ws.Gateway, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows any origin when the list contains "*". Requests without
// an Origin header (non-browser clients) are always accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// HandleWebSocket upgrades the request. Authentication happens on the socket via the join event.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logger.Warn("WebSocket upgrade from %s failed: %v", c.RealIP(), err)
		return nil
	}

	h.gateway.Serve(conn)
	return nil
}
