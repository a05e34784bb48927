package handler

import (
	ws "tutorlink/internal/infrastructure/websocket"
	"tutorlink/internal/usecase"
)

var (
	chatHandler      *ChatHandler
	webSocketHandler *WebSocketHandler
)

func Setup(chatUseCase *usecase.ChatUseCase, gateway *ws.Gateway, allowedOrigins []string) {
	chatHandler = NewChatHandler(chatUseCase)
	webSocketHandler = NewWebSocketHandler(gateway, allowedOrigins)
	SetupHealthHandler(gateway.Registry())
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}
