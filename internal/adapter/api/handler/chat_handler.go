package handler

import (
	"github.com/labstack/echo/v4"

	"tutorlink/internal/adapter/api/middleware"
	"tutorlink/internal/usecase"
	"tutorlink/pkg/response"
	"tutorlink/pkg/utils"
)

const (
	defaultMessageLimit = 0
	maxMessageLimit     = 500
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createChatRequest struct {
	ParticipantID string                 `json:"participantId" validate:"required"`
	Type          string                 `json:"type" validate:"omitempty,oneof=direct tutor_session"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// CreateChat opens the first-contact chat with another user, reusing an existing one.
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, created, err := h.chatUseCase.CreateChat(c.Request().Context(), middleware.UID(c), usecase.CreateChatInput{
		ParticipantID: req.ParticipantID,
		Type:          req.Type,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return response.Error(c, err)
	}

	if created {
		return response.Created(c, chat)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) ListChats(c echo.Context) error {
	chats, err := h.chatUseCase.ListUserChats(c.Request().Context(), middleware.UID(c))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chats)
}

func (h *ChatHandler) GetChat(c echo.Context) error {
	detail, err := h.chatUseCase.GetChat(c.Request().Context(), middleware.UID(c), c.Param("chatId"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithParticipants(c, detail.Chat, detail.Participants)
}

// GetChatMessages returns the history of a chat, oldest first.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	limit := utils.GetLimit(c, defaultMessageLimit, maxMessageLimit)

	messages, err := h.chatUseCase.GetChatMessages(c.Request().Context(), middleware.UID(c), c.Param("id"), limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	message, err := h.chatUseCase.DeleteMessage(c.Request().Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"messageId": message.ID,
		"chatId":    message.ChatID,
	})
}
