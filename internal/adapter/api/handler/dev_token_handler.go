package handler

import (
	"github.com/labstack/echo/v4"

	"tutorlink/internal/infrastructure/auth"
	"tutorlink/pkg/errors"
	"tutorlink/pkg/response"
)

type DevTokenHandler struct {
	tokens *auth.DevTokens
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(tokens *auth.DevTokens) *DevTokenHandler {
	return &DevTokenHandler{
		tokens: tokens,
	}
}

func SetupDevTokenHandler(tokens *auth.DevTokens) {
	devTokenHandler = NewDevTokenHandler(tokens)
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

type devTokenRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// IssueToken mints a short-lived credential for any user id. Development only.
func (h *DevTokenHandler) IssueToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	token, expiresAt, err := h.tokens.Issue(req.UserID)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to issue token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt,
		"userId":    req.UserID,
	})
}
