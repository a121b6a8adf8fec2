package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unionhall/triage-service/internal/api/dto"
	"github.com/unionhall/triage-service/internal/service"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// AuthHandler exposes console login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	account, token, exp, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"account": fiber.Map{
				"id":       account.ID,
				"username": account.Username,
				"name":     account.Name,
				"actor":    account.Actor,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
