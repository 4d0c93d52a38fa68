package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/service"
	"github.com/noah-isme/arsip-go-api/internal/utils"
)

// AuthHandler wires the authentication endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Login verifies credentials and issues a token. On success the principal is
// bound to the request so the capture stage can attribute the login event.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.Login(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid credentials")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("login failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "login failed")
		}
	}

	c.Locals("user_id", response.User.ID)
	c.Locals("user_role", response.User.Role)

	return utils.SendSuccess(c, "login successful", response)
}

// Logout acknowledges the logout; token invalidation is client-side. The
// surrounding capture stage records the event.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "logout successful", nil)
}
