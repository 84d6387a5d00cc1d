package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/whisperwall/secrets-backend/internal/dto"
	"github.com/whisperwall/secrets-backend/internal/middleware"
	"github.com/whisperwall/secrets-backend/internal/secrets"
	"github.com/whisperwall/secrets-backend/internal/store"
)

type SecretHandler struct {
	users *store.UserStore
}

func NewSecretHandler(users *store.UserStore) *SecretHandler {
	return &SecretHandler{users: users}
}

// List returns every shared secret, anonymously. Deliberately public:
// reading the collection requires no session, only submitting does.
func (h *SecretHandler) List(c *fiber.Ctx) error {
	list, err := h.users.ListSecrets(c.UserContext())
	if err != nil {
		if errors.Is(err, secrets.ErrDecryptionFailed) {
			slog.Error("secret listing hit undecryptable data", "error", err)
		} else {
			slog.Error("secret listing failed", "error", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	return c.JSON(dto.SecretListResponse{Secrets: list})
}

// Mine returns the caller's own secret, empty if unset.
func (h *SecretHandler) Mine(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var secret string
	if user.Secret != nil {
		secret = *user.Secret
	}
	return c.JSON(dto.SecretResponse{Secret: secret})
}

// Submit sets the caller's secret; an empty secret clears it.
func (h *SecretHandler) Submit(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.SubmitSecretRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if req.Secret == "" {
		user.Secret = nil
	} else {
		user.Secret = &req.Secret
	}

	if err := h.users.Save(c.UserContext(), user); err != nil {
		slog.Error("secret save failed", "user_id", user.ID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Service temporarily unavailable",
		})
	}
	return c.JSON(dto.SecretResponse{Secret: req.Secret})
}

// Clear removes the caller's secret.
func (h *SecretHandler) Clear(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	user.Secret = nil
	if err := h.users.Save(c.UserContext(), user); err != nil {
		slog.Error("secret clear failed", "user_id", user.ID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Service temporarily unavailable",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
