package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/whisperwall/secrets-backend/internal/dto"
	"github.com/whisperwall/secrets-backend/internal/middleware"
	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/providers"
	"github.com/whisperwall/secrets-backend/internal/services"
	"github.com/whisperwall/secrets-backend/internal/store"
)

const stateCookie = "oauth_state"

type AuthHandler struct {
	auth      *services.PasswordAuthenticator
	resolver  *services.FederatedResolver
	sessions  *services.SessionManager
	providers *providers.Registry
}

func NewAuthHandler(
	auth *services.PasswordAuthenticator,
	resolver *services.FederatedResolver,
	sessions *services.SessionManager,
	registry *providers.Registry,
) *AuthHandler {
	return &AuthHandler{auth: auth, resolver: resolver, sessions: sessions, providers: registry}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	user, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		if errors.Is(err, store.ErrStoreUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Service temporarily unavailable",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return h.respondWithSession(c, user, fiber.StatusCreated)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	user, err := h.auth.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Service temporarily unavailable",
		})
	}

	return h.respondWithSession(c, user, fiber.StatusOK)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := middleware.SessionTokenFromRequest(c)
	if token != "" {
		if err := h.sessions.Terminate(c.UserContext(), token); err != nil {
			slog.Error("session terminate failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Service temporarily unavailable",
			})
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// OAuthBegin redirects to the provider's consent screen. The state nonce is
// kept in a short-lived cookie and checked on the way back.
func (h *AuthHandler) OAuthBegin(c *fiber.Ctx) error {
	state := uuid.New().String()
	authURL, err := h.providers.AuthCodeURL(c.Params("provider"), state)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Unknown provider",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(authURL, fiber.StatusFound)
}

// OAuthCallback finishes the handshake: state check, code exchange, then
// find-or-create on the provider's subject id and session establishment.
func (h *AuthHandler) OAuthCallback(c *fiber.Ctx) error {
	providerName := c.Params("provider")

	provider, err := store.ParseProvider(providerName)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Unknown provider",
		})
	}

	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Authentication failed",
		})
	}
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Authentication failed",
		})
	}

	profile, err := h.providers.Exchange(c.UserContext(), providerName, code)
	if err != nil {
		slog.Error("oauth exchange failed", "provider", providerName, "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Authentication failed",
		})
	}

	user, err := h.resolver.ResolveOrCreate(c.UserContext(), provider, profile.SubjectID, profile.Raw)
	if err != nil {
		slog.Error("federated resolve failed", "provider", providerName, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Service temporarily unavailable",
		})
	}

	return h.respondWithSession(c, user, fiber.StatusOK)
}

func (h *AuthHandler) respondWithSession(c *fiber.Ctx, user *models.User, status int) error {
	token, err := h.sessions.Establish(c.UserContext(), user)
	if err != nil {
		slog.Error("session establish failed", "user_id", user.ID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Service temporarily unavailable",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  time.Now().Add(24 * 7 * time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Status(status).JSON(dto.AuthResponse{
		Token: token,
		User:  userResponse(user),
	})
}

func userResponse(user *models.User) dto.UserResponse {
	resp := dto.UserResponse{ID: user.ID}
	if user.Username != nil {
		resp.Username = *user.Username
	}
	switch {
	case user.GoogleID != nil:
		resp.Provider = string(store.ProviderGoogle)
	case user.FacebookID != nil:
		resp.Provider = string(store.ProviderFacebook)
	case user.HasLocalCredential():
		resp.Provider = "local"
	}
	return resp
}
