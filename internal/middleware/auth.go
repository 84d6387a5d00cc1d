package middleware

import (
	"errors"
	"strings"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"

	"github.com/whisperwall/secrets-backend/internal/config"
	"github.com/whisperwall/secrets-backend/internal/dto"
	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/services"
)

// SessionCookie is the cookie the browser-facing flows carry the session
// token in. API clients use the Authorization header instead.
const SessionCookie = "session"

const currentUserKey = "currentUser"

// JWTProtected verifies the session token's signature and expiry before any
// handler runs. Revocation and user lookup happen in RequireUser.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(cfg.SessionSecret)},
		TokenLookup: "header:Authorization,cookie:" + SessionCookie,
		// jwtware only defaults AuthScheme to "Bearer" when TokenLookup is
		// left at its default, so a custom lookup must set it explicitly.
		AuthScheme: "Bearer",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		},
	})
}

// RequireUser restores the full user record for the request's session token
// and stores it in Locals. The rejection carries no detail beyond
// "unauthorized": it never says whether a resource or account exists.
func RequireUser(sessions *services.SessionManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := SessionTokenFromRequest(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		user, err := sessions.Restore(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, services.ErrInvalidSession) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error: true, Message: "Unauthorized",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}

		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user RequireUser stashed for this request.
func CurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(currentUserKey).(*models.User)
	if !ok || user == nil {
		return nil, errors.New("no authenticated user in context")
	}
	return user, nil
}

// SessionTokenFromRequest pulls the raw session token from the
// Authorization header or the session cookie.
func SessionTokenFromRequest(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Cookies(SessionCookie)
}
