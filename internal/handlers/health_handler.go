package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/whisperwall/secrets-backend/internal/database"
	"github.com/whisperwall/secrets-backend/internal/dto"
	"github.com/whisperwall/secrets-backend/internal/providers"
)

type HealthHandler struct {
	providers *providers.Registry
}

func NewHealthHandler(registry *providers.Registry) *HealthHandler {
	return &HealthHandler{providers: registry}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Providers: h.providers.Names(),
	})
}
