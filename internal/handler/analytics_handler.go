package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/utils"
)

// AnalyticsHandler exposes the dashboard summary endpoint.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs a handler instance.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register binds the analytics routes.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/summary", h.summary)
}

func (h *AnalyticsHandler) summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(withRequestContext(c))
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "analytics summary", summary)
}
