package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/store"
	"github.com/noah-isme/eduport-api/internal/utils"
)

// OfflineHandler provides HTTP endpoints for the offline content catalog.
type OfflineHandler struct {
	service service.OfflineService
	logger  zerolog.Logger
}

// NewOfflineHandler constructs a handler instance.
func NewOfflineHandler(service service.OfflineService, logger zerolog.Logger) *OfflineHandler {
	return &OfflineHandler{
		service: service,
		logger:  logger.With().Str("component", "offline_handler").Logger(),
	}
}

// Register binds the offline catalog routes.
func (h *OfflineHandler) Register(router fiber.Router) {
	router.Get("/catalog", h.catalog)
	router.Post("/items", h.mark)
	router.Delete("/items/:id", h.remove)
}

func (h *OfflineHandler) catalog(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	catalog, err := h.service.Catalog(withRequestContext(c), userID)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "offline catalog", catalog)
}

func (h *OfflineHandler) mark(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.OfflineMarkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	item, err := h.service.Mark(withRequestContext(c), userID, payload)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, service.ErrOfflineQuotaExceeded) {
			status = fiber.StatusInsufficientStorage
		} else if isValidationError(err) {
			status = fiber.StatusBadRequest
		}
		return utils.SendError(c, status, err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "download queued", item)
}

func (h *OfflineHandler) remove(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	if err := h.service.Remove(withRequestContext(c), userID, c.Params("id")); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, store.ErrRecordNotFound) {
			status = fiber.StatusNotFound
		}
		return utils.SendError(c, status, err.Error())
	}

	return utils.SendSuccess(c, "offline item removed", nil)
}
