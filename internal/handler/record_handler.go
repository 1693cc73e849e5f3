package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/store"
	"github.com/noah-isme/eduport-api/internal/utils"
)

// RecordHandler provides HTTP endpoints for per-user record collections.
type RecordHandler struct {
	service service.RecordService
	logger  zerolog.Logger
}

// NewRecordHandler constructs a handler instance.
func NewRecordHandler(service service.RecordService, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		service: service,
		logger:  logger.With().Str("component", "record_handler").Logger(),
	}
}

// Register binds the record collection routes.
func (h *RecordHandler) Register(router fiber.Router) {
	router.Get("/:collection", h.list)
	router.Post("/:collection", h.create)
	router.Put("/:collection/:id", h.update)
	router.Delete("/:collection/:id", h.remove)
}

func (h *RecordHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	scopeID := strings.TrimSpace(c.Query("scope_id"))
	if scopeID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "scope_id required")
	}

	records, err := h.service.List(withRequestContext(c), c.Params("collection"), scopeID, userID)
	if err != nil {
		return utils.SendError(c, recordErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "records", records)
}

func (h *RecordHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.RecordCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Create(withRequestContext(c), c.Params("collection"), userID, payload)
	if err != nil {
		return utils.SendError(c, recordErrorStatus(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "record created", record)
}

func (h *RecordHandler) update(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.RecordUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Update(withRequestContext(c), c.Params("collection"), userID, c.Params("id"), payload)
	if err != nil {
		return utils.SendError(c, recordErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "record updated", record)
}

func (h *RecordHandler) remove(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	scopeID := strings.TrimSpace(c.Query("scope_id"))
	if scopeID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "scope_id required")
	}

	if err := h.service.Delete(withRequestContext(c), c.Params("collection"), scopeID, userID, c.Params("id")); err != nil {
		return utils.SendError(c, recordErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "record deleted", nil)
}

func recordErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownCollection):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrTemplatePayloadInvalid):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, store.ErrRecordNotFound):
		return fiber.StatusNotFound
	case isValidationError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
