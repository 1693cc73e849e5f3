package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/utils"
)

// UploadHandler provides the attachment upload endpoint.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs a handler instance.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register binds the upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/", h.upload)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	response, err := h.service.Upload(withRequestContext(c), file, userID)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			status = fiber.StatusRequestEntityTooLarge
		case errors.Is(err, service.ErrUploadTypeNotAllowed):
			status = fiber.StatusUnsupportedMediaType
		case errors.Is(err, service.ErrUploadScanFailed):
			status = fiber.StatusUnprocessableEntity
		}
		return utils.SendError(c, status, err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file uploaded", response)
}
