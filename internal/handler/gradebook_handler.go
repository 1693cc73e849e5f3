package handler

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/utils"
)

// GradebookHandler provides HTTP endpoints for the aggregated gradebook.
type GradebookHandler struct {
	service service.GradebookService
	logger  zerolog.Logger
}

// NewGradebookHandler constructs a handler instance.
func NewGradebookHandler(service service.GradebookService, logger zerolog.Logger) *GradebookHandler {
	return &GradebookHandler{
		service: service,
		logger:  logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// Register binds the gradebook routes.
func (h *GradebookHandler) Register(router fiber.Router) {
	router.Get("/summaries", h.summaries)
	router.Get("/entries", h.entries)
	router.Get("/export", h.export)
}

func (h *GradebookHandler) summaries(c *fiber.Ctx) error {
	query, err := parseGradebookQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Summaries(withRequestContext(c), query)
	if err != nil {
		status := fiber.StatusInternalServerError
		if isValidationError(err) {
			status = fiber.StatusBadRequest
		}
		return utils.SendError(c, status, err.Error())
	}

	return utils.SendSuccess(c, "gradebook summaries", result)
}

func (h *GradebookHandler) entries(c *fiber.Ctx) error {
	query, err := parseGradebookQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Entries(withRequestContext(c), query)
	if err != nil {
		status := fiber.StatusInternalServerError
		if isValidationError(err) {
			status = fiber.StatusBadRequest
		}
		return utils.SendError(c, status, err.Error())
	}

	return utils.SendSuccess(c, "gradebook entries", result)
}

// export streams the filtered gradebook as a CSV attachment.
func (h *GradebookHandler) export(c *fiber.Ctx) error {
	query, err := parseGradebookQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	filename, err := h.service.ExportCSV(withRequestContext(c), query, &buf)
	if err != nil {
		status := fiber.StatusInternalServerError
		if isValidationError(err) {
			status = fiber.StatusBadRequest
		}
		return utils.SendError(c, status, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

func parseGradebookQuery(c *fiber.Ctx) (dto.GradebookQuery, error) {
	query := dto.GradebookQuery{
		Status:    strings.TrimSpace(c.Query("status")),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    strings.TrimSpace(c.Query("sort_by")),
		SortOrder: strings.TrimSpace(c.Query("sort_order")),
	}

	if raw := strings.TrimSpace(c.Query("course_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return dto.GradebookQuery{}, fmt.Errorf("invalid course_id")
		}
		courseID := uint(parsed)
		query.CourseID = &courseID
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return dto.GradebookQuery{}, fmt.Errorf("invalid limit")
	}
	query.Limit = limit

	return query, nil
}
