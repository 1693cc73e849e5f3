package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/utils"
)

// LessonHandler provides HTTP endpoints for live lesson sessions.
type LessonHandler struct {
	service service.LessonService
	logger  zerolog.Logger
}

// NewLessonHandler constructs a handler instance.
func NewLessonHandler(service service.LessonService, logger zerolog.Logger) *LessonHandler {
	return &LessonHandler{
		service: service,
		logger:  logger.With().Str("component", "lesson_handler").Logger(),
	}
}

// Register binds the lesson session routes.
func (h *LessonHandler) Register(router fiber.Router) {
	router.Get("/sessions", h.listSessions)
	router.Post("/sessions", h.createSession)
	router.Post("/sessions/:id/check-in", h.checkIn)
	router.Post("/sessions/:id/check-out", h.checkOut)
	router.Get("/sessions/:id/attendance", h.attendance)
	router.Post("/sessions/:id/breakouts", h.assignBreakouts)
}

func (h *LessonHandler) listSessions(c *fiber.Ctx) error {
	var courseID *uint
	if raw := strings.TrimSpace(c.Query("course_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
		}
		id := uint(parsed)
		courseID = &id
	}

	sessions, err := h.service.ListSessions(withRequestContext(c), courseID)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "sessions", sessions)
}

func (h *LessonHandler) createSession(c *fiber.Ctx) error {
	var payload dto.LessonSessionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	session, err := h.service.CreateSession(withRequestContext(c), payload)
	if err != nil {
		return utils.SendError(c, lessonErrorStatus(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session scheduled", session)
}

func (h *LessonHandler) checkIn(c *fiber.Ctx) error {
	sessionID, studentID, err := sessionAndStudent(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.service.CheckIn(withRequestContext(c), sessionID, studentID)
	if err != nil {
		return utils.SendError(c, lessonErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "checked in", record)
}

func (h *LessonHandler) checkOut(c *fiber.Ctx) error {
	sessionID, studentID, err := sessionAndStudent(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.service.CheckOut(withRequestContext(c), sessionID, studentID)
	if err != nil {
		return utils.SendError(c, lessonErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "checked out", record)
}

func (h *LessonHandler) attendance(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListAttendance(withRequestContext(c), uint(id))
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "attendance", records)
}

func (h *LessonHandler) assignBreakouts(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BreakoutAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.AssignBreakouts(withRequestContext(c), uint(id), payload)
	if err != nil {
		return utils.SendError(c, lessonErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "breakout rooms assigned", assignment)
}

func sessionAndStudent(c *fiber.Ctx) (uint, uint, error) {
	sessionID, err := parseUintParamValue(c, "id")
	if err != nil {
		return 0, 0, err
	}

	var payload struct {
		StudentID uint `json:"student_id"`
	}
	if err := c.BodyParser(&payload); err != nil || payload.StudentID == 0 {
		return 0, 0, errors.New("student_id required")
	}

	return uint(sessionID), payload.StudentID, nil
}

func lessonErrorStatus(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrAlreadyCheckedOut):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrNoAttendees):
		return fiber.StatusUnprocessableEntity
	case isValidationError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
