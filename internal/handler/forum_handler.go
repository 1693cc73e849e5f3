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

// ForumHandler provides HTTP endpoints for forum threads and replies.
type ForumHandler struct {
	service service.ForumService
	logger  zerolog.Logger
}

// NewForumHandler constructs a handler instance.
func NewForumHandler(service service.ForumService, logger zerolog.Logger) *ForumHandler {
	return &ForumHandler{
		service: service,
		logger:  logger.With().Str("component", "forum_handler").Logger(),
	}
}

// Register binds the forum routes.
func (h *ForumHandler) Register(router fiber.Router) {
	router.Get("/threads", h.listThreads)
	router.Post("/threads", h.createThread)
	router.Get("/threads/:id", h.getThread)
	router.Put("/threads/:id", h.updateThread)
	router.Delete("/threads/:id", h.deleteThread)
	router.Patch("/threads/:id/pin", h.setPinned)
	router.Patch("/threads/:id/lock", h.setLocked)
	router.Post("/threads/:id/vote", h.voteThread)

	router.Get("/replies", h.listReplies)
	router.Post("/replies", h.createReply)
	router.Post("/replies/:id/vote", h.voteReply)
	router.Patch("/replies/:id/accept", h.setReplyAccepted)
}

func (h *ForumHandler) listThreads(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	threads, err := h.service.ListThreads(withRequestContext(c), limit, offset)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "threads", threads)
}

func (h *ForumHandler) getThread(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	includeReplies := strings.ToLower(strings.TrimSpace(c.Query("include_replies"))) == "true"

	thread, err := h.service.GetThread(withRequestContext(c), uint(id), includeReplies)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "thread", thread)
}

func (h *ForumHandler) createThread(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ForumThreadCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.CreateThread(withRequestContext(c), userID, userRoleFromContext(c), payload)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thread created", response)
}

func (h *ForumHandler) updateThread(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ForumThreadUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.UpdateThread(withRequestContext(c), uint(id), userID, userRoleFromContext(c), payload)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "thread updated", response)
}

func (h *ForumHandler) deleteThread(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteThread(withRequestContext(c), uint(id), userID, userRoleFromContext(c)); err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "thread deleted", nil)
}

type moderationRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *ForumHandler) setPinned(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload moderationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SetPinned(withRequestContext(c), uint(id), userRoleFromContext(c), payload.Enabled)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "thread pin state updated", response)
}

func (h *ForumHandler) setLocked(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload moderationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SetLocked(withRequestContext(c), uint(id), userRoleFromContext(c), payload.Enabled)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "thread lock state updated", response)
}

type voteRequest struct {
	Direction string `json:"direction"`
}

func (h *ForumHandler) voteThread(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload voteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.VoteThread(withRequestContext(c), uint(id), payload.Direction)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "vote recorded", response)
}

func (h *ForumHandler) listReplies(c *fiber.Ctx) error {
	threadIDParam := c.Query("thread_id")
	if threadIDParam == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "thread_id required")
	}

	threadID, err := strconv.ParseUint(threadIDParam, 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid thread_id")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	replies, err := h.service.ListReplies(withRequestContext(c), uint(threadID), limit, offset)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "replies", replies)
}

func (h *ForumHandler) createReply(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ForumReplyCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	reply, err := h.service.CreateReply(withRequestContext(c), userID, userRoleFromContext(c), payload)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reply created", reply)
}

func (h *ForumHandler) voteReply(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload voteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.VoteReply(withRequestContext(c), uint(id), payload.Direction)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "vote recorded", response)
}

type acceptRequest struct {
	Accepted bool `json:"accepted"`
}

func (h *ForumHandler) setReplyAccepted(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload acceptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SetReplyAccepted(withRequestContext(c), uint(id), userID, userRoleFromContext(c), payload.Accepted)
	if err != nil {
		return utils.SendError(c, forumErrorStatus(err), err.Error())
	}

	return utils.SendSuccess(c, "reply acceptance updated", response)
}

func forumErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrForumForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrThreadLocked):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidVote):
		return fiber.StatusBadRequest
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case isValidationError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
