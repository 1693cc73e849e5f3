package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/config"
	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/handler"
	"github.com/noah-isme/eduport-api/internal/middleware"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
	"github.com/noah-isme/eduport-api/internal/router"
	"github.com/noah-isme/eduport-api/internal/service"
)

func setupForumApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ForumThread{}, &models.ForumReply{}, &models.Notification{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	forumRepo := repository.NewForumRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, nil, "", validate, logger)
	forumService := service.NewForumService(forumRepo, notificationService, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ForumHandler:        handler.NewForumHandler(forumService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			userID := c.Get("X-Test-User")
			if userID == "" {
				userID = "student-7"
			}
			role := c.Get("X-Test-Role")
			if role == "" {
				role = "student"
			}
			c.Locals("user_id", userID)
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func TestForumEndToEndFlow(t *testing.T) {
	app := setupForumApp(t)

	// Step 1: author opens a thread
	resp := doJSON(t, app, http.MethodPost, "/api/v2/forum/threads", map[string]interface{}{
		"title": "How do I factor quadratics?",
		"body":  "Stuck on worksheet 3, problem 4.",
		"tags":  []string{"algebra", "homework"},
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var threadResp struct {
		Success bool                    `json:"success"`
		Data    dto.ForumThreadResponse `json:"data"`
	}
	decode(t, resp, &threadResp)
	require.True(t, threadResp.Success)
	require.Equal(t, "student-7", threadResp.Data.AuthorID)
	require.Equal(t, []string{"algebra", "homework"}, threadResp.Data.Tags)

	threadID := strconv.Itoa(int(threadResp.Data.ID))

	// Step 2: another student replies, markup is stripped on the way in
	resp = doJSON(t, app, http.MethodPost, "/api/v2/forum/replies", map[string]interface{}{
		"thread_id": threadResp.Data.ID,
		"content":   "<script>alert(1)</script>Group the terms first.",
	}, map[string]string{"X-Test-User": "student-8"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var replyResp struct {
		Success bool                   `json:"success"`
		Data    dto.ForumReplyResponse `json:"data"`
	}
	decode(t, resp, &replyResp)
	require.True(t, replyResp.Success)
	require.Equal(t, "Group the terms first.", replyResp.Data.Content)
	require.False(t, replyResp.Data.IsAccepted)

	// Step 3: votes accumulate on independent counters
	for _, direction := range []string{"up", "up", "down"} {
		resp = doJSON(t, app, http.MethodPost, "/api/v2/forum/threads/"+threadID+"/vote", map[string]interface{}{
			"direction": direction,
		}, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp = doJSON(t, app, http.MethodGet, "/api/v2/forum/threads/"+threadID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &threadResp)
	require.Equal(t, 2, threadResp.Data.Upvotes)
	require.Equal(t, 1, threadResp.Data.Downvotes)
	require.Equal(t, 1, threadResp.Data.Score)

	// Step 4: the thread author accepts the reply
	replyID := strconv.Itoa(int(replyResp.Data.ID))
	resp = doJSON(t, app, http.MethodPatch, "/api/v2/forum/replies/"+replyID+"/accept", map[string]interface{}{
		"accepted": true,
	}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &replyResp)
	require.True(t, replyResp.Data.IsAccepted)

	// Step 5: a teacher locks the thread, further replies bounce
	resp = doJSON(t, app, http.MethodPatch, "/api/v2/forum/threads/"+threadID+"/lock", map[string]interface{}{
		"enabled": true,
	}, map[string]string{"X-Test-User": "teacher-1", "X-Test-Role": "teacher"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &threadResp)
	require.True(t, threadResp.Data.IsLocked)
	require.False(t, threadResp.Data.IsPinned)

	resp = doJSON(t, app, http.MethodPost, "/api/v2/forum/replies", map[string]interface{}{
		"thread_id": threadResp.Data.ID,
		"content":   "One more thing",
	}, map[string]string{"X-Test-User": "student-8"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Step 6: the thread author was notified about the reply
	resp = doJSON(t, app, http.MethodGet, "/api/v2/notifications/", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var notifications struct {
		Success bool                       `json:"success"`
		Data    []dto.NotificationResponse `json:"data"`
	}
	decode(t, resp, &notifications)
	require.True(t, notifications.Success)
	require.Len(t, notifications.Data, 1)
	require.Equal(t, "forum_reply", notifications.Data[0].Type)
	require.False(t, notifications.Data[0].Read)

	// Step 7: marking the notification read is scoped to its owner
	notificationID := strconv.Itoa(int(notifications.Data[0].ID))
	resp = doJSON(t, app, http.MethodPatch, "/api/v2/notifications/"+notificationID+"/read", nil, map[string]string{"X-Test-User": "student-8"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPatch, "/api/v2/notifications/"+notificationID+"/read", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var marked struct {
		Success bool                     `json:"success"`
		Data    dto.NotificationResponse `json:"data"`
	}
	decode(t, resp, &marked)
	require.True(t, marked.Data.Read)
}
