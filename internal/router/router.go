package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/eduport-api/internal/config"
	"github.com/noah-isme/eduport-api/internal/handler"
	"github.com/noah-isme/eduport-api/internal/middleware"
	"github.com/noah-isme/eduport-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradebookHandler    *handler.GradebookHandler
	ForumHandler        *handler.ForumHandler
	RecordHandler       *handler.RecordHandler
	OfflineHandler      *handler.OfflineHandler
	AnalyticsHandler    *handler.AnalyticsHandler
	LessonHandler       *handler.LessonHandler
	UploadHandler       *handler.UploadHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	RateLimiter         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staffOnly := middleware.RequireRole("admin", "teacher")

	// Gradebook (teacher & admin aggregation view)
	if deps.GradebookHandler != nil {
		gradebook := app.Group("/api/v2/gradebook", jwtMiddleware, staffOnly)
		deps.GradebookHandler.Register(gradebook)
	}

	// Forum (threads, replies, voting, moderation)
	if deps.ForumHandler != nil {
		forum := app.Group("/api/v2/forum", jwtMiddleware)
		deps.ForumHandler.Register(forum)
	}

	// Namespaced record collections
	if deps.RecordHandler != nil {
		records := app.Group("/api/v2/records", jwtMiddleware)
		deps.RecordHandler.Register(records)
	}

	// Offline content catalog
	if deps.OfflineHandler != nil {
		offline := app.Group("/api/v2/offline", jwtMiddleware)
		deps.OfflineHandler.Register(offline)
	}

	// Revenue & engagement analytics
	if deps.AnalyticsHandler != nil {
		analytics := app.Group("/api/v2/analytics", jwtMiddleware, staffOnly)
		deps.AnalyticsHandler.Register(analytics)
	}

	// Live lesson sessions & attendance
	if deps.LessonHandler != nil {
		lessons := app.Group("/api/v2/lessons", jwtMiddleware)
		deps.LessonHandler.Register(lessons)
	}

	// Attachment uploads, rate limited per user
	if deps.UploadHandler != nil {
		uploadGroup := app.Group("/api/v2/uploads", jwtMiddleware)
		if deps.RateLimiter != nil {
			uploadGroup.Use(deps.RateLimiter)
		}
		deps.UploadHandler.Register(uploadGroup)
	}

	// Per-user notifications
	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v2/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
