package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/config"
	"github.com/noah-isme/eduport-api/internal/database"
	"github.com/noah-isme/eduport-api/internal/handler"
	"github.com/noah-isme/eduport-api/internal/middleware"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
	"github.com/noah-isme/eduport-api/internal/router"
	"github.com/noah-isme/eduport-api/internal/service"
	"github.com/noah-isme/eduport-api/internal/store"
	cloud "github.com/noah-isme/eduport-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.ForumThread{},
		&models.ForumReply{},
		&models.LessonSession{},
		&models.AttendanceRecord{},
		&models.UploadRecord{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, notification events disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	forumRepo := repository.NewForumRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	collections := store.NewCollectionStore(store.NewRedisBackend(redisClient), logger)

	gradebookService := service.NewGradebookService(courseRepo, enrollmentRepo, assignmentRepo, submissionRepo, validate, service.GradebookOptions{
		Concurrency: cfg.GradebookConcurrency,
		StrictLoad:  cfg.GradebookStrictLoad,
		IncludeBOM:  cfg.ExportIncludeBOM,
	}, logger)
	notificationService := service.NewNotificationService(notificationRepo, natsConn, cfg.NotificationSubject, validate, logger)
	forumService := service.NewForumService(forumRepo, notificationService, validate, logger)
	recordService := service.NewRecordService(collections, validate, logger)
	offlineService := service.NewOfflineService(collections, validate, logger, service.OfflineOptions{
		QuotaBytes:  int64(cfg.OfflineQuotaMB) << 20,
		StepPercent: cfg.OfflineStepPercent,
		Tick:        cfg.OfflineTick,
	})
	analyticsService := service.NewAnalyticsService(analyticsRepo, redisClient, cfg.AnalyticsCacheTTL, logger)
	lessonService := service.NewLessonService(lessonRepo, validate, logger)
	uploadService := service.NewUploadService(uploader, uploadRepo, cfg.UploadMaxSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradebookHandler:    handler.NewGradebookHandler(gradebookService, logger),
		ForumHandler:        handler.NewForumHandler(forumService, logger),
		RecordHandler:       handler.NewRecordHandler(recordService, logger),
		OfflineHandler:      handler.NewOfflineHandler(offlineService, logger),
		AnalyticsHandler:    handler.NewAnalyticsHandler(analyticsService, logger),
		LessonHandler:       handler.NewLessonHandler(lessonService, logger),
		UploadHandler:       handler.NewUploadHandler(uploadService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		RateLimiter:         middleware.RateLimit("uploads", 30, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
