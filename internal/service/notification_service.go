package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
)

// ErrNotificationForbidden indicates the notification belongs to another user.
var ErrNotificationForbidden = errors.New("notification does not belong to user")

// NotificationService persists notifications and fans them out to the message broker.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
}

type notificationService struct {
	repo        repository.NotificationRepository
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
}

type notificationEvent struct {
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// NewNotificationService constructs a notification service. The NATS
// connection is optional; without one events are only persisted.
func NewNotificationService(repo repository.NotificationRepository, natsConn *nats.Conn, subject string, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:        repo,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/eduport-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, errors.New("notification message empty after sanitization")
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", payload.Type),
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Notification{
		UserID:  payload.UserID,
		Type:    payload.Type,
		Message: cleanMessage,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	if err := s.publishEvent(response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	return response, nil
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	if notification.UserID != userID {
		return dto.NotificationResponse{}, ErrNotificationForbidden
	}

	if !notification.Read {
		notification.Read = true
		if err := s.repo.Update(ctx, &notification); err != nil {
			return dto.NotificationResponse{}, err
		}
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) publishEvent(notification dto.NotificationResponse) error {
	if s.nats == nil || s.natsSubject == "" {
		return nil
	}

	payload, err := json.Marshal(notificationEvent{
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return s.nats.Publish(s.natsSubject, payload)
}
