package dto

import (
	"time"

	"github.com/noah-isme/eduport-api/internal/models"
)

// NotificationCreateRequest carries a message targeted at a single user.
type NotificationCreateRequest struct {
	UserID  string `json:"user_id" validate:"required,min=1,max=64"`
	Type    string `json:"type" validate:"required,min=1,max=64"`
	Message string `json:"message" validate:"required,min=1"`
}

// NotificationResponse serializes a stored notification.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}
	return responses
}
