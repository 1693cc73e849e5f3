package dto

import (
	"time"

	"github.com/noah-isme/eduport-api/internal/store"
)

// RecordCreateRequest carries the payload for a new collection record.
type RecordCreateRequest struct {
	ScopeID string                 `json:"scope_id" validate:"required,min=1,max=64"`
	Data    map[string]interface{} `json:"data" validate:"required"`
}

// RecordUpdateRequest carries a full replacement payload for a record.
type RecordUpdateRequest struct {
	ScopeID string                 `json:"scope_id" validate:"required,min=1,max=64"`
	Data    map[string]interface{} `json:"data" validate:"required"`
}

// RecordResponse serializes a stored record.
type RecordResponse struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Data      map[string]interface{} `json:"data"`
}

// NewRecordResponse converts a store record into a DTO.
func NewRecordResponse(record store.Record) RecordResponse {
	return RecordResponse{
		ID:        record.ID,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		Data:      record.Data,
	}
}

// NewRecordResponseSlice converts store records into DTOs.
func NewRecordResponseSlice(records []store.Record) []RecordResponse {
	responses := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewRecordResponse(record))
	}
	return responses
}
