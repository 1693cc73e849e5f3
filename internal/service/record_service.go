package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/store"
)

// ErrUnknownCollection indicates the collection name is not registered.
var ErrUnknownCollection = errors.New("unknown record collection")

// ErrTemplatePayloadInvalid indicates a content template failed schema validation.
var ErrTemplatePayloadInvalid = errors.New("template payload does not match schema")

// CollectionContentTemplates is the only collection with a schema attached to
// its payloads; templates are shared and re-imported, so shape matters.
const CollectionContentTemplates = "content-templates"

var allowedCollections = map[string]struct{}{
	"student-notes":              {},
	CollectionContentTemplates:   {},
	"student-groups":             {},
	"recurring-lessons":          {},
}

const contentTemplateSchema = `{
  "type": "object",
  "required": ["name", "fields"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "fields": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["label", "type"],
        "properties": {
          "label": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": ["text", "textarea", "number", "date", "select"]},
          "options": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// RecordService provides CRUD over the registered per-user record collections.
type RecordService interface {
	List(ctx context.Context, collection, scopeID, userID string) ([]dto.RecordResponse, error)
	Create(ctx context.Context, collection, userID string, payload dto.RecordCreateRequest) (dto.RecordResponse, error)
	Update(ctx context.Context, collection, userID, id string, payload dto.RecordUpdateRequest) (dto.RecordResponse, error)
	Delete(ctx context.Context, collection, scopeID, userID, id string) error
}

type recordService struct {
	store          *store.CollectionStore
	validator      *validator.Validate
	logger         zerolog.Logger
	templateSchema *jsonschema.Schema
}

// NewRecordService constructs a record service over the collection store.
func NewRecordService(collections *store.CollectionStore, validate *validator.Validate, logger zerolog.Logger) RecordService {
	return &recordService{
		store:          collections,
		validator:      validate,
		logger:         logger.With().Str("component", "record_service").Logger(),
		templateSchema: jsonschema.MustCompileString("content_template.json", contentTemplateSchema),
	}
}

func (s *recordService) List(ctx context.Context, collection, scopeID, userID string) ([]dto.RecordResponse, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	records := s.store.List(ctx, collection, scopeID, userID)
	return dto.NewRecordResponseSlice(records), nil
}

func (s *recordService) Create(ctx context.Context, collection, userID string, payload dto.RecordCreateRequest) (dto.RecordResponse, error) {
	if err := checkCollection(collection); err != nil {
		return dto.RecordResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.RecordResponse{}, err
	}
	if err := s.validatePayload(collection, payload.Data); err != nil {
		return dto.RecordResponse{}, err
	}

	record, err := s.store.Create(ctx, collection, payload.ScopeID, userID, payload.Data)
	if err != nil {
		return dto.RecordResponse{}, err
	}

	s.logger.Info().
		Str("collection", collection).
		Str("record_id", record.ID).
		Str("user_id", userID).
		Msg("record created")

	return dto.NewRecordResponse(record), nil
}

func (s *recordService) Update(ctx context.Context, collection, userID, id string, payload dto.RecordUpdateRequest) (dto.RecordResponse, error) {
	if err := checkCollection(collection); err != nil {
		return dto.RecordResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.RecordResponse{}, err
	}
	if err := s.validatePayload(collection, payload.Data); err != nil {
		return dto.RecordResponse{}, err
	}

	record, err := s.store.Update(ctx, collection, payload.ScopeID, userID, id, payload.Data)
	if err != nil {
		return dto.RecordResponse{}, err
	}

	return dto.NewRecordResponse(record), nil
}

func (s *recordService) Delete(ctx context.Context, collection, scopeID, userID, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	return s.store.Delete(ctx, collection, scopeID, userID, id)
}

func (s *recordService) validatePayload(collection string, data map[string]interface{}) error {
	if collection != CollectionContentTemplates {
		return nil
	}

	// jsonschema validates decoded JSON values; the payload map already is one.
	value := map[string]interface{}(data)
	if err := s.templateSchema.Validate(interface{}(value)); err != nil {
		return fmt.Errorf("%w: %v", ErrTemplatePayloadInvalid, err)
	}
	return nil
}

func checkCollection(collection string) error {
	if _, ok := allowedCollections[collection]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return nil
}
