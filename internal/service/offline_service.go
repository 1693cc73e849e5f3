package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/store"
)

// ErrOfflineQuotaExceeded indicates the requested download would exceed the storage quota.
var ErrOfflineQuotaExceeded = errors.New("offline storage quota exceeded")

const (
	offlineCollection = "offline-content"
	offlineScope      = "catalog"
)

// OfflineService manages the per-user catalog of content marked for offline
// use. Downloads are simulated: progress advances a fixed step per tick until
// the item is ready.
type OfflineService interface {
	Mark(ctx context.Context, userID string, payload dto.OfflineMarkRequest) (dto.OfflineItemResponse, error)
	Catalog(ctx context.Context, userID string) (dto.OfflineCatalogResponse, error)
	Remove(ctx context.Context, userID, id string) error
}

// OfflineOptions tunes quota and the simulated download cadence.
type OfflineOptions struct {
	QuotaBytes  int64
	StepPercent int
	Tick        time.Duration
}

type offlineService struct {
	store       *store.CollectionStore
	validator   *validator.Validate
	logger      zerolog.Logger
	quotaBytes  int64
	stepPercent int
	tick        time.Duration
}

// NewOfflineService constructs an offline content service.
func NewOfflineService(collections *store.CollectionStore, validate *validator.Validate, logger zerolog.Logger, opts OfflineOptions) OfflineService {
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = 512 << 20
	}
	if opts.StepPercent <= 0 || opts.StepPercent > 100 {
		opts.StepPercent = 10
	}
	if opts.Tick <= 0 {
		opts.Tick = 250 * time.Millisecond
	}

	return &offlineService{
		store:       collections,
		validator:   validate,
		logger:      logger.With().Str("component", "offline_service").Logger(),
		quotaBytes:  opts.QuotaBytes,
		stepPercent: opts.StepPercent,
		tick:        opts.Tick,
	}
}

func (s *offlineService) Mark(ctx context.Context, userID string, payload dto.OfflineMarkRequest) (dto.OfflineItemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OfflineItemResponse{}, err
	}

	used := s.usedBytes(ctx, userID)
	if used+payload.SizeBytes > s.quotaBytes {
		return dto.OfflineItemResponse{}, ErrOfflineQuotaExceeded
	}

	data := map[string]interface{}{
		"course_id":  payload.CourseID,
		"title":      payload.Title,
		"size_bytes": payload.SizeBytes,
		"progress":   0,
		"status":     dto.OfflineStatusQueued,
	}
	if payload.LessonID != nil {
		data["lesson_id"] = *payload.LessonID
	}

	record, err := s.store.Create(ctx, offlineCollection, offlineScope, userID, data)
	if err != nil {
		return dto.OfflineItemResponse{}, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("item_id", record.ID).
		Int64("size_bytes", payload.SizeBytes).
		Msg("content marked for offline use")

	go s.simulateDownload(userID, record.ID)

	return offlineItemFromRecord(record), nil
}

func (s *offlineService) Catalog(ctx context.Context, userID string) (dto.OfflineCatalogResponse, error) {
	records := s.store.List(ctx, offlineCollection, offlineScope, userID)

	items := make([]dto.OfflineItemResponse, 0, len(records))
	var used int64
	for _, record := range records {
		item := offlineItemFromRecord(record)
		used += item.SizeBytes
		items = append(items, item)
	}

	usedPct := 0.0
	if s.quotaBytes > 0 {
		usedPct = float64(used) / float64(s.quotaBytes) * 100
	}

	return dto.OfflineCatalogResponse{
		Items: items,
		Quota: dto.OfflineQuotaResponse{
			UsedBytes:  used,
			LimitBytes: s.quotaBytes,
			UsedPct:    usedPct,
		},
	}, nil
}

// Remove deletes the catalog entry. Only the entry goes away; nothing else
// about the course or lesson is touched.
func (s *offlineService) Remove(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, offlineCollection, offlineScope, userID, id)
}

func (s *offlineService) usedBytes(ctx context.Context, userID string) int64 {
	records := s.store.List(ctx, offlineCollection, offlineScope, userID)
	var used int64
	for _, record := range records {
		used += asInt64(record.Data["size_bytes"])
	}
	return used
}

// simulateDownload advances the stored progress by the configured step each
// tick. It runs detached from the request context so a disconnecting client
// does not strand a half-downloaded item.
func (s *offlineService) simulateDownload(userID, id string) {
	ctx := context.Background()
	progress := 0

	for progress < 100 {
		time.Sleep(s.tick)
		progress += s.stepPercent
		if progress > 100 {
			progress = 100
		}

		status := dto.OfflineStatusDownloading
		if progress >= 100 {
			status = dto.OfflineStatusReady
		}

		if err := s.patchItem(ctx, userID, id, progress, status); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				// Item was removed mid-download; nothing left to update.
				return
			}
			s.logger.Warn().Err(err).Str("item_id", id).Msg("failed to advance download progress")
			return
		}
	}
}

func (s *offlineService) patchItem(ctx context.Context, userID, id string, progress int, status string) error {
	records := s.store.List(ctx, offlineCollection, offlineScope, userID)
	for _, record := range records {
		if record.ID != id {
			continue
		}
		data := record.Data
		data["progress"] = progress
		data["status"] = status
		_, err := s.store.Update(ctx, offlineCollection, offlineScope, userID, id, data)
		return err
	}
	return store.ErrRecordNotFound
}

func offlineItemFromRecord(record store.Record) dto.OfflineItemResponse {
	item := dto.OfflineItemResponse{
		ID:        record.ID,
		CourseID:  uint(asInt64(record.Data["course_id"])),
		Title:     asString(record.Data["title"]),
		SizeBytes: asInt64(record.Data["size_bytes"]),
		Progress:  int(asInt64(record.Data["progress"])),
		Status:    asString(record.Data["status"]),
		MarkedAt:  record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if raw, ok := record.Data["lesson_id"]; ok {
		lessonID := uint(asInt64(raw))
		item.LessonID = &lessonID
	}
	if item.Status == "" {
		item.Status = dto.OfflineStatusQueued
	}
	return item
}

// asInt64 tolerates the numeric types a JSON round-trip may produce.
func asInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func asString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
