package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrKeyNotFound indicates the namespaced key has no stored value.
var ErrKeyNotFound = errors.New("key not found")

// ErrRecordNotFound indicates no record with the given id exists in the collection.
var ErrRecordNotFound = errors.New("record not found")

// Backend abstracts the key-value store backing record collections, so the
// implementation can be swapped without touching call sites.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type redisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps a redis client as a record store backend.
func NewRedisBackend(client *redis.Client) Backend {
	return &redisBackend{client: client}
}

func (b *redisBackend) Get(ctx context.Context, key string) (string, error) {
	value, err := b.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	return value, nil
}

func (b *redisBackend) Set(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, key, value, 0).Err()
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Record is a single entry in a per-user collection.
type Record struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Data      map[string]interface{} `json:"data"`
}

// CollectionStore provides CRUD over small per-user record collections.
// Writes re-serialize the whole collection; concurrent writers to the same
// key follow last-write-wins semantics.
type CollectionStore struct {
	backend Backend
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCollectionStore constructs a store over the given backend.
func NewCollectionStore(backend Backend, logger zerolog.Logger) *CollectionStore {
	return &CollectionStore{
		backend: backend,
		logger:  logger.With().Str("component", "collection_store").Logger(),
		now:     time.Now,
	}
}

// Key builds the namespaced storage key for a collection scoped to a subject
// and an acting user.
func Key(collection, scopeID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", collection, scopeID, userID)
}

// List returns all records in the collection. A missing key, malformed JSON
// or an unavailable backend all yield an empty collection; corruption is
// logged, never surfaced as an error.
func (s *CollectionStore) List(ctx context.Context, collection, scopeID, userID string) []Record {
	key := Key(collection, scopeID, userID)

	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read collection")
		}
		return []Record{}
	}

	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt collection payload")
		return []Record{}
	}

	return records
}

// Create appends a new record and rewrites the whole collection. The id is a
// millisecond timestamp string; creation and update stamps are set to now.
func (s *CollectionStore) Create(ctx context.Context, collection, scopeID, userID string, data map[string]interface{}) (Record, error) {
	now := s.now()
	record := Record{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		CreatedAt: now,
		UpdatedAt: now,
		Data:      data,
	}

	records := s.List(ctx, collection, scopeID, userID)
	records = append(records, record)

	if err := s.write(ctx, collection, scopeID, userID, records); err != nil {
		return Record{}, err
	}

	return record, nil
}

// Update replaces the record with the matching id and stamps a new UpdatedAt.
func (s *CollectionStore) Update(ctx context.Context, collection, scopeID, userID, id string, data map[string]interface{}) (Record, error) {
	records := s.List(ctx, collection, scopeID, userID)

	var updated *Record
	for i := range records {
		if records[i].ID != id {
			continue
		}
		records[i].Data = data
		records[i].UpdatedAt = s.now()
		updated = &records[i]
		break
	}

	if updated == nil {
		return Record{}, ErrRecordNotFound
	}

	if err := s.write(ctx, collection, scopeID, userID, records); err != nil {
		return Record{}, err
	}

	return *updated, nil
}

// Delete removes the record with the matching id and rewrites the collection.
func (s *CollectionStore) Delete(ctx context.Context, collection, scopeID, userID, id string) error {
	records := s.List(ctx, collection, scopeID, userID)

	filtered := make([]Record, 0, len(records))
	found := false
	for _, record := range records {
		if record.ID == id {
			found = true
			continue
		}
		filtered = append(filtered, record)
	}

	if !found {
		return ErrRecordNotFound
	}

	return s.write(ctx, collection, scopeID, userID, filtered)
}

func (s *CollectionStore) write(ctx context.Context, collection, scopeID, userID string, records []Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}

	return s.backend.Set(ctx, Key(collection, scopeID, userID), string(payload))
}
