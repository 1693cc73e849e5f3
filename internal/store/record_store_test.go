package store

import (
	"context"
	"io"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*CollectionStore, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCollectionStore(NewRedisBackend(client), zerolog.New(io.Discard)), server
}

func TestCollectionStoreKeyScheme(t *testing.T) {
	require.Equal(t, "student-notes:7:42", Key("student-notes", "7", "42"))
}

func TestCollectionStoreCreateThenDeleteRestoresState(t *testing.T) {
	store, server := setupStore(t)
	ctx := context.Background()

	// advance the clock per call so ids never collide within one millisecond
	base := time.UnixMilli(1700000000000)
	calls := 0
	store.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	_, err := store.Create(ctx, "student-notes", "7", "42", map[string]interface{}{"body": "existing"})
	require.NoError(t, err)

	before, err := server.Get(Key("student-notes", "7", "42"))
	require.NoError(t, err)

	created, err := store.Create(ctx, "student-notes", "7", "42", map[string]interface{}{"body": "scratch"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "student-notes", "7", "42", created.ID))

	after, err := server.Get(Key("student-notes", "7", "42"))
	require.NoError(t, err)
	require.JSONEq(t, before, after)
}

func TestCollectionStoreCorruptPayloadTreatedAsEmpty(t *testing.T) {
	store, server := setupStore(t)
	ctx := context.Background()

	require.NoError(t, server.Set(Key("student-groups", "class-1", "9"), "{not json"))

	records := store.List(ctx, "student-groups", "class-1", "9")
	require.Empty(t, records)

	// a create after corruption starts from an empty collection
	_, err := store.Create(ctx, "student-groups", "class-1", "9", map[string]interface{}{"name": "group A"})
	require.NoError(t, err)
	require.Len(t, store.List(ctx, "student-groups", "class-1", "9"), 1)
}

func TestCollectionStoreUpdateStampsUpdatedAt(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "content-templates", "library", "3", map[string]interface{}{"title": "draft"})
	require.NoError(t, err)

	store.now = func() time.Time { return created.CreatedAt.Add(time.Minute) }

	updated, err := store.Update(ctx, "content-templates", "library", "3", created.ID, map[string]interface{}{"title": "final"})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())
	require.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	require.Equal(t, "final", updated.Data["title"])
}

func TestCollectionStoreUpdateMissingRecord(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.Update(context.Background(), "student-notes", "7", "42", "123", map[string]interface{}{})
	require.ErrorIs(t, err, ErrRecordNotFound)

	err = store.Delete(context.Background(), "student-notes", "7", "42", "123")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCollectionStoreMillisecondIDs(t *testing.T) {
	store, _ := setupStore(t)

	fixed := time.UnixMilli(1700000000123)
	store.now = func() time.Time { return fixed }

	created, err := store.Create(context.Background(), "recurring-lessons", "global", "5", map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, "1700000000123", created.ID)
}
