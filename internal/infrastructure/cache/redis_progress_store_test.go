package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/shared"
)

func sampleProgress() dataset.Progress {
	return dataset.Progress{
		VersionID: uuid.MustParse("0b7f5c3e-8d5e-4d1f-9a57-2f1c2a3b4c5d"),
		Stage:     dataset.StageParsing,
		Percent:   40,
		Message:   "Processing rows 5001-10000",
		UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRedisProgressStore_Set(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisProgressStore(client, "test:progress:", 10*time.Minute)
	p := sampleProgress()
	payload, err := json.Marshal(p)
	require.NoError(t, err)

	mock.ExpectSet("test:progress:"+p.VersionID.String(), payload, 10*time.Minute).SetVal("OK")

	require.NoError(t, store.Set(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisProgressStore_Get(t *testing.T) {
	p := sampleProgress()
	key := defaultProgressPrefix + p.VersionID.String()

	t.Run("decodes stored progress", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisProgressStore(client, "", 0)
		payload, _ := json.Marshal(p)
		mock.ExpectGet(key).SetVal(string(payload))

		got, err := store.Get(context.Background(), p.VersionID)
		require.NoError(t, err)
		assert.Equal(t, p.Stage, got.Stage)
		assert.Equal(t, 40, got.Percent)
		assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing key is not found", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisProgressStore(client, "", 0)
		mock.ExpectGet(key).RedisNil()

		_, err := store.Get(context.Background(), p.VersionID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("corrupt payload is an error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisProgressStore(client, "", 0)
		mock.ExpectGet(key).SetVal("{not json")

		_, err := store.Get(context.Background(), p.VersionID)
		require.Error(t, err)
		assert.False(t, shared.IsNotFound(err))
	})

	t.Run("connection error is wrapped", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisProgressStore(client, "", 0)
		mock.ExpectGet(key).SetErr(assert.AnError)

		_, err := store.Get(context.Background(), p.VersionID)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestRedisProgressStore_Delete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisProgressStore(client, "", 0)
	id := uuid.New()

	mock.ExpectDel(defaultProgressPrefix + id.String()).SetVal(1)

	require.NoError(t, store.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
