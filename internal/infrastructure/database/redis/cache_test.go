package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

type statsPayload struct {
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

func newMockCache(t *testing.T) (*Cache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	client := &Client{
		rdb:       db,
		keyPrefix: "psicorisco",
		ttl:       15 * time.Minute,
		logger:    logging.NewNopLogger(),
	}
	return NewCache(client, logging.NewNopLogger()), mock
}

func TestCache_GetHit(t *testing.T) {
	cache, mock := newMockCache(t)
	want := statsPayload{Done: 4, Failed: 1}
	raw, _ := json.Marshal(want)
	mock.ExpectGet("psicorisco:stats:abc").SetVal(string(raw))

	var got statsPayload
	hit, err := cache.Get(context.Background(), "stats:abc", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetMiss(t *testing.T) {
	cache, mock := newMockCache(t)
	mock.ExpectGet("psicorisco:stats:abc").RedisNil()

	var got statsPayload
	hit, err := cache.Get(context.Background(), "stats:abc", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_SetUsesDefaultTTL(t *testing.T) {
	cache, mock := newMockCache(t)
	value := statsPayload{Done: 2}
	raw, _ := json.Marshal(value)
	mock.ExpectSet("psicorisco:stats:abc", raw, 15*time.Minute).SetVal("OK")

	err := cache.Set(context.Background(), "stats:abc", value, 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_InvalidatePrefix(t *testing.T) {
	cache, mock := newMockCache(t)
	mock.ExpectScan(0, "psicorisco:stats:*", scanBatchSize).SetVal(
		[]string{"psicorisco:stats:a", "psicorisco:stats:b"}, 0)
	mock.ExpectDel("psicorisco:stats:a", "psicorisco:stats:b").SetVal(2)

	err := cache.InvalidatePrefix(context.Background(), "stats:")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
