package automation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/nexohr/psicorisco/internal/domain/automation"
)

// memCache is an in-memory StatsCache with hit counting.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = raw
	c.sets++
	c.mu.Unlock()
	return nil
}

func (c *memCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func seedStatsData(t *testing.T, logs *fakeLogs, queue *fakeQueue, companyID uuid.UUID) {
	t.Helper()
	item := domain.NewWorkItem(uuid.New(), companyID, 3, testStart)
	_, err := queue.Enqueue(context.Background(), item)
	require.NoError(t, err)
	require.NoError(t, logs.Append(context.Background(), &domain.LogEntry{
		ID:        uuid.New(),
		CompanyID: companyID,
		Stage:     domain.StateAnalyzed,
		Outcome:   domain.OutcomeFailure,
		CreatedAt: testStart,
	}))
}

func TestStatsServiceGet(t *testing.T) {
	logs := &fakeLogs{}
	queue := newFakeQueue()
	companyID := uuid.New()
	seedStatsData(t, logs, queue, companyID)

	svc := NewStatsService(logs, queue, nil, time.Minute, newFakeClock(testStart), nil)
	stats, err := svc.Get(context.Background(), companyID, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Queue[domain.StatePending])
	assert.Equal(t, 1, stats.StageFailures[domain.StateAnalyzed])
	assert.Equal(t, testStart.Add(-24*time.Hour), stats.Since)
}

func TestStatsServiceGet_CacheHitSkipsRecompute(t *testing.T) {
	logs := &fakeLogs{}
	queue := newFakeQueue()
	cache := newMemCache()
	companyID := uuid.New()
	seedStatsData(t, logs, queue, companyID)

	svc := NewStatsService(logs, queue, cache, time.Minute, newFakeClock(testStart), nil)

	_, err := svc.Get(context.Background(), companyID, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	_, err = svc.Get(context.Background(), companyID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets, "second read must come from cache")
}

func TestStatsServiceInvalidate(t *testing.T) {
	logs := &fakeLogs{}
	queue := newFakeQueue()
	cache := newMemCache()
	companyID := uuid.New()
	seedStatsData(t, logs, queue, companyID)

	svc := NewStatsService(logs, queue, cache, time.Minute, newFakeClock(testStart), nil)
	_, err := svc.Get(context.Background(), companyID, 24*time.Hour)
	require.NoError(t, err)

	svc.Invalidate(context.Background())

	_, err = svc.Get(context.Background(), companyID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets, "invalidation must force a recompute")
}
