package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

func newMockMutex(t *testing.T) (*Mutex, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	client := &Client{
		rdb:       db,
		keyPrefix: "psicorisco",
		ttl:       15 * time.Minute,
		logger:    logging.NewNopLogger(),
	}
	return NewMutex(client, "reaper", 30*time.Second, logging.NewNopLogger()), mock
}

func TestMutex_TryLockAcquires(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectSetNX("psicorisco:lock:reaper", m.token, 30*time.Second).SetVal(true)

	ok, err := m.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_TryLockContended(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectSetNX("psicorisco:lock:reaper", m.token, 30*time.Second).SetVal(false)

	ok, err := m.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_UnlockOnlyOwnToken(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectEvalSha(unlockScript.Hash(), []string{"psicorisco:lock:reaper"}, m.token).SetVal(int64(1))

	err := m.Unlock(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_ExtendLostLock(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectEvalSha(extendScript.Hash(), []string{"psicorisco:lock:reaper"},
		m.token, int64(30000)).SetVal(int64(0))

	ok, err := m.Extend(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
