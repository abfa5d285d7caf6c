package automation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func pendingItem() *WorkItem {
	return NewWorkItem(uuid.New(), uuid.New(), 3, fixedNow)
}

func TestNewWorkItem(t *testing.T) {
	item := pendingItem()
	assert.Equal(t, StatePending, item.State)
	assert.Zero(t, item.Attempts)
	assert.Equal(t, 3, item.MaxAttempts)
	assert.Equal(t, fixedNow, item.NextAttemptAt)
}

func TestWorkItemLeaseHeld(t *testing.T) {
	item := pendingItem()
	assert.False(t, item.LeaseHeld(fixedNow))

	expiry := fixedNow.Add(5 * time.Minute)
	item.LeaseOwner = "worker-1"
	item.LeaseExpiresAt = &expiry

	assert.True(t, item.LeaseHeld(fixedNow))
	assert.True(t, item.LeaseHeld(fixedNow.Add(4*time.Minute)))
	assert.False(t, item.LeaseHeld(fixedNow.Add(5*time.Minute)))
}

func TestWorkItemAdvance(t *testing.T) {
	item := pendingItem()

	require.NoError(t, item.Advance(StateProcessing, fixedNow))
	require.NoError(t, item.Advance(StateAnalyzed, fixedNow))
	assert.Equal(t, StateAnalyzed, item.State)

	err := item.Advance(StateDone, fixedNow)
	require.Error(t, err)
	assert.Equal(t, StateAnalyzed, item.State, "failed advance must not mutate state")
}

func TestWorkItemRecordFailure_RetryableWithAttemptsLeft(t *testing.T) {
	item := pendingItem()
	require.NoError(t, item.Advance(StateProcessing, fixedNow))

	item.RecordFailure("db timeout", true, 30*time.Second, fixedNow)

	assert.Equal(t, StatePending, item.State)
	assert.Equal(t, 1, item.Attempts)
	assert.Equal(t, fixedNow.Add(30*time.Second), item.NextAttemptAt)
	assert.Empty(t, item.LeaseOwner)
	assert.Equal(t, "db timeout", item.LastError)
}

func TestWorkItemRecordFailure_ExhaustedAttempts(t *testing.T) {
	item := pendingItem()
	for i := 0; i < 3; i++ {
		require.NoError(t, item.Advance(StateProcessing, fixedNow))
		item.RecordFailure("db timeout", true, time.Second, fixedNow)
	}
	assert.Equal(t, StateFailed, item.State)
	assert.Equal(t, 3, item.Attempts)
}

func TestWorkItemRecordFailure_NonRetryable(t *testing.T) {
	item := pendingItem()
	require.NoError(t, item.Advance(StateProcessing, fixedNow))

	item.RecordFailure("response incomplete", false, time.Second, fixedNow)
	assert.Equal(t, StateFailed, item.State, "input errors must not retry")
	assert.Equal(t, 1, item.Attempts)
}

func TestWorkItemComplete(t *testing.T) {
	item := pendingItem()
	require.NoError(t, item.Advance(StateProcessing, fixedNow))
	require.NoError(t, item.Advance(StateAnalyzed, fixedNow))
	require.NoError(t, item.Advance(StateSkipped, fixedNow))

	expiry := fixedNow.Add(time.Minute)
	item.LeaseOwner = "worker-1"
	item.LeaseExpiresAt = &expiry

	require.NoError(t, item.Complete(fixedNow))
	assert.Equal(t, StateDone, item.State)
	assert.Empty(t, item.LeaseOwner)

	err := item.Complete(fixedNow)
	assert.Error(t, err, "terminal items cannot complete twice")
}
