package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateProcessing, true},
		{StateProcessing, StateAnalyzed, true},
		{StateAnalyzed, StateActionPlanned, true},
		{StateAnalyzed, StateSkipped, true},
		{StateActionPlanned, StateNotified, true},
		{StateSkipped, StateNotified, true},
		{StateSkipped, StateDone, true},
		{StateNotified, StateDone, true},

		// Failed is reachable from anything non-terminal.
		{StatePending, StateFailed, true},
		{StateProcessing, StateFailed, true},
		{StateNotified, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateFailed, false},

		// Retry path.
		{StateFailed, StatePending, true},

		// Stages cannot be skipped or reversed.
		{StatePending, StateAnalyzed, false},
		{StateProcessing, StateNotified, false},
		{StateAnalyzed, StateDone, false},
		{StateDone, StatePending, false},
		{StateNotified, StateProcessing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatePending, StateProcessing))

	err := ValidateTransition(StatePending, StateDone)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateNotified.Terminal())
}
