package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

func TestMetrics_CountersAndGauges(t *testing.T) {
	m := NewMetrics("psicorisco")

	m.IncProcessed(scoring.ExposureCritico)
	m.IncProcessed(scoring.ExposureCritico)
	m.IncProcessed(scoring.ExposureBaixo)
	m.IncRetry()
	m.IncEscalation(1)
	m.SetQueueDepth(automation.StatePending, 7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.processed.WithLabelValues("critico")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.processed.WithLabelValues("baixo")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retries))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.escalations.WithLabelValues("manager")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queueDepth.WithLabelValues("pending")))
}

func TestMetrics_ObserveStage(t *testing.T) {
	m := NewMetrics("psicorisco")
	m.ObserveStage(automation.StateAnalyzed, automation.OutcomeSuccess, 120*time.Millisecond)
	m.ObserveStage(automation.StateAnalyzed, automation.OutcomeFailure, 50*time.Millisecond)

	count, err := testutil.GatherAndCount(m.registry, "psicorisco_pipeline_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Building two metric sets must not panic on duplicate registration.
	require.NotPanics(t, func() {
		_ = NewMetrics("psicorisco")
		_ = NewMetrics("psicorisco")
	})
}

func TestTierLabel(t *testing.T) {
	assert.Equal(t, "hr", tierLabel(0))
	assert.Equal(t, "manager", tierLabel(1))
	assert.Equal(t, "leadership", tierLabel(2))
	assert.Equal(t, "unknown", tierLabel(9))
}
