package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

func TestConfigShouldNotify(t *testing.T) {
	cfg := &Config{MinNotifyLevel: scoring.ExposureAlto}

	assert.False(t, cfg.ShouldNotify(scoring.ExposureBaixo))
	assert.False(t, cfg.ShouldNotify(scoring.ExposureMedio))
	assert.True(t, cfg.ShouldNotify(scoring.ExposureAlto))
	assert.True(t, cfg.ShouldNotify(scoring.ExposureCritico))
}

func TestConfigLadder_DefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	ladder := cfg.Ladder()

	assert.Equal(t, DefaultEscalationLadder(), ladder)
	assert.Equal(t, RoleHR, ladder[0].Role)
	assert.Equal(t, RoleManager, ladder[1].Role)
	assert.Equal(t, RoleLeadership, ladder[2].Role)
}

func TestConfigLadder_CustomStepsWin(t *testing.T) {
	custom := []EscalationStep{
		{Role: RoleHR, Channel: "email", DelayMinutes: 120},
		{Role: RoleLeadership, Channel: "slack"},
	}
	cfg := &Config{EscalationLadder: custom}

	assert.Equal(t, custom, cfg.Ladder())
}

func TestConfigTierDeadline(t *testing.T) {
	cfg := &Config{EscalationLadder: []EscalationStep{
		{Role: RoleHR, Channel: "email", DelayMinutes: 120},
		{Role: RoleManager, Channel: "in_app", DelayMinutes: 60},
		{Role: RoleLeadership, Channel: "slack"},
	}}

	d, ok := cfg.TierDeadline(0)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Hour, d)

	d, ok = cfg.TierDeadline(1)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, d)

	// The final step has no deadline: there is nothing to climb to.
	_, ok = cfg.TierDeadline(2)
	assert.False(t, ok)
	_, ok = cfg.TierDeadline(-1)
	assert.False(t, ok)
}

func TestConfigProcessingDelay(t *testing.T) {
	assert.Zero(t, (&Config{}).ProcessingDelay())
	assert.Equal(t, 45*time.Minute, (&Config{ProcessingDelayMinutes: 45}).ProcessingDelay())
}
