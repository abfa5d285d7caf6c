package automation

import (
	"context"
	"time"

	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

// EventPublisher emits pipeline events to the message bus so other
// services (dashboards, data warehouse) can react.
type EventPublisher interface {
	PublishAnalysisCreated(ctx context.Context, analysis *risk.Analysis) error
	PublishPipelineCompleted(ctx context.Context, item *domain.WorkItem, level scoring.ExposureLevel) error
	PublishPipelineFailed(ctx context.Context, item *domain.WorkItem, cause string) error
}

// NopPublisher drops events, for tests and wire-disabled deployments.
type NopPublisher struct{}

func (NopPublisher) PublishAnalysisCreated(context.Context, *risk.Analysis) error { return nil }
func (NopPublisher) PublishPipelineCompleted(context.Context, *domain.WorkItem, scoring.ExposureLevel) error {
	return nil
}
func (NopPublisher) PublishPipelineFailed(context.Context, *domain.WorkItem, string) error {
	return nil
}

// PipelineMetrics is the monitoring surface of the processor.
type PipelineMetrics interface {
	ObserveStage(stage domain.State, outcome domain.Outcome, d time.Duration)
	SetQueueDepth(state domain.State, depth int)
	IncProcessed(level scoring.ExposureLevel)
	IncRetry()
	IncEscalation(tier int)
}

// NopMetrics discards observations.
type NopMetrics struct{}

func (NopMetrics) ObserveStage(domain.State, domain.Outcome, time.Duration) {}
func (NopMetrics) SetQueueDepth(domain.State, int)                          {}
func (NopMetrics) IncProcessed(scoring.ExposureLevel)                       {}
func (NopMetrics) IncRetry()                                                {}
func (NopMetrics) IncEscalation(int)                                        {}
