package risk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Enricher augments an analysis with supplementary metadata, such as
// historical trend markers or sector benchmarks. Enrichment is
// best-effort: a failing enricher never fails the analysis.
type Enricher interface {
	Enrich(ctx context.Context, analysis *Analysis) error
}

// NopEnricher performs no enrichment.
type NopEnricher struct{}

func (NopEnricher) Enrich(context.Context, *Analysis) error { return nil }

// TimeoutEnricher bounds a wrapped enricher to a deadline so a slow
// enrichment source cannot stall the pipeline.
type TimeoutEnricher struct {
	Wrapped Enricher
	Timeout time.Duration
}

func (e TimeoutEnricher) Enrich(ctx context.Context, analysis *Analysis) error {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Wrapped.Enrich(ctx, analysis) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeEnrichmentFailed, "enrichment timed out")
	}
}

// Builder assembles risk analyses from scoring results.
type Builder struct {
	enricher Enricher
	logger   logging.Logger
}

// NewBuilder creates a Builder. A nil enricher disables enrichment.
func NewBuilder(enricher Enricher, logger logging.Logger) *Builder {
	if enricher == nil {
		enricher = NopEnricher{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Builder{enricher: enricher, logger: logger.Named("risk")}
}

// Build produces an Analysis for a scored response. The next evaluation
// date follows the worst category level. Enrichment failures are logged
// and discarded.
func (b *Builder) Build(ctx context.Context, response *assessment.Response, org *assessment.OrgContext, result *scoring.Result, now time.Time) (*Analysis, error) {
	if response == nil || result == nil {
		return nil, apperrors.New(apperrors.ErrCodeRiskBuildFailed, "response and scoring result are required")
	}
	if len(result.Categories) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeRiskAllCategoriesFailed, "scoring result has no categories")
	}

	categories := make([]CategoryRisk, 0, len(result.Categories))
	for _, cs := range result.Categories {
		recommended, mandatory := measuresFor(cs.CategoryID, cs.Level)
		categories = append(categories, CategoryRisk{
			CategoryID:         cs.CategoryID,
			CategoryName:       cs.CategoryName,
			Score:              cs.Score,
			Level:              cs.Level,
			RecommendedActions: recommended,
			MandatoryMeasures:  mandatory,
		})
	}

	worst := result.WorstLevel()
	analysis := &Analysis{
		ID:               uuid.New(),
		ResponseID:       response.ID,
		CompanyID:        response.CompanyID,
		EmployeeID:       response.EmployeeID,
		Categories:       categories,
		OverallScore:     result.OverallScore,
		OverallLevel:     result.OverallLevel,
		WorstLevel:       worst,
		NextEvaluationAt: now.Add(NextEvaluationOffset(worst)),
		CreatedAt:        now,
	}
	if org != nil {
		analysis.SectorID = org.SectorID
	}

	if err := b.enricher.Enrich(ctx, analysis); err != nil {
		b.logger.Warn("analysis enrichment failed, continuing without it",
			logging.String("response_id", response.ID.String()),
			logging.Err(err))
	}
	return analysis, nil
}
