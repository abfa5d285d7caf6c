package actionplan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Generator creates action plans from risk analyses. Generation is
// idempotent per analysis: a second call returns the stored plan.
type Generator struct {
	repo   Repository
	logger logging.Logger
}

// NewGenerator builds a Generator backed by the given repository.
func NewGenerator(repo Repository, logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Generator{repo: repo, logger: logger.Named("actionplan")}
}

// Generate creates and persists a plan for the analysis. It returns
// (nil, nil) when no category requires action, and the existing plan
// when one was already generated for this analysis.
func (g *Generator) Generate(ctx context.Context, analysis *risk.Analysis, org *assessment.OrgContext, now time.Time) (*Plan, error) {
	if analysis == nil {
		return nil, apperrors.New(apperrors.ErrCodeActionPlanGenFailed, "analysis is required")
	}
	if !analysis.RequiresActionPlan() {
		return nil, nil
	}

	if existing, err := g.repo.GetByAnalysis(ctx, analysis.ID); err == nil && existing != nil {
		g.logger.Debug("action plan already exists for analysis",
			logging.String("analysis_id", analysis.ID.String()),
			logging.String("plan_id", existing.ID.String()))
		return existing, nil
	} else if err != nil && !apperrors.IsNotFound(err) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeActionPlanGenFailed, "check existing plan")
	}

	plan := g.build(analysis, org, now)
	if err := g.repo.Save(ctx, plan); err != nil {
		// A concurrent worker may have won the race; serve its plan.
		if apperrors.IsCode(err, apperrors.ErrCodeActionPlanAlreadyExists) {
			return g.repo.GetByAnalysis(ctx, analysis.ID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeActionPlanGenFailed, "persist plan")
	}
	return plan, nil
}

func (g *Generator) build(analysis *risk.Analysis, org *assessment.OrgContext, now time.Time) *Plan {
	acting := analysis.CategoriesRequiringAction()

	priority := scoring.ExposureAlto
	var items []Item
	for _, cat := range acting {
		if cat.Level.Severity() > priority.Severity() {
			priority = cat.Level
		}
		// Items come due when the category is re-evaluated, so the
		// follow-up assessment can verify the measures took effect.
		due := now.Add(risk.NextEvaluationOffset(cat.Level))
		for _, m := range cat.MandatoryMeasures {
			items = append(items, Item{
				ID: uuid.New(), CategoryID: cat.CategoryID,
				Description: m, Level: cat.Level, Mandatory: true, DueAt: due,
			})
		}
		for _, m := range cat.RecommendedActions {
			items = append(items, Item{
				ID: uuid.New(), CategoryID: cat.CategoryID,
				Description: m, Level: cat.Level, Mandatory: false, DueAt: due,
			})
		}
	}

	plan := &Plan{
		ID:         uuid.New(),
		AnalysisID: analysis.ID,
		ResponseID: analysis.ResponseID,
		CompanyID:  analysis.CompanyID,
		SectorID:   analysis.SectorID,
		Priority:   priority,
		Status:     StatusOpen,
		Items:      items,
		CreatedAt:  now,
	}
	if org != nil {
		plan.SectorName = org.SectorName
		plan.Title = fmt.Sprintf("Plano de ação psicossocial - %s", org.SectorName)
	} else {
		plan.Title = "Plano de ação psicossocial"
	}
	return plan
}
