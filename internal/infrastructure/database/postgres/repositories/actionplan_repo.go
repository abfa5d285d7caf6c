package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// ActionPlanRepository is the PostgreSQL implementation of
// actionplan.Repository. A plan and its items are written in one
// transaction so a plan is never visible half-built.
type ActionPlanRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewActionPlanRepository constructs the repository.
func NewActionPlanRepository(pool *pgxpool.Pool, logger logging.Logger) *ActionPlanRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ActionPlanRepository{pool: pool, logger: logger.Named("actionplan_repo")}
}

// Save stores a new plan with its items.
func (r *ActionPlanRepository) Save(ctx context.Context, plan *actionplan.Plan) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	const planQuery = `
		INSERT INTO action_plans
			(id, analysis_id, response_id, company_id, sector_id, sector_name,
			 title, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, planQuery,
		plan.ID, plan.AnalysisID, plan.ResponseID, plan.CompanyID, plan.SectorID,
		plan.SectorName, plan.Title, plan.Priority, plan.Status, plan.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Newf(apperrors.ErrCodeActionPlanAlreadyExists,
				"plan already exists for analysis %s", plan.AnalysisID)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save plan")
	}

	const itemQuery = `
		INSERT INTO action_plan_items
			(id, plan_id, category_id, description, level, mandatory, due_at, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, item := range plan.Items {
		if _, err := tx.Exec(ctx, itemQuery,
			item.ID, plan.ID, item.CategoryID, item.Description,
			item.Level, item.Mandatory, item.DueAt, i,
		); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save plan item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to commit plan")
	}
	return nil
}

// GetByAnalysis loads the plan generated for an analysis.
func (r *ActionPlanRepository) GetByAnalysis(ctx context.Context, analysisID uuid.UUID) (*actionplan.Plan, error) {
	const query = `
		SELECT id, analysis_id, response_id, company_id, sector_id, sector_name,
		       title, priority, status, created_at
		FROM action_plans
		WHERE analysis_id = $1`

	var plan actionplan.Plan
	err := r.pool.QueryRow(ctx, query, analysisID).Scan(
		&plan.ID, &plan.AnalysisID, &plan.ResponseID, &plan.CompanyID, &plan.SectorID,
		&plan.SectorName, &plan.Title, &plan.Priority, &plan.Status, &plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeActionPlanNotFound,
				"no plan for analysis %s", analysisID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load plan")
	}

	items, err := r.loadItems(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	plan.Items = items
	return &plan, nil
}

// ListBySector returns open plans for a sector, newest first.
func (r *ActionPlanRepository) ListBySector(ctx context.Context, companyID, sectorID uuid.UUID, limit int) ([]*actionplan.Plan, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, analysis_id, response_id, company_id, sector_id, sector_name,
		       title, priority, status, created_at
		FROM action_plans
		WHERE company_id = $1 AND sector_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, companyID, sectorID, actionplan.StatusOpen, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list plans")
	}
	defer rows.Close()

	var plans []*actionplan.Plan
	for rows.Next() {
		var plan actionplan.Plan
		if err := rows.Scan(
			&plan.ID, &plan.AnalysisID, &plan.ResponseID, &plan.CompanyID, &plan.SectorID,
			&plan.SectorName, &plan.Title, &plan.Priority, &plan.Status, &plan.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan plan")
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate plans")
	}

	for _, plan := range plans {
		items, err := r.loadItems(ctx, plan.ID)
		if err != nil {
			return nil, err
		}
		plan.Items = items
	}
	return plans, nil
}

func (r *ActionPlanRepository) loadItems(ctx context.Context, planID uuid.UUID) ([]actionplan.Item, error) {
	const query = `
		SELECT id, category_id, description, level, mandatory, due_at
		FROM action_plan_items
		WHERE plan_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load plan items")
	}
	defer rows.Close()

	var items []actionplan.Item
	for rows.Next() {
		var item actionplan.Item
		if err := rows.Scan(
			&item.ID, &item.CategoryID, &item.Description,
			&item.Level, &item.Mandatory, &item.DueAt,
		); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan plan item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate plan items")
	}
	return items, nil
}
