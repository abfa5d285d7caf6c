package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// RiskRepository is the PostgreSQL implementation of risk.Repository.
// Category breakdowns and metadata are stored as JSONB since they are
// read back whole and never queried field by field.
type RiskRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRiskRepository constructs the repository.
func NewRiskRepository(pool *pgxpool.Pool, logger logging.Logger) *RiskRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RiskRepository{pool: pool, logger: logger.Named("risk_repo")}
}

// Save stores a new analysis. A second analysis for the same response
// surfaces as a conflict so callers can recover the winner.
func (r *RiskRepository) Save(ctx context.Context, a *risk.Analysis) error {
	categories, err := json.Marshal(a.Categories)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode categories")
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode metadata")
	}

	const query = `
		INSERT INTO risk_analyses
			(id, response_id, company_id, employee_id, sector_id, categories,
			 overall_score, overall_level, worst_level, next_evaluation_at, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.ResponseID, a.CompanyID, a.EmployeeID, a.SectorID, categories,
		a.OverallScore, a.OverallLevel, a.WorstLevel, a.NextEvaluationAt, metadata, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Newf(apperrors.ErrCodeConflict,
				"analysis already exists for response %s", a.ResponseID)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save analysis")
	}
	return nil
}

// GetByResponse loads the analysis produced for a response.
func (r *RiskRepository) GetByResponse(ctx context.Context, responseID uuid.UUID) (*risk.Analysis, error) {
	return r.get(ctx, "response_id", responseID)
}

// Get loads an analysis by ID.
func (r *RiskRepository) Get(ctx context.Context, id uuid.UUID) (*risk.Analysis, error) {
	return r.get(ctx, "id", id)
}

func (r *RiskRepository) get(ctx context.Context, column string, key uuid.UUID) (*risk.Analysis, error) {
	query := `
		SELECT id, response_id, company_id, employee_id, sector_id, categories,
		       overall_score, overall_level, worst_level, next_evaluation_at, metadata, created_at
		FROM risk_analyses
		WHERE ` + column + ` = $1`

	var (
		a             risk.Analysis
		categoriesRaw []byte
		metadataRaw   []byte
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&a.ID, &a.ResponseID, &a.CompanyID, &a.EmployeeID, &a.SectorID, &categoriesRaw,
		&a.OverallScore, &a.OverallLevel, &a.WorstLevel, &a.NextEvaluationAt, &metadataRaw, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeRiskAnalysisNotFound,
				"no analysis where %s = %s", column, key)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load analysis")
	}
	if err := json.Unmarshal(categoriesRaw, &a.Categories); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "corrupt categories payload")
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &a.Metadata); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "corrupt metadata payload")
		}
	}
	return &a, nil
}
