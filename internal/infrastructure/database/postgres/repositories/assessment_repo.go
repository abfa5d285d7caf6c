package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// AssessmentRepository is the PostgreSQL read model for questionnaire
// responses and organisational context. The intake consumer fills it
// from assessment.completed events; the pipeline only reads.
type AssessmentRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(pool *pgxpool.Pool, logger logging.Logger) *AssessmentRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AssessmentRepository{pool: pool, logger: logger.Named("assessment_repo")}
}

// GetResponse loads a response with its answers.
func (r *AssessmentRepository) GetResponse(ctx context.Context, id uuid.UUID) (*assessment.Response, error) {
	const query = `
		SELECT id, company_id, employee_id, evaluation_id, status, answers, completed_at, created_at
		FROM assessment_responses
		WHERE id = $1`

	var (
		resp       assessment.Response
		answersRaw []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&resp.ID, &resp.CompanyID, &resp.EmployeeID, &resp.EvaluationID,
		&resp.Status, &answersRaw, &resp.CompletedAt, &resp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeResponseNotFound, "response %s not found", id)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load response")
	}
	if err := json.Unmarshal(answersRaw, &resp.Answers); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "corrupt answers payload")
	}
	return &resp, nil
}

// GetOrgContext resolves the employee's placement within the company.
func (r *AssessmentRepository) GetOrgContext(ctx context.Context, companyID, employeeID uuid.UUID) (*assessment.OrgContext, error) {
	const query = `
		SELECT company_id, employee_id, sector_id, sector_name, role_name, manager_id
		FROM org_contexts
		WHERE company_id = $1 AND employee_id = $2`

	var org assessment.OrgContext
	err := r.pool.QueryRow(ctx, query, companyID, employeeID).Scan(
		&org.CompanyID, &org.EmployeeID, &org.SectorID,
		&org.SectorName, &org.RoleName, &org.ManagerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeNotFound,
				"no org context for employee %s in company %s", employeeID, companyID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load org context")
	}
	return &org, nil
}

// SaveResponse upserts an incoming response into the read model. Called
// by the intake consumer, never by the pipeline.
func (r *AssessmentRepository) SaveResponse(ctx context.Context, resp *assessment.Response) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode answers")
	}

	const query = `
		INSERT INTO assessment_responses
			(id, company_id, employee_id, evaluation_id, status, answers, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			answers = EXCLUDED.answers,
			completed_at = EXCLUDED.completed_at`

	_, err = r.pool.Exec(ctx, query,
		resp.ID, resp.CompanyID, resp.EmployeeID, resp.EvaluationID,
		resp.Status, answers, resp.CompletedAt, resp.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save response")
	}
	return nil
}

// SaveOrgContext upserts an employee's organisational placement.
func (r *AssessmentRepository) SaveOrgContext(ctx context.Context, org *assessment.OrgContext) error {
	const query = `
		INSERT INTO org_contexts
			(company_id, employee_id, sector_id, sector_name, role_name, manager_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, employee_id) DO UPDATE SET
			sector_id = EXCLUDED.sector_id,
			sector_name = EXCLUDED.sector_name,
			role_name = EXCLUDED.role_name,
			manager_id = EXCLUDED.manager_id`

	_, err := r.pool.Exec(ctx, query,
		org.CompanyID, org.EmployeeID, org.SectorID,
		org.SectorName, org.RoleName, org.ManagerID,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save org context")
	}
	return nil
}
