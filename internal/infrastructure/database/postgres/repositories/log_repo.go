package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// LogRepository is the append-only processing audit log. Durations are
// stored as milliseconds so the table stays readable from plain SQL.
type LogRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewLogRepository constructs the repository.
func NewLogRepository(pool *pgxpool.Pool, logger logging.Logger) *LogRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LogRepository{pool: pool, logger: logger.Named("log_repo")}
}

// Append stores one stage execution record.
func (r *LogRepository) Append(ctx context.Context, entry *automation.LogEntry) error {
	const query = `
		INSERT INTO processing_log
			(id, work_item_id, response_id, company_id, stage, outcome,
			 detail, error_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.WorkItemID, entry.ResponseID, entry.CompanyID, entry.Stage, entry.Outcome,
		entry.Detail, string(entry.ErrorCode), entry.Duration.Milliseconds(), entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to append log entry")
	}
	return nil
}

// ListByResponse returns the audit trail for a response in execution
// order.
func (r *LogRepository) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*automation.LogEntry, error) {
	const query = `
		SELECT id, work_item_id, response_id, company_id, stage, outcome,
		       detail, error_code, duration_ms, created_at
		FROM processing_log
		WHERE response_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, responseID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list log entries")
	}
	defer rows.Close()

	var out []*automation.LogEntry
	for rows.Next() {
		var (
			e          automation.LogEntry
			errorCode  string
			durationMs int64
		)
		if err := rows.Scan(
			&e.ID, &e.WorkItemID, &e.ResponseID, &e.CompanyID, &e.Stage, &e.Outcome,
			&e.Detail, &errorCode, &durationMs, &e.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan log entry")
		}
		e.ErrorCode = apperrors.ErrorCode(errorCode)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate log entries")
	}
	return out, nil
}

// Stats aggregates outcomes for a company since the given instant. The
// zero UUID aggregates all companies.
func (r *LogRepository) Stats(ctx context.Context, companyID uuid.UUID, since time.Time) (*automation.Stats, error) {
	stats := &automation.Stats{
		CompanyID:     companyID,
		Since:         since,
		StageFailures: make(map[automation.State]int),
	}

	query := `
		SELECT stage, COUNT(*)
		FROM processing_log
		WHERE outcome = $1 AND created_at >= $2`
	args := []interface{}{automation.OutcomeFailure, since}
	if companyID != uuid.Nil {
		query += ` AND company_id = $3`
		args = append(args, companyID)
	}
	query += ` GROUP BY stage`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate failures")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			stage automation.State
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan failure count")
		}
		stats.StageFailures[stage] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate failure counts")
	}

	latencyQuery := `
		SELECT COALESCE(AVG(duration_ms), 0)
		FROM processing_log
		WHERE created_at >= $1`
	latencyArgs := []interface{}{since}
	if companyID != uuid.Nil {
		latencyQuery += ` AND company_id = $2`
		latencyArgs = append(latencyArgs, companyID)
	}

	var avgMs float64
	if err := r.pool.QueryRow(ctx, latencyQuery, latencyArgs...).Scan(&avgMs); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate latency")
	}
	stats.AvgStageLatency = time.Duration(avgMs * float64(time.Millisecond))

	if err := r.outcomeCounts(ctx, stats, companyID, since); err != nil {
		return nil, err
	}
	if err := r.pipelineCounts(ctx, stats, companyID, since); err != nil {
		return nil, err
	}

	return stats, nil
}

// outcomeCounts fills the terminal work-item counters.
func (r *LogRepository) outcomeCounts(ctx context.Context, stats *automation.Stats, companyID uuid.UUID, since time.Time) error {
	query := `
		SELECT state, COUNT(*)
		FROM work_items
		WHERE updated_at >= $1`
	args := []interface{}{since}
	if companyID != uuid.Nil {
		query += ` AND company_id = $2`
		args = append(args, companyID)
	}
	query += ` GROUP BY state`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate outcomes")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			state automation.State
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan outcome count")
		}
		switch state {
		case automation.StateDone:
			stats.SuccessfulProcessed += n
		case automation.StateFailed:
			stats.FailedProcessed += n
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate outcome counts")
	}
	stats.TotalProcessed = stats.SuccessfulProcessed + stats.FailedProcessed
	return nil
}

// pipelineCounts fills what the analyses found and what the pipeline
// produced from them.
func (r *LogRepository) pipelineCounts(ctx context.Context, stats *automation.Stats, companyID uuid.UUID, since time.Time) error {
	riskQuery := `
		SELECT COUNT(*) FILTER (WHERE worst_level = 'alto'),
		       COUNT(*) FILTER (WHERE worst_level = 'critico')
		FROM risk_analyses
		WHERE created_at >= $1`
	riskArgs := []interface{}{since}
	if companyID != uuid.Nil {
		riskQuery += ` AND company_id = $2`
		riskArgs = append(riskArgs, companyID)
	}
	if err := r.pool.QueryRow(ctx, riskQuery, riskArgs...).Scan(&stats.HighRiskFound, &stats.CriticalRiskFound); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate risk findings")
	}

	planQuery := `
		SELECT COUNT(*)
		FROM action_plans
		WHERE created_at >= $1`
	planArgs := []interface{}{since}
	if companyID != uuid.Nil {
		planQuery += ` AND company_id = $2`
		planArgs = append(planArgs, companyID)
	}
	if err := r.pool.QueryRow(ctx, planQuery, planArgs...).Scan(&stats.ActionPlansGenerated); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate action plans")
	}

	sentQuery := `
		SELECT COUNT(*)
		FROM notifications
		WHERE status = $1 AND created_at >= $2`
	sentArgs := []interface{}{notification.StatusSent, since}
	if companyID != uuid.Nil {
		sentQuery += ` AND company_id = $3`
		sentArgs = append(sentArgs, companyID)
	}
	if err := r.pool.QueryRow(ctx, sentQuery, sentArgs...).Scan(&stats.NotificationsSent); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate sent notifications")
	}
	return nil
}
