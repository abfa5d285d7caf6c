package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// NotificationRepository is the PostgreSQL implementation of
// notification.Repository. The dedupe key carries a unique index so
// idempotency is enforced by the database, not by the application.
type NotificationRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(pool *pgxpool.Pool, logger logging.Logger) *NotificationRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &NotificationRepository{pool: pool, logger: logger.Named("notification_repo")}
}

// Save stores a notification.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	const query = `
		INSERT INTO notifications
			(id, company_id, analysis_id, recipient_id, recipient_role, type, channel,
			 subject, body, dedupe_key, status, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		n.ID, n.CompanyID, n.AnalysisID, n.RecipientID, n.RecipientRole, n.Type, n.Channel,
		n.Subject, n.Body, n.DedupeKey, n.Status, nullableTime(n.SentAt), n.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Newf(apperrors.ErrCodeNotificationDuplicate,
				"notification %s already exists", n.DedupeKey)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save notification")
	}
	return nil
}

// UpdateStatus records the delivery outcome.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status notification.Status, sentAt *time.Time) error {
	const query = `UPDATE notifications SET status = $2, sent_at = $3 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status, nullableTime(sentAt))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to update notification status")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.ErrCodeNotificationNotFound, "notification %s not found", id)
	}
	return nil
}

// ListByAnalysis returns notifications raised for an analysis.
func (r *NotificationRepository) ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*notification.Notification, error) {
	const query = `
		SELECT id, company_id, analysis_id, recipient_id, recipient_role, type, channel,
		       subject, body, dedupe_key, status, sent_at, created_at
		FROM notifications
		WHERE analysis_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, analysisID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list notifications")
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(
			&n.ID, &n.CompanyID, &n.AnalysisID, &n.RecipientID, &n.RecipientRole, &n.Type, &n.Channel,
			&n.Subject, &n.Body, &n.DedupeKey, &n.Status, &n.SentAt, &n.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan notification")
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate notifications")
	}
	return out, nil
}

// SaveEscalation stores a new escalation state. One ladder per analysis
// is enforced by a unique index on analysis_id.
func (r *NotificationRepository) SaveEscalation(ctx context.Context, s *notification.EscalationState) error {
	const query = `
		INSERT INTO escalation_states
			(id, company_id, analysis_id, tier, acknowledged, next_check_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.CompanyID, s.AnalysisID, s.Tier, s.Acknowledged,
		s.NextCheckAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Newf(apperrors.ErrCodeConflict,
				"escalation already open for analysis %s", s.AnalysisID)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save escalation")
	}
	return nil
}

// UpdateEscalation persists tier or acknowledgement changes.
func (r *NotificationRepository) UpdateEscalation(ctx context.Context, s *notification.EscalationState) error {
	const query = `
		UPDATE escalation_states
		SET tier = $2, acknowledged = $3, next_check_at = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, s.ID, s.Tier, s.Acknowledged, s.NextCheckAt, s.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to update escalation")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "escalation %s not found", s.ID)
	}
	return nil
}

// DueEscalations returns unacknowledged ladders whose deadline passed.
// NextCheckAt goes to zero once the final tier has alerted, so the
// infinity guard keeps topped-out ladders out of the sweep.
func (r *NotificationRepository) DueEscalations(ctx context.Context, now time.Time, limit int) ([]*notification.EscalationState, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, company_id, analysis_id, tier, acknowledged, next_check_at, created_at, updated_at
		FROM escalation_states
		WHERE acknowledged = FALSE
		  AND next_check_at > 'epoch'::timestamptz
		  AND next_check_at <= $1
		ORDER BY next_check_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list due escalations")
	}
	defer rows.Close()

	var out []*notification.EscalationState
	for rows.Next() {
		s, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate escalations")
	}
	return out, nil
}

// GetEscalationByAnalysis loads the ladder for an analysis.
func (r *NotificationRepository) GetEscalationByAnalysis(ctx context.Context, analysisID uuid.UUID) (*notification.EscalationState, error) {
	const query = `
		SELECT id, company_id, analysis_id, tier, acknowledged, next_check_at, created_at, updated_at
		FROM escalation_states
		WHERE analysis_id = $1`

	row := r.pool.QueryRow(ctx, query, analysisID)
	s, err := scanEscalation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeNotFound,
				"no escalation for analysis %s", analysisID)
		}
		return nil, err
	}
	return s, nil
}

func scanEscalation(row pgx.Row) (*notification.EscalationState, error) {
	var s notification.EscalationState
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.AnalysisID, &s.Tier, &s.Acknowledged,
		&s.NextCheckAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan escalation")
	}
	return &s, nil
}
