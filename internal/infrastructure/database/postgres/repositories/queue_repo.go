package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

const workItemColumns = `id, response_id, company_id, state, attempts, max_attempts,
	lease_owner, lease_expires_at, next_attempt_at, last_error, enqueued_at, updated_at`

// QueueRepository is the PostgreSQL work queue. Leasing relies on a
// single conditional UPDATE over a SKIP LOCKED subquery, so two workers
// polling concurrently can never claim the same item.
type QueueRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewQueueRepository constructs the repository.
func NewQueueRepository(pool *pgxpool.Pool, logger logging.Logger) *QueueRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &QueueRepository{pool: pool, logger: logger.Named("queue_repo")}
}

// Enqueue adds a response to the queue. A response already queued is a
// no-op returning the existing item.
func (r *QueueRepository) Enqueue(ctx context.Context, item *automation.WorkItem) (*automation.WorkItem, error) {
	const query = `
		INSERT INTO work_items
			(` + workItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (response_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		item.ID, item.ResponseID, item.CompanyID, item.State, item.Attempts, item.MaxAttempts,
		item.LeaseOwner, nullableTime(item.LeaseExpiresAt), item.NextAttemptAt,
		item.LastError, item.EnqueuedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to enqueue work item")
	}
	if tag.RowsAffected() == 0 {
		return r.GetByResponse(ctx, item.ResponseID)
	}
	return item, nil
}

// Lease atomically claims the oldest due pending item for owner.
func (r *QueueRepository) Lease(ctx context.Context, owner string, leaseTTL time.Duration, now time.Time) (*automation.WorkItem, error) {
	const query = `
		UPDATE work_items
		SET state = $1, lease_owner = $2, lease_expires_at = $3, updated_at = $4
		WHERE id = (
			SELECT id FROM work_items
			WHERE state = $5 AND next_attempt_at <= $4
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + workItemColumns

	row := r.pool.QueryRow(ctx, query,
		automation.StateProcessing, owner, now.Add(leaseTTL), now, automation.StatePending,
	)
	item, err := scanWorkItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrCodeLeaseNotAcquired, "no work item due")
		}
		return nil, err
	}
	return item, nil
}

// ExtendLease pushes the lease expiry forward for the current holder.
func (r *QueueRepository) ExtendLease(ctx context.Context, itemID uuid.UUID, owner string, leaseTTL time.Duration, now time.Time) error {
	const query = `
		UPDATE work_items
		SET lease_expires_at = $3, updated_at = $4
		WHERE id = $1 AND lease_owner = $2 AND lease_expires_at > $4`

	tag, err := r.pool.Exec(ctx, query, itemID, owner, now.Add(leaseTTL), now)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to extend lease")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.ErrCodeLeaseNotHeld,
			"lease on %s not held by %s", itemID, owner)
	}
	return nil
}

// Update persists state changes made by the lease holder. Terminal and
// pending transitions release the item, so the owner guard is waived
// for them; the item may already have lost its lease to the reaper.
func (r *QueueRepository) Update(ctx context.Context, item *automation.WorkItem, owner string) error {
	releasing := item.State.Terminal() || item.State == automation.StatePending

	query := `
		UPDATE work_items
		SET state = $2, attempts = $3, lease_owner = $4, lease_expires_at = $5,
		    next_attempt_at = $6, last_error = $7, updated_at = $8
		WHERE id = $1`
	args := []interface{}{
		item.ID, item.State, item.Attempts, item.LeaseOwner,
		nullableTime(item.LeaseExpiresAt), item.NextAttemptAt, item.LastError, item.UpdatedAt,
	}
	if !releasing {
		query += ` AND lease_owner = $9`
		args = append(args, owner)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to update work item")
	}
	if tag.RowsAffected() == 0 {
		if releasing {
			return apperrors.Newf(apperrors.ErrCodeWorkItemNotFound, "work item %s not found", item.ID)
		}
		return apperrors.Newf(apperrors.ErrCodeLeaseNotHeld,
			"lease on %s not held by %s", item.ID, owner)
	}
	return nil
}

// GetByResponse loads an item by response.
func (r *QueueRepository) GetByResponse(ctx context.Context, responseID uuid.UUID) (*automation.WorkItem, error) {
	const query = `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE response_id = $1`

	item, err := scanWorkItem(r.pool.QueryRow(ctx, query, responseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeWorkItemNotFound,
				"no work item for response %s", responseID)
		}
		return nil, err
	}
	return item, nil
}

// ReapExpired returns expired leases to Pending.
func (r *QueueRepository) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `
		UPDATE work_items
		SET state = $1, lease_owner = '', lease_expires_at = NULL, updated_at = $2
		WHERE state = $3 AND lease_expires_at IS NOT NULL AND lease_expires_at <= $2`

	tag, err := r.pool.Exec(ctx, query, automation.StatePending, now, automation.StateProcessing)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to reap expired leases")
	}
	return int(tag.RowsAffected()), nil
}

// Counts returns queue depth per state; the zero UUID aggregates all
// companies.
func (r *QueueRepository) Counts(ctx context.Context, companyID uuid.UUID) (map[automation.State]int, error) {
	query := `SELECT state, COUNT(*) FROM work_items`
	args := []interface{}{}
	if companyID != uuid.Nil {
		query += ` WHERE company_id = $1`
		args = append(args, companyID)
	}
	query += ` GROUP BY state`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to count work items")
	}
	defer rows.Close()

	counts := make(map[automation.State]int)
	for rows.Next() {
		var (
			state automation.State
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan count")
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate counts")
	}
	return counts, nil
}

func scanWorkItem(row pgx.Row) (*automation.WorkItem, error) {
	var item automation.WorkItem
	err := row.Scan(
		&item.ID, &item.ResponseID, &item.CompanyID, &item.State, &item.Attempts, &item.MaxAttempts,
		&item.LeaseOwner, &item.LeaseExpiresAt, &item.NextAttemptAt,
		&item.LastError, &item.EnqueuedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan work item")
	}
	return &item, nil
}
