package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueRepository is the persistent work queue. Leasing must be atomic:
// two workers calling Lease concurrently never receive the same item.
type QueueRepository interface {
	// Enqueue adds a response to the queue. Enqueueing an already
	// queued response is a no-op returning the existing item.
	Enqueue(ctx context.Context, item *WorkItem) (*WorkItem, error)

	// Lease atomically claims the oldest due pending item for owner,
	// marking it Processing until the lease expires. Returns an error
	// with code QUE_002 when nothing is due.
	Lease(ctx context.Context, owner string, leaseTTL time.Duration, now time.Time) (*WorkItem, error)

	// ExtendLease pushes the lease expiry forward. Fails with QUE_003
	// when owner no longer holds the lease.
	ExtendLease(ctx context.Context, itemID uuid.UUID, owner string, leaseTTL time.Duration, now time.Time) error

	// Update persists state changes made by the lease holder. Fails
	// with QUE_003 when owner no longer holds the lease, unless the
	// item is moving to a terminal or pending state, which releases it.
	Update(ctx context.Context, item *WorkItem, owner string) error

	// Get loads an item by response.
	GetByResponse(ctx context.Context, responseID uuid.UUID) (*WorkItem, error)

	// ReapExpired returns expired leases to Pending so crashed workers
	// do not strand items. Returns how many were reaped.
	ReapExpired(ctx context.Context, now time.Time) (int, error)

	// Counts returns queue depth per state for a company; the zero
	// UUID aggregates all companies.
	Counts(ctx context.Context, companyID uuid.UUID) (map[State]int, error)
}

// ConfigRepository stores per-company automation policies.
type ConfigRepository interface {
	// GetByCompany loads the policy. Returns an error with code
	// AUT_005 when the company has none.
	GetByCompany(ctx context.Context, companyID uuid.UUID) (*Config, error)

	// Save upserts the policy.
	Save(ctx context.Context, cfg *Config) error
}

// LogRepository is the append-only processing audit log.
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*LogEntry, error)

	// Stats aggregates outcomes for a company since the given instant.
	Stats(ctx context.Context, companyID uuid.UUID, since time.Time) (*Stats, error)
}
