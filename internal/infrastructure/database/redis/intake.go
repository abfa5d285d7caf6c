package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// intakeGuardTTL keeps a seen-marker long enough to cover every
// plausible event redelivery window.
const intakeGuardTTL = 24 * time.Hour

// IntakeGuard is a SETNX-based idempotency check for intake. The
// queue's unique constraint on response_id stays authoritative; the
// guard just keeps redelivered events from hitting the database.
type IntakeGuard struct {
	client *Client
	logger logging.Logger
}

// NewIntakeGuard builds an IntakeGuard on the shared client.
func NewIntakeGuard(client *Client, logger logging.Logger) *IntakeGuard {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &IntakeGuard{client: client, logger: logger.Named("intake_guard")}
}

// Acquire marks the response as seen. It returns false when the marker
// already existed, meaning another intake path got there first.
func (g *IntakeGuard) Acquire(ctx context.Context, responseID uuid.UUID) (bool, error) {
	key := g.client.Key("intake", responseID.String())
	fresh, err := g.client.Raw().SetNX(ctx, key, 1, intakeGuardTTL).Result()
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "intake marker not set")
	}
	return fresh, nil
}
