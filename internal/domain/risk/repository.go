package risk

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists risk analyses.
type Repository interface {
	// Save stores a new analysis.
	Save(ctx context.Context, analysis *Analysis) error

	// GetByResponse loads the analysis for a response, if any. Returns
	// an error with code RSK_002 when none exists.
	GetByResponse(ctx context.Context, responseID uuid.UUID) (*Analysis, error)

	// Get loads an analysis by ID.
	Get(ctx context.Context, id uuid.UUID) (*Analysis, error)
}
