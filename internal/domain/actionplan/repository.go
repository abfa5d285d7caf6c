package actionplan

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists action plans.
type Repository interface {
	// Save stores a new plan. Returns an error with code PLN_002 when a
	// plan already exists for the same analysis.
	Save(ctx context.Context, plan *Plan) error

	// GetByAnalysis loads the plan generated for an analysis. Returns
	// an error with code PLN_001 when none exists.
	GetByAnalysis(ctx context.Context, analysisID uuid.UUID) (*Plan, error)

	// ListBySector returns open plans for a sector, newest first.
	ListBySector(ctx context.Context, companyID, sectorID uuid.UUID, limit int) ([]*Plan, error)
}
