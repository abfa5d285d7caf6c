package assessment

import (
	"context"

	"github.com/google/uuid"
)

// Repository provides read access to questionnaire responses and the
// organisational context of their authors.
type Repository interface {
	// GetResponse loads a response with its answers. Returns an error
	// with code AUT_001 when no response exists.
	GetResponse(ctx context.Context, id uuid.UUID) (*Response, error)

	// GetOrgContext resolves sector and role placement for an employee
	// of a company.
	GetOrgContext(ctx context.Context, companyID, employeeID uuid.UUID) (*OrgContext, error)
}
