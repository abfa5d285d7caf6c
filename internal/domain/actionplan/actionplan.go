// Package actionplan generates intervention plans for risk analyses
// whose categories reached alto or critico exposure.
package actionplan

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

// Status of an action plan through its lifecycle. This service only
// creates plans; progression is driven by the HR product.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Item is a single measure within a plan.
type Item struct {
	ID          uuid.UUID             `json:"id"`
	CategoryID  string                `json:"category_id"`
	Description string                `json:"description"`
	Level       scoring.ExposureLevel `json:"level"`
	Mandatory   bool                  `json:"mandatory"`
	DueAt       time.Time             `json:"due_at"`
}

// Plan is an intervention plan for one analysis, scoped to the sector
// of the employee who answered.
type Plan struct {
	ID         uuid.UUID             `json:"id"`
	AnalysisID uuid.UUID             `json:"analysis_id"`
	ResponseID uuid.UUID             `json:"response_id"`
	CompanyID  uuid.UUID             `json:"company_id"`
	SectorID   uuid.UUID             `json:"sector_id"`
	SectorName string                `json:"sector_name"`
	Title      string                `json:"title"`
	Priority   scoring.ExposureLevel `json:"priority"`
	Status     Status                `json:"status"`
	Items      []Item                `json:"items"`
	CreatedAt  time.Time             `json:"created_at"`
}

// MandatoryItems returns the items that originate from mandatory
// measures.
func (p *Plan) MandatoryItems() []Item {
	var out []Item
	for _, it := range p.Items {
		if it.Mandatory {
			out = append(out, it)
		}
	}
	return out
}
