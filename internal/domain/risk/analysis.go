// Package risk turns scoring results into persisted risk analyses with
// recommended and mandatory measures per NR-01.
package risk

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

// CategoryRisk is a scored category enriched with measures.
type CategoryRisk struct {
	CategoryID         string                `json:"category_id"`
	CategoryName       string                `json:"category_name"`
	Score              float64               `json:"score"`
	Level              scoring.ExposureLevel `json:"level"`
	RecommendedActions []string              `json:"recommended_actions"`
	MandatoryMeasures  []string              `json:"mandatory_measures,omitempty"`
}

// Analysis is the risk assessment produced for one questionnaire
// response. It is the input to action plan generation and notification.
type Analysis struct {
	ID               uuid.UUID             `json:"id"`
	ResponseID       uuid.UUID             `json:"response_id"`
	CompanyID        uuid.UUID             `json:"company_id"`
	EmployeeID       uuid.UUID             `json:"employee_id"`
	SectorID         uuid.UUID             `json:"sector_id"`
	Categories       []CategoryRisk        `json:"categories"`
	OverallScore     float64               `json:"overall_score"`
	OverallLevel     scoring.ExposureLevel `json:"overall_level"`
	WorstLevel       scoring.ExposureLevel `json:"worst_level"`
	NextEvaluationAt time.Time             `json:"next_evaluation_at"`
	Metadata         map[string]string     `json:"metadata,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// RequiresActionPlan reports whether any category demands intervention.
func (a *Analysis) RequiresActionPlan() bool {
	for _, c := range a.Categories {
		if c.Level.RequiresAction() {
			return true
		}
	}
	return false
}

// CategoriesRequiringAction returns the categories at alto or critico.
func (a *Analysis) CategoriesRequiringAction() []CategoryRisk {
	var out []CategoryRisk
	for _, c := range a.Categories {
		if c.Level.RequiresAction() {
			out = append(out, c)
		}
	}
	return out
}

// HasCritical reports whether any category reached critico.
func (a *Analysis) HasCritical() bool {
	return a.WorstLevel == scoring.ExposureCritico
}

// MandatoryMeasures aggregates mandatory measures across categories,
// deduplicated, preserving category order. Non-empty exactly when some
// category is alto or critico.
func (a *Analysis) MandatoryMeasures() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range a.Categories {
		for _, m := range c.MandatoryMeasures {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// NextEvaluationOffset returns how long after the analysis the next
// evaluation is due, driven by the worst category level.
func NextEvaluationOffset(worst scoring.ExposureLevel) time.Duration {
	const day = 24 * time.Hour
	switch worst {
	case scoring.ExposureCritico:
		return 30 * day
	case scoring.ExposureAlto:
		return 90 * day
	case scoring.ExposureMedio:
		return 180 * day
	default:
		return 365 * day
	}
}
