// Package assessment holds the questionnaire response model that feeds
// the risk pipeline. Responses are produced upstream by the survey
// product; this service only reads them.
package assessment

import (
	"time"

	"github.com/google/uuid"
)

// Status of a questionnaire response as reported by the survey product.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
)

// Answer is a single answered question within a response.
type Answer struct {
	QuestionID uuid.UUID `json:"question_id"`
	CategoryID string    `json:"category_id"`
	Value      int       `json:"value"`
	Reverse    bool      `json:"reverse"`
}

// Response is a completed psychosocial questionnaire for one employee.
type Response struct {
	ID           uuid.UUID `json:"id"`
	CompanyID    uuid.UUID `json:"company_id"`
	EmployeeID   uuid.UUID `json:"employee_id"`
	EvaluationID uuid.UUID `json:"evaluation_id"`
	Status       Status    `json:"status"`
	Answers      []Answer  `json:"answers"`
	CompletedAt  time.Time `json:"completed_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsComplete reports whether the response can be scored.
func (r *Response) IsComplete() bool {
	return r.Status == StatusCompleted && len(r.Answers) > 0
}

// AnswersByCategory groups answers by their category, preserving the
// order in which categories first appear.
func (r *Response) AnswersByCategory() map[string][]Answer {
	grouped := make(map[string][]Answer)
	for _, a := range r.Answers {
		grouped[a.CategoryID] = append(grouped[a.CategoryID], a)
	}
	return grouped
}

// OrgContext carries the organisational placement of the employee who
// answered, used for sector grouping and notification targeting.
type OrgContext struct {
	CompanyID  uuid.UUID `json:"company_id"`
	EmployeeID uuid.UUID `json:"employee_id"`
	SectorID   uuid.UUID `json:"sector_id"`
	SectorName string    `json:"sector_name"`
	RoleName   string    `json:"role_name"`
	ManagerID  uuid.UUID `json:"manager_id"`
}
