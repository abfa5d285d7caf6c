// Package kafka connects the pipeline to the company message bus: an
// intake consumer for completed assessments and a producer for the
// events the pipeline emits.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic names shared with the HR platform.
const (
	TopicAssessmentCompleted = "assessment.completed"
	TopicAnalysisCreated     = "risk.analysis.created"
	TopicPipelineCompleted   = "automation.pipeline.completed"
	TopicPipelineFailed      = "automation.pipeline.failed"
)

// Envelope wraps every event with routing metadata. Messages are keyed
// by company so one company's events stay ordered within a partition.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	CompanyID  uuid.UUID       `json:"company_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// AssessmentCompletedPayload is the intake event published by the HR
// platform when an employee submits a questionnaire.
type AssessmentCompletedPayload struct {
	ResponseID   uuid.UUID       `json:"response_id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	EmployeeID   uuid.UUID       `json:"employee_id"`
	EvaluationID uuid.UUID       `json:"evaluation_id"`
	Status       string          `json:"status"`
	Answers      []AnswerPayload `json:"answers"`
	Org          *OrgPayload     `json:"org,omitempty"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// AnswerPayload is one answered question in the intake event.
type AnswerPayload struct {
	QuestionID uuid.UUID `json:"question_id"`
	CategoryID string    `json:"category_id"`
	Value      int       `json:"value"`
	Reverse    bool      `json:"reverse"`
}

// OrgPayload carries the employee's placement for the read model.
type OrgPayload struct {
	SectorID   uuid.UUID `json:"sector_id"`
	SectorName string    `json:"sector_name"`
	RoleName   string    `json:"role_name"`
	ManagerID  uuid.UUID `json:"manager_id"`
}

// AnalysisCreatedPayload announces a finished risk analysis.
type AnalysisCreatedPayload struct {
	AnalysisID   uuid.UUID `json:"analysis_id"`
	ResponseID   uuid.UUID `json:"response_id"`
	CompanyID    uuid.UUID `json:"company_id"`
	SectorID     uuid.UUID `json:"sector_id"`
	OverallScore float64   `json:"overall_score"`
	OverallLevel string    `json:"overall_level"`
	WorstLevel   string    `json:"worst_level"`
}

// PipelineCompletedPayload announces a work item reaching Done.
type PipelineCompletedPayload struct {
	WorkItemID uuid.UUID `json:"work_item_id"`
	ResponseID uuid.UUID `json:"response_id"`
	CompanyID  uuid.UUID `json:"company_id"`
	WorstLevel string    `json:"worst_level"`
	Attempts   int       `json:"attempts"`
}

// PipelineFailedPayload announces a work item exhausting its retries.
type PipelineFailedPayload struct {
	WorkItemID uuid.UUID `json:"work_item_id"`
	ResponseID uuid.UUID `json:"response_id"`
	CompanyID  uuid.UUID `json:"company_id"`
	Attempts   int       `json:"attempts"`
	Cause      string    `json:"cause"`
}
