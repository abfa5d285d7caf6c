package automation

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Outcome of one pipeline stage execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// LogEntry records one stage execution for audit. The log is append
// only.
type LogEntry struct {
	ID         uuid.UUID           `json:"id"`
	WorkItemID uuid.UUID           `json:"work_item_id"`
	ResponseID uuid.UUID           `json:"response_id"`
	CompanyID  uuid.UUID           `json:"company_id"`
	Stage      State               `json:"stage"`
	Outcome    Outcome             `json:"outcome"`
	Detail     string              `json:"detail,omitempty"`
	ErrorCode  apperrors.ErrorCode `json:"error_code,omitempty"`
	Duration   time.Duration       `json:"duration"`
	CreatedAt  time.Time           `json:"created_at"`
}

// NewLogEntry builds an audit entry for a stage execution.
func NewLogEntry(item *WorkItem, stage State, outcome Outcome, detail string, duration time.Duration, now time.Time) *LogEntry {
	e := &LogEntry{
		ID:        uuid.New(),
		Stage:     stage,
		Outcome:   outcome,
		Detail:    detail,
		Duration:  duration,
		CreatedAt: now,
	}
	if item != nil {
		e.WorkItemID = item.ID
		e.ResponseID = item.ResponseID
		e.CompanyID = item.CompanyID
	}
	return e
}

// Stats summarises pipeline throughput for a company: queue composition
// by state, terminal outcomes, what the analyses found and what the
// pipeline produced from them.
type Stats struct {
	CompanyID            uuid.UUID     `json:"company_id"`
	Pending              int           `json:"pending"`
	Processing           int           `json:"processing"`
	Done                 int           `json:"done"`
	Failed               int           `json:"failed"`
	TotalProcessed       int           `json:"total_processed"`
	SuccessfulProcessed  int           `json:"successful_processed"`
	FailedProcessed      int           `json:"failed_processed"`
	HighRiskFound        int           `json:"high_risk_found"`
	CriticalRiskFound    int           `json:"critical_risk_found"`
	ActionPlansGenerated int           `json:"action_plans_generated"`
	NotificationsSent    int           `json:"notifications_sent"`
	StageFailures        map[State]int `json:"stage_failures,omitempty"`
	AvgStageLatency      time.Duration `json:"avg_stage_latency"`
	Since                time.Time     `json:"since"`
}
