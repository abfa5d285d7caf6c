package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_011"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_012"
)

// Scoring Engine Error Codes
const (
	ErrCodeScoringEmptyResponse   ErrorCode = "SCO_001"
	ErrCodeScoringUnknownCategory ErrorCode = "SCO_002"
	ErrCodeScoringInvalidAnswer   ErrorCode = "SCO_003"
	ErrCodeCatalogInvalid         ErrorCode = "SCO_004"
)

// Risk Analysis Error Codes
const (
	ErrCodeRiskBuildFailed         ErrorCode = "RSK_001"
	ErrCodeRiskAnalysisNotFound    ErrorCode = "RSK_002"
	ErrCodeRiskAllCategoriesFailed ErrorCode = "RSK_003"
	ErrCodeEnrichmentFailed        ErrorCode = "RSK_004"
)

// Action Plan Error Codes
const (
	ErrCodeActionPlanNotFound      ErrorCode = "PLN_001"
	ErrCodeActionPlanAlreadyExists ErrorCode = "PLN_002"
	ErrCodeActionPlanGenFailed     ErrorCode = "PLN_003"
)

// Notification / Escalation Error Codes
const (
	ErrCodeNotificationNotFound   ErrorCode = "NTF_001"
	ErrCodeNotificationDuplicate  ErrorCode = "NTF_002"
	ErrCodeDeliveryFailed         ErrorCode = "NTF_003"
	ErrCodeEscalationTierExceeded ErrorCode = "NTF_004"
	ErrCodeTemplateUnknown        ErrorCode = "NTF_005"
)

// Automation / Orchestrator Error Codes
const (
	ErrCodeResponseNotFound   ErrorCode = "AUT_001"
	ErrCodeResponseIncomplete ErrorCode = "AUT_002"
	ErrCodeAutomationDisabled ErrorCode = "AUT_003"
	ErrCodeInvalidTransition  ErrorCode = "AUT_004"
	ErrCodeConfigMissing      ErrorCode = "AUT_005"
)

// Queue / Processor Error Codes
const (
	ErrCodeWorkItemNotFound ErrorCode = "QUE_001"
	ErrCodeLeaseNotAcquired ErrorCode = "QUE_002"
	ErrCodeLeaseNotHeld     ErrorCode = "QUE_003"
	ErrCodeRetriesExhausted ErrorCode = "QUE_004"
	ErrCodeProcessorStopped ErrorCode = "QUE_005"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeScoringEmptyResponse:   http.StatusUnprocessableEntity,
	ErrCodeScoringUnknownCategory: http.StatusUnprocessableEntity,
	ErrCodeScoringInvalidAnswer:   http.StatusUnprocessableEntity,
	ErrCodeCatalogInvalid:         http.StatusInternalServerError,

	ErrCodeRiskBuildFailed:         http.StatusInternalServerError,
	ErrCodeRiskAnalysisNotFound:    http.StatusNotFound,
	ErrCodeRiskAllCategoriesFailed: http.StatusInternalServerError,
	ErrCodeEnrichmentFailed:        http.StatusInternalServerError,

	ErrCodeActionPlanNotFound:      http.StatusNotFound,
	ErrCodeActionPlanAlreadyExists: http.StatusConflict,
	ErrCodeActionPlanGenFailed:     http.StatusInternalServerError,

	ErrCodeNotificationNotFound:   http.StatusNotFound,
	ErrCodeNotificationDuplicate:  http.StatusConflict,
	ErrCodeDeliveryFailed:         http.StatusBadGateway,
	ErrCodeEscalationTierExceeded: http.StatusConflict,
	ErrCodeTemplateUnknown:        http.StatusInternalServerError,

	ErrCodeResponseNotFound:   http.StatusNotFound,
	ErrCodeResponseIncomplete: http.StatusUnprocessableEntity,
	ErrCodeAutomationDisabled: http.StatusForbidden,
	ErrCodeInvalidTransition:  http.StatusConflict,
	ErrCodeConfigMissing:      http.StatusNotFound,

	ErrCodeWorkItemNotFound: http.StatusNotFound,
	ErrCodeLeaseNotAcquired: http.StatusConflict,
	ErrCodeLeaseNotHeld:     http.StatusConflict,
	ErrCodeRetriesExhausted: http.StatusInternalServerError,
	ErrCodeProcessorStopped: http.StatusServiceUnavailable,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeServiceUnavailable: "service unavailable",

	ErrCodeScoringEmptyResponse:   "assessment response has no scorable answers",
	ErrCodeScoringUnknownCategory: "answer references an unknown category",
	ErrCodeScoringInvalidAnswer:   "answer value outside the category scale",
	ErrCodeCatalogInvalid:         "category catalog is invalid",

	ErrCodeRiskBuildFailed:         "risk analysis build failed",
	ErrCodeRiskAnalysisNotFound:    "risk analysis not found",
	ErrCodeRiskAllCategoriesFailed: "all category analyses failed to persist",
	ErrCodeEnrichmentFailed:        "risk enrichment failed",

	ErrCodeActionPlanNotFound:      "action plan not found",
	ErrCodeActionPlanAlreadyExists: "open action plan already exists for sector",
	ErrCodeActionPlanGenFailed:     "action plan generation failed",

	ErrCodeNotificationNotFound:   "notification not found",
	ErrCodeNotificationDuplicate:  "notification already created for entity and type",
	ErrCodeDeliveryFailed:         "notification delivery failed",
	ErrCodeEscalationTierExceeded: "escalation already at highest tier",
	ErrCodeTemplateUnknown:        "unknown notification template",

	ErrCodeResponseNotFound:   "assessment response not found",
	ErrCodeResponseIncomplete: "assessment response is not completed",
	ErrCodeAutomationDisabled: "automatic processing disabled for company",
	ErrCodeInvalidTransition:  "invalid processing state transition",
	ErrCodeConfigMissing:      "automation config not found for company",

	ErrCodeWorkItemNotFound: "work item not found",
	ErrCodeLeaseNotAcquired: "failed to acquire work item lease",
	ErrCodeLeaseNotHeld:     "lease not held by this worker",
	ErrCodeRetriesExhausted: "work item retries exhausted",
	ErrCodeProcessorStopped: "queue processor is stopped",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

// RetryableCodes enumerates transient failures where a retry can succeed.
// Input and validation errors are deliberately absent: reprocessing the same
// malformed response will never help.
var retryableCodes = map[ErrorCode]struct{}{
	ErrCodeDatabaseError:      {},
	ErrCodeCacheError:         {},
	ErrCodeExternalService:    {},
	ErrCodeTimeout:            {},
	ErrCodeServiceUnavailable: {},
	ErrCodeDeliveryFailed:     {},
}

// IsRetryable reports whether an ErrorCode identifies a transient
// infrastructure failure that the queue may retry.
func IsRetryable(code ErrorCode) bool {
	_, ok := retryableCodes[code]
	return ok
}
