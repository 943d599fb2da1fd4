// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Dispatch cycle
	ErrCodeSelectionFailed ErrorCode = "SELECTION_FAILED"
	ErrCodeClaimFailed     ErrorCode = "CLAIM_FAILED"
	ErrCodeEnqueueFailed   ErrorCode = "ENQUEUE_FAILED"
	ErrCodeWorkflowEngine  ErrorCode = "WORKFLOW_ENGINE_ERROR"

	// Order submission (per application)
	ErrCodeTransportFault      ErrorCode = "TRANSPORT_FAULT"
	ErrCodeThrottled           ErrorCode = "B2B_THROTTLED"
	ErrCodeExternalRejection   ErrorCode = "EXTERNAL_REJECTION"
	ErrCodeMalformedResponse   ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeUpdateFailed        ErrorCode = "UPDATE_FAILED"
	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeLoadFailed          ErrorCode = "APPLICATION_LOAD_FAILED"

	// Domain / input
	ErrCodeInvalidPlanType             ErrorCode = "INVALID_PLAN_TYPE"
	ErrCodeInvalidStatusTransition     ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeDatabaseInsertFailed        ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeNotificationPublishFailed   ErrorCode = "NOTIFICATION_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	// Recorded is set once the failure is already reflected in the
	// application's stored status.
	Recorded bool  `json:"recorded,omitempty"`
	Err      error `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// MarkRecorded flags the error as already persisted as order_failed.
func (e *StandardError) MarkRecorded() *StandardError {
	e.Recorded = true
	return e
}

// AsStandardError extracts a *StandardError from a wrapped chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, err error, retryable bool) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewSelectionFailedError is fatal to a dispatch cycle.
func NewSelectionFailedError(err error) *StandardError {
	return newError(ErrCodeSelectionFailed, "Eligibility query failed", err, true)
}

func NewClaimFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeClaimFailed, "Dispatch claim could not be taken", err, true).
		WithMetadata("applicationId", applicationID)
}

func NewEnqueueFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeEnqueueFailed, "Order submission task could not be enqueued", err, true).
		WithMetadata("applicationId", applicationID)
}

// NewWorkflowEngineError wraps a failed Zeebe command.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	return newError(ErrCodeWorkflowEngine, fmt.Sprintf("Zeebe operation '%s' failed", operation), err, retryable)
}

// NewTransportFaultError covers network errors and timeouts calling the B2B endpoint.
func NewTransportFaultError(err error) *StandardError {
	return newError(ErrCodeTransportFault, "B2B endpoint unreachable", err, true)
}

// NewThrottledError means the order was never sent: the rate limiter could
// not hand out a slot before the deadline.
func NewThrottledError(err error) *StandardError {
	return newError(ErrCodeThrottled, "B2B request throttled before sending", err, true)
}

// NewExternalRejectionError records a non-2xx answer from the B2B endpoint.
func NewExternalRejectionError(statusCode int, body string) *StandardError {
	e := newError(ErrCodeExternalRejection, fmt.Sprintf("B2B endpoint rejected order (status %d)", statusCode), nil, false)
	e.Details = body
	return e.WithMetadata("statusCode", statusCode)
}

// NewMalformedResponseError records a 2xx answer without a usable order_id.
func NewMalformedResponseError(body string, err error) *StandardError {
	e := newError(ErrCodeMalformedResponse, "B2B endpoint returned an unusable order response", err, false)
	e.Metadata = map[string]interface{}{"response": body}
	return e
}

func NewUpdateFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeUpdateFailed, "Terminal status write failed", err, true).
		WithMetadata("applicationId", applicationID)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	e := newError(ErrCodeApplicationNotFound, "Application not found", nil, false)
	e.Details = fmt.Sprintf("applicationId: %s", applicationID)
	return e
}

func NewLoadFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeLoadFailed, "Application could not be loaded", err, true).
		WithMetadata("applicationId", applicationID)
}

func NewInvalidPlanTypeError(value string) *StandardError {
	e := newError(ErrCodeInvalidPlanType, "The selected plan type is invalid", nil, false)
	e.Details = fmt.Sprintf("plan_type: %s", value)
	return e
}

func NewInvalidStatusTransitionError(err error) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Status transition not allowed", err, false)
}

func NewApplicationValidationFailedError(details string) *StandardError {
	e := newError(ErrCodeApplicationValidationFailed, "Application data validation failed", nil, false)
	e.Details = details
	return e
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err, true)
}

func NewNotificationPublishFailedError(eventType string, err error) *StandardError {
	return newError(ErrCodeNotificationPublishFailed, fmt.Sprintf("Notification %s could not be published", eventType), err, true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended Zeebe retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSelectionFailed,
		ErrCodeClaimFailed,
		ErrCodeEnqueueFailed,
		ErrCodeThrottled,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationPublishFailed:
		return 3

	case ErrCodeTransportFault,
		ErrCodeUpdateFailed,
		ErrCodeLoadFailed,
		ErrCodeWorkflowEngine:
		return 2

	default:
		return 0
	}
}

// RetriesFor returns the retries to report for a concrete error. Failures that
// are already recorded as order_failed get none, so the job surfaces as an
// incident instead of resubmitting the order.
func RetriesFor(stdErr *StandardError) int {
	if stdErr == nil || !stdErr.Retryable || stdErr.Recorded {
		return 0
	}
	return GetRetryCount(stdErr.Code)
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stdErr.Recorded {
		vars["statusRecorded"] = true
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        RetriesFor(stdErr),
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsRetryable reports whether a queue may run the task again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	stdErr, ok := AsStandardError(err)
	if !ok {
		return false
	}
	return RetriesFor(stdErr) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRANSPORT") || strings.Contains(codeStr, "THROTTLED") || strings.Contains(codeStr, "REJECTION") || strings.Contains(codeStr, "MALFORMED"):
		return "B2B"
	case strings.Contains(codeStr, "SELECTION") || strings.Contains(codeStr, "UPDATE") || strings.Contains(codeStr, "LOAD") || strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "CLAIM") || strings.Contains(codeStr, "ENQUEUE") || strings.Contains(codeStr, "WORKFLOW"):
		return "DISPATCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
