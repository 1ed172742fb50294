// Package errors provides the standardized error taxonomy of the onboarding pipeline
// and its conversion to BPMN errors for workflow-mode workers.
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

// Wizard and step errors
const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnknownStep          ErrorCode = "UNKNOWN_STEP"
	ErrCodeStepNotReachable     ErrorCode = "STEP_NOT_REACHABLE"
	ErrCodeWizardClosed         ErrorCode = "WIZARD_CLOSED"
	ErrCodeTransitionInProgress ErrorCode = "TRANSITION_IN_PROGRESS"
	ErrCodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidStatus        ErrorCode = "INVALID_STATUS_TRANSITION"
)

// Persistence errors
const (
	ErrCodeDraftSaveFailed          ErrorCode = "DRAFT_SAVE_FAILED"
	ErrCodeSubmissionWriteFailed    ErrorCode = "SUBMISSION_WRITE_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeStorageUploadFailed      ErrorCode = "STORAGE_UPLOAD_FAILED"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
)

// Side-effect errors
const (
	ErrCodeCredentialIssuanceFailed ErrorCode = "CREDENTIAL_ISSUANCE_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Media errors
const (
	ErrCodeUnsupportedFileType ErrorCode = "UNSUPPORTED_FILE_TYPE"
	ErrCodeFileTooLarge        ErrorCode = "FILE_TOO_LARGE"
	ErrCodeImageDecodeFailed   ErrorCode = "IMAGE_DECODE_FAILED"
)

// FieldError is one user-correctable problem with a single step field.
type FieldError struct {
	Step    string `json:"step,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
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

// NewValidationFailedError creates a non-retryable, user-correctable error.
func NewValidationFailedError(steps []string, fields []FieldError) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Step validation failed",
		Details:   fmt.Sprintf("steps: %s", strings.Join(steps, ", ")),
		Retryable: false,
		Fields:    fields,
		Metadata:  map[string]interface{}{"steps": steps},
		Timestamp: time.Now().UTC(),
	}
}

func NewUnknownStepError(stepKey string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownStep,
		Message:   "Unknown wizard step",
		Details:   fmt.Sprintf("stepKey: %s", stepKey),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStepNotReachableError is returned when a jump skips a step that is not yet valid and saved.
func NewStepNotReachableError(target int, blocking string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStepNotReachable,
		Message:   "Earlier steps must be completed first",
		Details:   fmt.Sprintf("target: %d, blockedBy: %s", target, blocking),
		Retryable: false,
		Metadata:  map[string]interface{}{"target": target, "blockedBy": blocking},
		Timestamp: time.Now().UTC(),
	}
}

func NewWizardClosedError(submissionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardClosed,
		Message:   "Submission already submitted",
		Details:   fmt.Sprintf("submissionId: %s", submissionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransitionInProgressError rejects a duplicate trigger while a save is in flight.
func NewTransitionInProgressError(submissionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransitionInProgress,
		Message:   "Another transition is still saving",
		Details:   fmt.Sprintf("submissionId: %s", submissionID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Onboarding session or submission not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidStatusError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatus,
		Message:   "Status transition not allowed",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDraftSaveFailedError creates a retryable persistence error. The wizard stays on the step.
func NewDraftSaveFailedError(stepKey string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftSaveFailed,
		Message:   "Draft could not be saved",
		Details:   fmt.Sprintf("stepKey: %s, error: %s", stepKey, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSubmissionWriteFailedError(submissionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionWriteFailed,
		Message:   "Submission could not be finalized",
		Details:   fmt.Sprintf("submissionId: %s, error: %s", submissionID, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewStorageUploadFailedError(bucket string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUploadFailed,
		Message:   "File upload failed",
		Details:   fmt.Sprintf("bucket: %s, error: %s", bucket, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCredentialIssuanceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialIssuanceFailed,
		Message:   "Company credentials could not be issued",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewUnsupportedFileTypeError(mimeType string, allowed []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedFileType,
		Message:   "Unsupported file type",
		Details:   fmt.Sprintf("got %s, allowed: %s", mimeType, strings.Join(allowed, ", ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewFileTooLargeError(limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileTooLarge,
		Message:   "File is too large",
		Details:   fmt.Sprintf("limit: %d bytes", limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewImageDecodeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeImageDecodeFailed,
		Message:   "Image could not be read",
		Details:   errString(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDraftSaveFailed,
		ErrCodeSubmissionWriteFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeStorageUploadFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeCredentialIssuanceFailed:
		return 3

	case ErrCodeTimeout,
		ErrCodeTransitionInProgress:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"errorCategory":     GetErrorCategory(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// Error categories used by the HTTP boundary and log lines.
const (
	CategoryValidation   = "VALIDATION"
	CategoryPersistence  = "PERSISTENCE"
	CategoryNotification = "NOTIFICATION"
	CategoryWizard       = "WIZARD"
	CategoryMedia        = "MEDIA"
	CategoryOther        = "OTHER"
)

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return CategoryValidation
	case strings.Contains(codeStr, "SAVE"), strings.Contains(codeStr, "WRITE"),
		strings.Contains(codeStr, "DATABASE"), strings.Contains(codeStr, "STORAGE"),
		strings.Contains(codeStr, "TIMEOUT"):
		return CategoryPersistence
	case strings.Contains(codeStr, "NOTIFICATION"), strings.Contains(codeStr, "CREDENTIAL"):
		return CategoryNotification
	case strings.Contains(codeStr, "STEP"), strings.Contains(codeStr, "WIZARD"),
		strings.Contains(codeStr, "TRANSITION"), strings.Contains(codeStr, "SESSION"),
		strings.Contains(codeStr, "STATUS"):
		return CategoryWizard
	case strings.Contains(codeStr, "FILE"), strings.Contains(codeStr, "IMAGE"):
		return CategoryMedia
	default:
		return CategoryOther
	}
}

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Retryable
}
