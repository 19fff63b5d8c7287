package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrCredentialMissing ErrorType = "CREDENTIAL_MISSING"
	ErrCredentialInvalid ErrorType = "CREDENTIAL_INVALID"
	ErrDuplicateProject  ErrorType = "DUPLICATE_PROJECT"
	ErrPathUnusable      ErrorType = "PATH_UNUSABLE"
	ErrRemoteUnreachable ErrorType = "REMOTE_UNREACHABLE"
	ErrPushConflict      ErrorType = "PUSH_CONFLICT"
	ErrRemoteRejected    ErrorType = "REMOTE_REJECTED"
	ErrNotFound          ErrorType = "NOT_FOUND"
	ErrRateLimit         ErrorType = "RATE_LIMIT"
	ErrInvalidInput      ErrorType = "INVALID_INPUT"
	ErrInternal          ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Op        string
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Op != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Type, e.Op)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// WithOp records the operation that failed and returns the same error.
func (e *AppError) WithOp(op string) *AppError {
	e.Op = op
	return e
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or
// ErrInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

// OpOf returns the operation recorded on err, if any.
func OpOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Op
	}
	return ""
}

// MessageOf returns the message of the first AppError in err's chain without
// its type prefix, or err's full text when there is none.
func MessageOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func is(err error, t ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return is(err, ErrNotFound)
}

// IsRateLimit checks if the error is a rate limit error
func IsRateLimit(err error) bool {
	return is(err, ErrRateLimit)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return is(err, ErrInvalidInput)
}

// IsValidationError is an alias for IsInvalidInput
func IsValidationError(err error) bool {
	return IsInvalidInput(err)
}

// IsDuplicateProject checks if the error reports an already tracked path
func IsDuplicateProject(err error) bool {
	return is(err, ErrDuplicateProject)
}

// IsCredentialError checks if the error is a missing or rejected credential
func IsCredentialError(err error) bool {
	return is(err, ErrCredentialMissing) || is(err, ErrCredentialInvalid)
}

// IsPushConflict checks if the error is an unresolved push divergence
func IsPushConflict(err error) bool {
	return is(err, ErrPushConflict)
}

// IsRecoverable reports whether a failed sync cycle should leave the project
// watching and wait for the next natural trigger.
func IsRecoverable(err error) bool {
	switch TypeOf(err) {
	case ErrRemoteUnreachable, ErrRateLimit:
		return true
	}
	return false
}

// IsFatal reports whether the failure requires operator action.
func IsFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return New(ErrNotFound, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return New(ErrInvalidInput, message, err)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return New(ErrInternal, message, err)
}

// NewCredentialMissingError is returned when no explicit or saved credential exists
func NewCredentialMissingError(message string) *AppError {
	return New(ErrCredentialMissing, message, nil)
}

// NewCredentialInvalidError is returned when the hosting provider rejects a credential
func NewCredentialInvalidError(message string, err error) *AppError {
	return New(ErrCredentialInvalid, message, err)
}

// NewDuplicateProjectError is returned when a path is already tracked
func NewDuplicateProjectError(path string) *AppError {
	return New(ErrDuplicateProject, fmt.Sprintf("a project already tracks %s", path), nil)
}

// NewPathUnusableError is returned when a local path cannot be used for a project
func NewPathUnusableError(path string, err error) *AppError {
	return New(ErrPathUnusable, fmt.Sprintf("path is unusable: %s", path), err)
}

// NewRemoteUnreachableError wraps network level failures
func NewRemoteUnreachableError(message string, err error) *AppError {
	return New(ErrRemoteUnreachable, message, err)
}

// NewPushConflictError is returned when local and remote history diverge
func NewPushConflictError(message string, err error) *AppError {
	return New(ErrPushConflict, message, err)
}

// NewRemoteRejectedError is returned when the remote refuses the operation
// permanently, for example when the repository was deleted.
func NewRemoteRejectedError(message string, err error) *AppError {
	return New(ErrRemoteRejected, message, err)
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(resetTime time.Time, limit, remaining int) *AppError {
	return New(ErrRateLimit,
		fmt.Sprintf("rate limit exceeded, resets at %v (limit: %d, remaining: %d)", resetTime, limit, remaining),
		nil)
}

// NotFoundError represents a not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewResourceNotFoundError creates an AppError wrapping a NotFoundError for a specific resource
func NewResourceNotFoundError(resource, id string) *AppError {
	cause := &NotFoundError{Resource: resource, ID: id}
	return New(ErrNotFound, cause.Error(), cause)
}
