package service

import (
	"errors"

	"gorm.io/gorm"
)

// ErrorKind classifies service failures. The HTTP layer and the tool-call
// audit records carry the kind; raw causes stay in the logs.
type ErrorKind string

const (
	ErrKindValidation   ErrorKind = "validation_error"
	ErrKindForbidden    ErrorKind = "forbidden_error"
	ErrKindNotFound     ErrorKind = "not_found_error"
	ErrKindAgentTimeout ErrorKind = "agent_timeout_error"
	ErrKindDependency   ErrorKind = "dependency_unavailable_error"
	ErrKindInternal     ErrorKind = "internal_error"
)

type Error struct {
	Kind    ErrorKind
	Message string // human-readable, safe to surface to callers
	Cause   error  // underlying error, for logging only
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func validationError(message string) *Error {
	return &Error{Kind: ErrKindValidation, Message: message}
}

func forbiddenError(message string) *Error {
	return &Error{Kind: ErrKindForbidden, Message: message}
}

func notFoundError(message string) *Error {
	return &Error{Kind: ErrKindNotFound, Message: message}
}

func agentTimeoutError(cause error) *Error {
	return &Error{Kind: ErrKindAgentTimeout, Message: "the assistant took too long to respond, please try again", Cause: cause}
}

func dependencyError(message string, cause error) *Error {
	return &Error{Kind: ErrKindDependency, Message: message, Cause: cause}
}

func internalError(cause error) *Error {
	return &Error{Kind: ErrKindInternal, Message: "something went wrong, please try again", Cause: cause}
}

// storeError maps a repository failure to a service error. A missing record
// becomes NotFound; anything else means the store misbehaved and is retryable.
func storeError(err error, notFoundMessage string) *Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError(notFoundMessage)
	}
	return dependencyError("the data store is currently unavailable", err)
}

// KindOf extracts the kind from any error, defaulting to internal.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ErrKindInternal
}

// PublicMessage returns the caller-safe message for any error.
func PublicMessage(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return "something went wrong, please try again"
}
