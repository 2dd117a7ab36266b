// Package core holds the canonical error model shared by the gateway and
// the agent runtime.
package core

import "fmt"

// Error is the canonical error surfaced to external callers.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrValidation rejects bad settings, room names or request shapes at
	// the boundary; nothing is partially applied.
	ErrValidation ErrorType = "validation_error"
	// ErrAuthentication rejects a missing or invalid credential before any
	// side effect.
	ErrAuthentication ErrorType = "authentication_error"
	// ErrNotFound reports an absent room.
	ErrNotFound ErrorType = "not_found_error"
	// ErrConflict reports a restart refused because the room is occupied.
	ErrConflict ErrorType = "conflict_error"
	// ErrSubstrate reports a room/dispatch service failure, surfaced as a
	// generic failure with no partial-success detail.
	ErrSubstrate ErrorType = "substrate_error"
	// ErrAPI is the catch-all internal error.
	ErrAPI ErrorType = "api_error"
)

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{Type: ErrValidation, Message: message}
}

// NewValidationErrorWithParam creates a validation error naming the bad
// parameter.
func NewValidationErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrValidation, Message: message, Param: param}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *Error {
	return &Error{Type: ErrConflict, Message: message}
}

// NewSubstrateError creates a generic substrate failure.
func NewSubstrateError(message string) *Error {
	return &Error{Type: ErrSubstrate, Message: message}
}

// NewAPIError creates a generic internal error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}
