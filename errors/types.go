package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Capacity errors
	ErrCodeGlobalCapacity  ErrorCode = "GLOBAL_CAPACITY_EXCEEDED"
	ErrCodeProjectCapacity ErrorCode = "PROJECT_CAPACITY_EXCEEDED"

	// Validation errors
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeToolUnsupported  ErrorCode = "TOOL_UNSUPPORTED"
	ErrCodeToolUnavailable  ErrorCode = "TOOL_UNAVAILABLE"
	ErrCodeSandboxViolation ErrorCode = "SANDBOX_VIOLATION"
	ErrCodeInvalidBranch    ErrorCode = "INVALID_BRANCH_NAME"
	ErrCodeDefaultWorktree  ErrorCode = "DEFAULT_WORKTREE_PROTECTED"

	// Not-found errors
	ErrCodeProjectNotFound  ErrorCode = "PROJECT_NOT_FOUND"
	ErrCodeWorktreeNotFound ErrorCode = "WORKTREE_NOT_FOUND"
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"

	// External tool failures
	ErrCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	ErrCodeGitFailed   ErrorCode = "GIT_FAILED"

	// Token errors
	ErrCodeTokenInvalid ErrorCode = "TOKEN_INVALID"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenMissing ErrorCode = "TOKEN_MISSING"

	// General errors
	ErrCodeInternal  ErrorCode = "INTERNAL_ERROR"
	ErrCodeTransport ErrorCode = "TRANSPORT_FAULT"
	ErrCodeStore     ErrorCode = "STORE_CORRUPT"
)

// DeckError represents a structured error with context
type DeckError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *DeckError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DeckError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *DeckError) WithDetail(key string, value interface{}) *DeckError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *DeckError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new DeckError
func New(code ErrorCode, message string) *DeckError {
	return &DeckError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a DeckError
func Wrap(err error, code ErrorCode, message string) *DeckError {
	return &DeckError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific DeckError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	deckErr, ok := err.(*DeckError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return deckErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	deckErr, ok := err.(*DeckError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return deckErr.Code
}

// IsNotFound reports whether the error carries any of the not-found codes.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case ErrCodeProjectNotFound, ErrCodeWorktreeNotFound, ErrCodeSessionNotFound:
		return true
	}
	return false
}
