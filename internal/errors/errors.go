package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a covergate error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"    // 401
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrMalformed      ErrorCode = "MALFORMED"       // 422 (corrupt persisted document)
	ErrRateLimited    ErrorCode = "RATE_LIMITED"    // 429
	ErrQuotaExceeded  ErrorCode = "QUOTA_EXCEEDED"  // 429
	ErrPersistence    ErrorCode = "PERSISTENCE"     // 500 (write did not commit)
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// GateError represents a structured error with code, status, and details.
// NotFound and Malformed are expected outcomes, not exceptional ones: callers
// treat NotFound as a normal negative result and Malformed stores degrade to
// empty/default documents instead of failing the request.
type GateError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GateError {
	return &GateError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for a rejected credential or an
// identity that is not on the invitation list.
func NewUnauthorized(msg string) *GateError {
	return &GateError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an absent identity or record.
func NewNotFound(identifier string) *GateError {
	return &GateError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for duplicate administrative writes.
func NewConflict(msg string) *GateError {
	return &GateError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewMalformed creates a 422 error for a corrupt persisted document.
// Components log this and fall back to an empty document; it never
// propagates to the request path.
func NewMalformed(path string, err error) *GateError {
	msg := "malformed document"
	if err != nil {
		msg = err.Error()
	}
	return &GateError{
		Code:    ErrMalformed,
		Status:  422,
		Message: msg,
		Details: map[string]any{"path": path},
	}
}

// NewRateLimited creates a 429 error carrying the window parameters that
// caused the rejection.
func NewRateLimited(action string, maxRequests int) *GateError {
	return &GateError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: fmt.Sprintf("rate limit exceeded for action %q", action),
		Details: map[string]any{"action": action, "max_requests": maxRequests},
	}
}

// NewQuotaExceeded creates a 429 error carrying remaining-quota metadata.
func NewQuotaExceeded(usedToday, limit int) *GateError {
	return &GateError{
		Code:    ErrQuotaExceeded,
		Status:  429,
		Message: fmt.Sprintf("daily generation limit reached: %d of %d used", usedToday, limit),
		Details: map[string]any{"used_today": usedToday, "daily_limit": limit},
	}
}

// NewPersistence creates a 500 error for a write that could not be
// committed. The gated action already performed is not rolled back.
func NewPersistence(err error) *GateError {
	msg := "write could not be committed"
	if err != nil {
		msg = err.Error()
	}
	return &GateError{
		Code:    ErrPersistence,
		Status:  500,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic so internal details never leak to callers;
// the original error is kept in Details for logging.
func NewInternal(err error) *GateError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &GateError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or any error it wraps) is a GateError with the
// given code.
func Is(err error, code ErrorCode) bool {
	var gErr *GateError
	if stderrors.As(err, &gErr) {
		return gErr.Code == code
	}
	return false
}
