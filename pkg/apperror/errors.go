package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Error codes surfaced by the engine and its adapters.
const (
	CodeValidation        = "VAL_001"
	CodeNotFound          = "INT_001"
	CodeInvalidTransition = "INT_002"
	CodeSettlementFailed  = "SET_001"
	CodeTimeout           = "SET_002"
	CodeCollaborator      = "COL_001"
	CodeStorage           = "STO_001"
	CodeInvalidCredential = "AUTH_001"
	CodeInvalidToken      = "AUTH_002"
	CodeRateLimited       = "RATE_001"
	CodeInternal          = "SYS_001"
)

// ---- Caller input (VAL) ----

// Validation reports malformed caller input. It is never retried.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Intent lifecycle (INT) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition,
		fmt.Sprintf("cannot transition intent from %s to %s", from, to),
		http.StatusConflict)
}

// ---- Settlement (SET) ----
// These are recorded on failed intents, not returned to callers.

func ErrSettlement(err error) *AppError {
	return Wrap(CodeSettlementFailed, "Settlement failed", http.StatusBadGateway, err)
}

func ErrTimeout(err error) *AppError {
	return Wrap(CodeTimeout, "Settlement timed out", http.StatusGatewayTimeout, err)
}

// ---- Collaborators (COL) ----

// ErrCollaborator marks an external-call failure. The pipeline absorbs it.
func ErrCollaborator(name string, err error) *AppError {
	return Wrap(CodeCollaborator, fmt.Sprintf("%s unavailable", name), http.StatusBadGateway, err)
}

// ---- Storage (STO) ----

func ErrStorage(err error) *AppError {
	return Wrap(CodeStorage, "Intent store unavailable", http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredential, "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// CodeOf returns the AppError code carried anywhere in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
