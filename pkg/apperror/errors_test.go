package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(CodeValidation, "amount must be positive", http.StatusBadRequest),
			expected: "[VAL_001] amount must be positive",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(CodeStorage, "store error", http.StatusServiceUnavailable, fmt.Errorf("connection refused")),
			expected: "[STO_001] store error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := ErrStorage(inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, Validation("x").Unwrap())
}

func TestLifecycleErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Validation", Validation("bad"), CodeValidation, 400},
		{"NotFound", ErrNotFound("payment intent"), CodeNotFound, 404},
		{"InvalidTransition", ErrInvalidTransition("COMPLETED", "EXECUTING"), CodeInvalidTransition, 409},
		{"Storage", ErrStorage(errors.New("full")), CodeStorage, 503},
		{"Settlement", ErrSettlement(errors.New("reverted")), CodeSettlementFailed, 502},
		{"Timeout", ErrTimeout(errors.New("deadline")), CodeTimeout, 504},
		{"Collaborator", ErrCollaborator("analysis", errors.New("503")), CodeCollaborator, 502},
		{"InvalidCredentials", ErrInvalidCredentials(), CodeInvalidCredential, 401},
		{"InvalidToken", ErrInvalidToken(), CodeInvalidToken, 401},
		{"RateLimit", ErrRateLimitExceeded(), CodeRateLimited, 429},
		{"Internal", InternalError(errors.New("boom")), CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestInvalidTransition_Message(t *testing.T) {
	err := ErrInvalidTransition("FAILED", "EXECUTING")
	assert.Contains(t, err.Message, "FAILED")
	assert.Contains(t, err.Message, "EXECUTING")
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrNotFound("payment intent"))

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeStorage))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.False(t, IsCode(nil, CodeNotFound))
}
