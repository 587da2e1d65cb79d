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
			appErr:   New("TXN_002", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[TXN_002] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_002", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_002] DB error: connection refused",
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
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("TXN_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestIdentityErrors(t *testing.T) {
	cause := fmt.Errorf("dial tcp: i/o timeout")
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Rejected", ErrAuthRejected(), "AUTH_001", 403},
		{"Unreachable", ErrAuthUnreachable(cause), "AUTH_002", 503},
		{"Malformed", ErrAuthMalformed(cause), "AUTH_003", 502},
		{"InvalidToken", ErrInvalidToken(), "AUTH_004", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"AccountNotFound", ErrAccountNotFound(), "ACC_001", 404},
		{"AccountInactive", ErrAccountInactive(), "ACC_002", 409},
		{"InvalidInput", ErrInvalidInput("bad kind"), "TXN_001", 400},
		{"InsufficientFunds", ErrInsufficientFunds(), "TXN_002", 402},
		{"Validation", Validation("bad amount"), "TXN_001", 400},
		{"PayloadTooLarge", ErrPayloadTooLarge(), "TXN_003", 413},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")

	storageErr := ErrStorageFailure(inner)
	assert.Equal(t, "SYS_001", storageErr.Code)
	assert.Equal(t, 500, storageErr.HTTPStatus)
	assert.Contains(t, storageErr.Message, "verify via ledger query")
	assert.True(t, errors.Is(storageErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_002", internal.Code)
	assert.Equal(t, 500, internal.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestAuthUnreachable_KeepsCause(t *testing.T) {
	cause := errors.New("circuit open")
	err := ErrAuthUnreachable(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "circuit open")
}
