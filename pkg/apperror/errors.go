package apperror

import (
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

// ---- Identity Gate (AUTH) ----

func ErrAuthRejected() *AppError {
	return New("AUTH_001", "Customer could not be authenticated", http.StatusForbidden)
}

func ErrAuthUnreachable(err error) *AppError {
	return Wrap("AUTH_002", "Identity service unreachable", http.StatusServiceUnavailable, err)
}

func ErrAuthMalformed(err error) *AppError {
	return Wrap("AUTH_003", "Identity service returned an unexpected response", http.StatusBadGateway, err)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_004", "Invalid or expired service token", http.StatusUnauthorized)
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound() *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound)
}

func ErrAccountInactive() *AppError {
	return New("ACC_002", "Account is not active", http.StatusConflict)
}

// ---- Transactions (TXN) ----

func ErrInvalidInput(message string) *AppError {
	return New("TXN_001", message, http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("TXN_002", "Insufficient funds", http.StatusPaymentRequired)
}

func ErrPayloadTooLarge() *AppError {
	return New("TXN_003", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorageFailure reports a failed durable write whose outcome is unknown.
func ErrStorageFailure(err error) *AppError {
	return Wrap("SYS_001", "Transaction outcome unknown, verify via ledger query before retrying", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_002 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_002", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a TXN_001-style validation error.
func Validation(message string) *AppError {
	return ErrInvalidInput(message)
}
