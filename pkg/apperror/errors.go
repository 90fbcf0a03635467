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

// Is matches any AppError carrying the same code, so callers can write
// errors.Is(err, apperror.ErrInsufficientBalance()).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
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

// ---- Ledger Business Logic (LED) ----

func ErrInsufficientBalance() *AppError {
	return New("LED_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "Amount must be a positive integer", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInsufficientStock() *AppError {
	return New("LED_005", "Insufficient product stock", http.StatusConflict)
}

func ErrSelfTransferNotAllowed() *AppError {
	return New("LED_006", "Cannot transfer points to the same wallet", http.StatusBadRequest)
}

func ErrReceiverNotFound() *AppError {
	return New("LED_007", "Receiver wallet not found", http.StatusNotFound)
}

func ErrProductInactive() *AppError {
	return New("LED_008", "Product is not available for purchase", http.StatusConflict)
}

// ---- Payment Tokens (TKN) ----

func ErrInvalidOrExpiredToken() *AppError {
	return New("TKN_001", "Invalid or expired payment token", http.StatusBadRequest)
}

func ErrTokenExpired() *AppError {
	return New("TKN_002", "Payment token has expired", http.StatusGone)
}

func ErrTokenAlreadyRedeemed() *AppError {
	return New("TKN_003", "Payment token has already been redeemed", http.StatusConflict)
}

func ErrAmountMismatch() *AppError {
	return New("TKN_004", "Payment token amount does not match", http.StatusBadRequest)
}

// ---- Authorization (AUTH) ----

func ErrMissingActor() *AppError {
	return New("AUTH_001", "Missing or invalid actor identity", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Actor role is not permitted to perform this action", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrBusy reports that an operation kept losing optimistic version checks.
// Clients may retry the request.
func ErrBusy(err error) *AppError {
	return Wrap("SYS_002", "Wallet is busy, please retry", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error.
func Validation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}
