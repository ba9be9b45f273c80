package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string            `json:"error_code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"errors,omitempty"` // field -> message, validation only
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"` // Wrapped internal error (not exposed to client)
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

// Is matches on Code so sentinel comparisons work across fresh instances.
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

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error with a single message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ValidationFields returns a VAL_001 error carrying a field -> message map.
func ValidationFields(fields map[string]string) *AppError {
	e := New("VAL_001", "Validation failed", http.StatusBadRequest)
	e.Fields = fields
	return e
}

// ---- Wallet (WLT) ----

func ErrWalletNotFound() *AppError {
	return New("WLT_001", "Wallet not found", http.StatusNotFound)
}

func ErrWalletExists() *AppError {
	return New("WLT_002", "User has an existing wallet", http.StatusBadRequest)
}

func ErrInsufficientBalance() *AppError {
	return New("WLT_003", "Insufficient balance", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("WLT_004", "Invalid amount", http.StatusBadRequest)
}

// ---- Contacts (CNT) ----

func ErrContactNotFound() *AppError {
	return New("WLT_001", "New contact wallet not found", http.StatusNotFound)
}

func ErrContactExists() *AppError {
	return New("CNT_001", "Wallet is already a contact", http.StatusBadRequest)
}

func ErrNotAContact() *AppError {
	return New("CNT_002", "Wallet is not a contact", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// IsPermanent reports whether err is a business failure that retrying cannot fix.
// Anything that is not an AppError, or maps to a 5xx, is treated as transient.
func IsPermanent(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.HTTPStatus < http.StatusInternalServerError
}
