package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. LED_* codes belong to the ledger core.
const (
	CodeInvalidAmount         = "LED_001"
	CodeWalletFrozen          = "LED_002"
	CodeInsufficientAvailable = "LED_003"
	CodeInvalidTransition     = "LED_004"
	CodeAlreadySettled        = "LED_005"
	CodeSettlementFailed      = "LED_006"
	CodeLedgerInvariant       = "LED_007"
	CodeSettlementMismatch    = "LED_008"
	CodeInvalidCommissionRate = "LED_009"
	CodeNotFound              = "LED_010"
	CodeInsufficientReserved  = "LED_011"
	CodeValidation            = "VAL_001"
	CodeInvalidToken          = "AUTH_001"
	CodeForbidden             = "AUTH_002"
	CodeRateLimitExceeded     = "RATE_001"
	CodeInternal              = "SYS_001"
	CodeLockTimeout           = "SYS_002"
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

// Is matches any *AppError carrying the same code, so callers can write
// errors.Is(err, apperror.ErrWalletFrozen()) through wrapping layers.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
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

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &AppError{Code: code})
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Ledger (LED) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be positive and aligned to currency precision", http.StatusBadRequest)
}

func ErrWalletFrozen() *AppError {
	return New(CodeWalletFrozen, "Wallet is frozen", http.StatusLocked)
}

func ErrInsufficientAvailableBalance() *AppError {
	return New(CodeInsufficientAvailable, "Insufficient available balance", http.StatusUnprocessableEntity)
}

func ErrInsufficientReservedBalance() *AppError {
	return New(CodeInsufficientReserved, "Insufficient reserved balance", http.StatusUnprocessableEntity)
}

func ErrInvalidWithdrawalTransition(from, to string) *AppError {
	return New(CodeInvalidTransition,
		fmt.Sprintf("Withdrawal cannot move from %s to %s", from, to), http.StatusConflict)
}

func ErrAlreadySettled() *AppError {
	return New(CodeAlreadySettled, "Order has already been settled", http.StatusOK)
}

func ErrSettlementMismatch() *AppError {
	return New(CodeSettlementMismatch, "Order was already settled with different amounts", http.StatusConflict)
}

func ErrSettlementFailed(err error) *AppError {
	return Wrap(CodeSettlementFailed, "Settlement failed and was rolled back", http.StatusUnprocessableEntity, err)
}

func ErrLedgerInvariantViolation(err error) *AppError {
	return Wrap(CodeLedgerInvariant, "Ledger invariant violation", http.StatusInternalServerError, err)
}

func ErrInvalidCommissionRate() *AppError {
	return New(CodeInvalidCommissionRate, "Commission rate must be between 0 and 1", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Actor is not allowed to perform this operation", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
