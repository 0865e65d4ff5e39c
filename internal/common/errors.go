package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// Canonical error constructors for the checkout pipeline. Handlers map these
// to stable machine-readable codes so clients never have to parse messages.

// ErrUnauthorized covers every authentication failure with a single code so
// callers cannot distinguish which sub-condition failed.
func ErrUnauthorized(err error) *AppError {
	return NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
}

// ErrInvalidBasketShape reports a malformed basket payload.
func ErrInvalidBasketShape(err error) *AppError {
	return NewAppError("INVALID_BASKET_SHAPE", "basket payload is malformed", http.StatusBadRequest, err)
}

// ErrNoPriceHistory reports a product with an empty price log. This is a data
// integrity fault, never silently defaulted.
func ErrNoPriceHistory(err error) *AppError {
	return NewAppError("NO_PRICE_HISTORY", "product has no price history", http.StatusInternalServerError, err)
}

// ErrGatewayUnavailable reports an exhausted payment gateway call.
func ErrGatewayUnavailable(err error) *AppError {
	return NewAppError("GATEWAY_UNAVAILABLE", "payment gateway unavailable", http.StatusBadGateway, err)
}

// ErrAuthorityExpiredOrUnknown reports a verify attempt against a missing or
// expired checkout intent.
func ErrAuthorityExpiredOrUnknown(err error) *AppError {
	return NewAppError("AUTHORITY_EXPIRED_OR_UNKNOWN", "checkout intent expired or unknown", http.StatusNotFound, err)
}

// ErrInsufficientStock reports a confirmation-time stock shortfall.
func ErrInsufficientStock(err error) *AppError {
	return NewAppError("INSUFFICIENT_STOCK", "insufficient stock at confirmation", http.StatusConflict, err)
}
