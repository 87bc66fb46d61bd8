package domain

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the core.
const (
	CodeInvalidArgument         = "INVALID_ARGUMENT"
	CodeProfileNotFound         = "PROFILE_NOT_FOUND"
	CodeMatchNotFound           = "MATCH_NOT_FOUND"
	CodeInsufficientFunds       = "INSUFFICIENT_FUNDS"
	CodeStoreUnavailable        = "STORE_UNAVAILABLE"
	CodeSettlementInconsistency = "SETTLEMENT_INCONSISTENCY"
	CodeConflict                = "CONFLICT"
	CodeRateLimited             = "RATE_LIMITED"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrInvalidArgument(msg string) *AppError {
	return &AppError{Code: CodeInvalidArgument, Message: msg, Status: 400}
}

func ErrProfileNotFound() *AppError {
	return &AppError{Code: CodeProfileNotFound, Message: "User profile not found", Status: 404}
}

func ErrMatchNotFound() *AppError {
	return &AppError{Code: CodeMatchNotFound, Message: "Match not found", Status: 404}
}

func ErrInsufficientFunds() *AppError {
	return &AppError{Code: CodeInsufficientFunds, Message: "Insufficient balance", Status: 400}
}

func ErrStoreUnavailable(msg string, cause error) *AppError {
	return &AppError{Code: CodeStoreUnavailable, Message: msg, Status: 500, Cause: cause}
}

func ErrSettlementInconsistency(msg string, cause error) *AppError {
	return &AppError{Code: CodeSettlementInconsistency, Message: msg, Status: 500, Cause: cause}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

// IsCode reports whether err wraps an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
