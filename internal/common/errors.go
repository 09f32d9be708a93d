package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")

	// ErrSourceUnavailable means the document source has nothing to offer:
	// the configured directory is missing, or no documents match the request.
	// Batch-level; nothing is attempted after it.
	ErrSourceUnavailable = errors.New("document source unavailable")
)

// ExtractionError means a PDF could not be parsed, or parsed to no text at
// all. Callers treat "no text" the same as malformed input. Per-document.
type ExtractionError struct {
	Filename string
	Reason   string
	Cause    error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed for %s: %s: %v", e.Filename, e.Reason, e.Cause)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.Filename, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// VaultAPIError covers authentication, identifier resolution and transport
// failures against the document vault. Authentication failures are
// batch-level (IsAuth); everything else is per-document.
type VaultAPIError struct {
	Op         string // "auth", "query", "download"
	StatusCode int
	Message    string
	Cause      error
}

func (e *VaultAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vault %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("vault %s failed: %s", e.Op, e.Message)
}

func (e *VaultAPIError) Unwrap() error { return e.Cause }

// IsAuth reports whether the failure occurred while establishing a session.
func (e *VaultAPIError) IsAuth() bool { return e.Op == "auth" }

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
