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

// Error kinds. Every failure in the pipeline wraps exactly one of these so
// callers can decide between aborting the run and skipping a document.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrIO            = errors.New("io error")
	ErrExtraction    = errors.New("extraction error")
)

func NewConfigError(message string, cause error) *AppError {
	return &AppError{Code: "CONFIG_ERROR", Message: message, Cause: wrapKind(ErrConfiguration, cause)}
}

func NewIOError(message string, cause error) *AppError {
	return &AppError{Code: "IO_ERROR", Message: message, Cause: wrapKind(ErrIO, cause)}
}

func NewExtractionError(message string, cause error) *AppError {
	return &AppError{Code: "EXTRACTION_ERROR", Message: message, Cause: wrapKind(ErrExtraction, cause)}
}

func wrapKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
