// Package errors provides structured error handling for netport operations.
// It defines error codes and typed errors that carry the failing target or
// field, so callers can branch on the code rather than on message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Scanning errors.
	CodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"
	CodeInvalidRange     ErrorCode = "INVALID_RANGE"
	CodeScanFailed       ErrorCode = "SCAN_FAILED"

	// Job errors.
	CodeNotFound  ErrorCode = "NOT_FOUND"
	CodeNotReady  ErrorCode = "NOT_READY"
	CodeQueueFull ErrorCode = "QUEUE_FULL"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"

	// File system errors.
	CodeFileWrite       ErrorCode = "FILE_WRITE"
	CodeDirectoryCreate ErrorCode = "DIRECTORY_CREATE"
)

// ScanError represents an error raised by the scan engine or the job layer.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (target: %s)", msg, e.Target)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{Code: code, Message: message}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{Code: code, Message: message, Target: target}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: err}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Target: target, Cause: err}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message, operation string, err error) *DatabaseError {
	return &DatabaseError{Code: code, Message: message, Operation: operation, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// UserMessage returns text suitable for API clients and terminals: the
// message and target of a coded error without the code or the cause.
func UserMessage(err error) string {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		if scanErr.Target != "" {
			return scanErr.Message + ": " + scanErr.Target
		}
		return scanErr.Message
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Message
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ErrResolutionFailed reports that host could not be turned into an address.
// The original, unmodified host string is kept as the target.
func ErrResolutionFailed(host string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeResolutionFailed, "Could not resolve host", host, err)
}

// ErrInvalidRange reports a malformed or out-of-bounds port range.
func ErrInvalidRange(spec, reason string) *ScanError {
	return NewScanErrorWithTarget(CodeInvalidRange, "Invalid port range: "+reason, spec)
}

// ErrValidation reports an invalid scan parameter.
func ErrValidation(message string) *ScanError {
	return NewScanError(CodeValidation, message)
}

// ErrJobNotFound reports an unknown job identifier.
func ErrJobNotFound(id string) *ScanError {
	return NewScanErrorWithTarget(CodeNotFound, "Job not found", id)
}

// ErrJobNotReady reports an export request for a job that has not completed.
func ErrJobNotReady(id string) *ScanError {
	return NewScanErrorWithTarget(CodeNotReady, "Scan not complete", id)
}

// ErrDatabaseQuery creates an error for database query failures.
func ErrDatabaseQuery(operation string, err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseQuery, "Database query failed", operation, err)
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", "connect", err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}
