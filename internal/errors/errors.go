package errors

import (
	stderrors "errors"
	"fmt"
)

// GuideError is the structured error type for guidecore.
// It provides rich context for error handling, logging, and user presentation.
type GuideError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *GuideError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GuideError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with GuideError.
func (e *GuideError) Is(target error) bool {
	if t, ok := target.(*GuideError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *GuideError) WithDetail(key, value string) *GuideError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *GuideError) WithSuggestion(suggestion string) *GuideError {
	e.Suggestion = suggestion
	return e
}

// New creates a new GuideError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *GuideError {
	return &GuideError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a GuideError from an existing error.
// The error's message becomes the GuideError message.
func Wrap(code string, err error) *GuideError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *GuideError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *GuideError {
	return New(ErrCodeFileNotFound, message, cause)
}

// FetchError creates a fetch-related error.
// Fetch timeouts are typically retryable.
func FetchError(message string, cause error) *GuideError {
	return New(ErrCodeFetchTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *GuideError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *GuideError {
	return New(ErrCodeInternal, message, cause)
}

// asGuideError walks the wrap chain for the outermost GuideError, so
// codes survive fmt.Errorf %w wrapping (retry exhaustion, callers adding
// context).
func asGuideError(err error) (*GuideError, bool) {
	var ge *GuideError
	if stderrors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain carries a GuideError with the
// Retryable flag set.
func IsRetryable(err error) bool {
	if ge, ok := asGuideError(err); ok {
		return ge.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ge, ok := asGuideError(err); ok {
		return ge.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a GuideError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ge, ok := asGuideError(err); ok {
		return ge.Code
	}
	return ""
}

// GetCategory extracts the category from a GuideError in the chain.
// Returns empty string if there is none.
func GetCategory(err error) Category {
	if ge, ok := asGuideError(err); ok {
		return ge.Category
	}
	return ""
}
