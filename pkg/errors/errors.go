package errors

import (
	"errors"
	"fmt"
)

// Template and rendering errors

var (
	// ErrTemplate indicates a template syntax error, an undeclared variable,
	// or a relation traversal deeper than the configured maximum
	ErrTemplate = errors.New("template error")

	// ErrEvaluation indicates a filter or expression failed at evaluation time
	ErrEvaluation = errors.New("evaluation error")
)

// Attachment assembly errors

var (
	// ErrAttachmentLimit indicates the assembled bundle exceeds the model's
	// attachment count limit or contains a disallowed format
	ErrAttachmentLimit = errors.New("attachment limit exceeded")

	// ErrReport indicates the external report generator failed
	ErrReport = errors.New("report generation failed")
)

// Provider errors

var (
	// ErrUnsupportedProvider indicates no client is registered for the provider code
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrRateLimited indicates the provider rejected the request due to rate limits
	ErrRateLimited = errors.New("provider rate limited")

	// ErrProviderTimeout indicates the provider call exceeded its deadline
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderAuth indicates invalid or missing provider credentials
	ErrProviderAuth = errors.New("provider authentication failed")

	// ErrProviderValidation indicates the provider rejected the request as malformed
	ErrProviderValidation = errors.New("provider rejected request")

	// ErrProviderUnknown indicates an unclassified provider fault
	ErrProviderUnknown = errors.New("unknown provider fault")
)

// Delivery and configuration errors

var (
	// ErrSchema indicates a field write failed due to a field/type mismatch
	ErrSchema = errors.New("schema mismatch")

	// ErrInvalidConfig indicates an action configuration violates an invariant
	ErrInvalidConfig = errors.New("invalid action configuration")

	// ErrQueueFull indicates the dispatch queue is at capacity
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrCanceled indicates the invocation was canceled by its trigger
	ErrCanceled = errors.New("invocation canceled")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// IsTransient reports whether a provider error is worth retrying.
// Authentication and validation failures are permanent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderTimeout)
}

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

// Newf creates an error carrying a sentinel with formatted context
func Newf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
