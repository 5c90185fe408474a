package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeExtraction represents page content that is not in the expected shape
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeTimeout represents a stability condition that was never reached
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeStorage represents storage backend failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfiguration represents malformed configuration
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting and robot checks
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeValidation represents invalid input values
	ErrorTypeValidation ErrorType = "validation"
)

// HarvestError represents a typed error raised while collecting or storing identifiers
type HarvestError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time

	// RetryAfter is how long the source asked us to stay away. Zero when it did not say.
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *HarvestError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Source != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Type, e.Source)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *HarvestError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the caller may try the operation again.
// Storage faults are never retried automatically.
func (e *HarvestError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// New creates a new HarvestError
func New(errType ErrorType, source, message string, err error) *HarvestError {
	return &HarvestError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewExtraction creates a new extraction error
func NewExtraction(source, message string, err error) *HarvestError {
	return New(ErrorTypeExtraction, source, message, err)
}

// NewTimeout creates a new timeout error
func NewTimeout(source string, attempts int) *HarvestError {
	return New(ErrorTypeTimeout, source, fmt.Sprintf("not stable after %d attempts", attempts), nil)
}

// NewStorage creates a new storage error
func NewStorage(backend, message string, err error) *HarvestError {
	return New(ErrorTypeStorage, backend, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *HarvestError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *HarvestError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *HarvestError {
	message := "robot check detected"
	if duration > 0 {
		message = fmt.Sprintf("rate limited for %v", duration)
	}
	e := New(ErrorTypeRateLimit, source, message, nil)
	e.RetryAfter = duration
	return e
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *HarvestError {
	return New(ErrorTypeValidation, source, message, nil)
}

// IsType reports whether err or any error it wraps is a HarvestError of the given type
func IsType(err error, errType ErrorType) bool {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.Type == errType
	}
	return false
}

// IsRetryable reports whether err carries a HarvestError that may be retried
func IsRetryable(err error) bool {
	var he *HarvestError
	return stderrors.As(err, &he) && he.IsRetryable()
}

// RetryAfterOf returns the wait requested by the source of a rate limit
// error in err's chain, or 0 if there is none
func RetryAfterOf(err error) time.Duration {
	var he *HarvestError
	if stderrors.As(err, &he) && he.Type == ErrorTypeRateLimit {
		return he.RetryAfter
	}
	return 0
}

// TypeOf returns the type of the first HarvestError in err's chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.Type
	}
	return ""
}
