package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common error types for the social connect service
var (
	// Connect flow errors
	ErrInvalidState   = errors.New("invalid state token")
	ErrProviderDenied = errors.New("provider consent denied")
	ErrExchangeFailed = errors.New("authorization grant exchange failed")

	// Credential errors
	ErrNotConnected      = errors.New("platform not connected")
	ErrConnectionExpired = errors.New("platform connection expired")
	ErrInvalidGrant      = errors.New("refresh secret revoked")

	// Provider call errors
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")
	ErrRateLimited         = errors.New("provider rate limit exceeded")
	ErrContentRejected     = errors.New("content rejected by provider")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// RateLimitError carries the provider-supplied retry delay when one was
// present on a 429 response. It unwraps to ErrRateLimited so callers can
// still classify it with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
