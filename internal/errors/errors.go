// Package errors defines the error taxonomy surfaced by kvtui and the
// classification of remote failures into it.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// AuthenticationError means credential acquisition failed. At startup this
// is fatal; afterwards it is surfaced as a banner.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e AuthenticationError) Error() string {
	if e.Message != "" {
		return "authentication failed: " + e.Message
	}
	return "authentication failed: " + e.Err.Error()
}

func (e AuthenticationError) Unwrap() error { return e.Err }

// PermissionError means the caller is authenticated but not authorized for
// the attempted operation.
type PermissionError struct {
	Operation string
	Err       error
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s: %v", e.Operation, e.Err)
}

func (e PermissionError) Unwrap() error { return e.Err }

// NotFoundError means the vault or secret no longer exists remotely.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

// NetworkError is a transient transport-level failure.
type NetworkError struct {
	Err error
}

func (e NetworkError) Error() string { return "network error: " + e.Err.Error() }

func (e NetworkError) Unwrap() error { return e.Err }

// TimeoutError means a remote call exceeded its bounded wait. Transient.
type TimeoutError struct {
	Err error
}

func (e TimeoutError) Error() string { return "request timed out" }

func (e TimeoutError) Unwrap() error { return e.Err }

// RateLimitedError means the service throttled the caller. Transient,
// retried with backoff.
type RateLimitedError struct {
	Err error
}

func (e RateLimitedError) Error() string { return "rate limited by service" }

func (e RateLimitedError) Unwrap() error { return e.Err }

// ValidationError is a locally detected bad input, caught before any
// network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// InternalError is an invariant violation, e.g. an unexpected state
// transition. These indicate bugs, not operator mistakes.
type InternalError struct {
	Message string
}

func (e InternalError) Error() string { return "internal error: " + e.Message }

// ConfigError reports an invalid configuration value with a suggestion.
type ConfigError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

// Classify maps a raw error from the Azure SDK or the ARM transport into
// the taxonomy. Errors that are already classified pass through unchanged.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case AuthenticationError, PermissionError, NotFoundError, NetworkError,
		TimeoutError, RateLimitedError, ValidationError, InternalError:
		return err
	}

	if errors.Is(err, context.Canceled) {
		// Cooperative cancellation; the result is discarded upstream.
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError{Err: err}
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 401:
			return AuthenticationError{Err: err}
		case 403:
			return PermissionError{Operation: operation, Err: err}
		case 404:
			return NotFoundError{Resource: operation, Err: err}
		case 408:
			return TimeoutError{Err: err}
		case 429:
			return RateLimitedError{Err: err}
		default:
			if respErr.StatusCode >= 500 {
				return NetworkError{Err: err}
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return TimeoutError{Err: err}
		}
		return NetworkError{Err: err}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "secretnotfound"):
		return NotFoundError{Resource: operation, Err: err}
	case strings.Contains(errStr, "throttled"), strings.Contains(errStr, "too many requests"):
		return RateLimitedError{Err: err}
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "broken pipe"):
		return NetworkError{Err: err}
	case strings.Contains(errStr, "timeout"):
		return TimeoutError{Err: err}
	}

	return NetworkError{Err: err}
}

// IsTransient reports whether the error is worth retrying with backoff.
func IsTransient(err error) bool {
	switch err.(type) {
	case NetworkError, TimeoutError, RateLimitedError:
		return true
	}
	return false
}

// IsAuth reports whether the error is an authentication failure.
func IsAuth(err error) bool {
	var authErr AuthenticationError
	return errors.As(err, &authErr)
}

// Suggestion returns operator guidance for a surfaced error, for display
// alongside the banner message.
func Suggestion(err error) string {
	switch err.(type) {
	case AuthenticationError:
		return "Try running 'az login' to refresh your Azure credentials"
	case PermissionError:
		return "Check Key Vault access policies: 'Get' and 'List' permissions are required for secrets"
	case NotFoundError:
		return "The resource may have been deleted remotely; refresh with 'r'"
	case RateLimitedError:
		return "The service is throttling requests; wait a moment and retry"
	case NetworkError, TimeoutError:
		return "Check your network connection and try again"
	case ValidationError:
		return "Fix the highlighted input and resubmit"
	}
	return ""
}
