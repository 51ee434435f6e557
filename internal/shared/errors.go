package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTenantRequired occurs when a scoped operation has no school context.
	ErrTenantRequired = errors.New("school context required")
	// ErrForbidden indicates the caller lacks authority for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOperation indicates an attempt to mutate an immutable entity.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidInput indicates a malformed or unknown value in the request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited indicates the caller exceeded an issuance or attempt window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrVerificationFailed is the generic client-facing token failure.
	// The precise reason stays in logs and internal error chains.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// RateLimitError carries the retry-after hint alongside ErrRateLimited so
// handlers can surface throttling distinctly from authorization errors.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
