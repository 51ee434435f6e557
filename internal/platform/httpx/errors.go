package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sekolahku/sekolahku/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Denials stay distinguishable: missing tenant context and missing
// authority are 403, absent records are 404, bad input is 400, so the
// consuming dashboard never has to guess from a generic failure.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "the requested record does not exist")
	case errors.Is(err, shared.ErrTenantRequired):
		Problem(w, http.StatusForbidden, "School Context Required", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrInvalidOperation):
		Problem(w, http.StatusBadRequest, "Invalid Operation", err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, shared.ErrVerificationFailed):
		// Single message for every token failure kind so callers cannot
		// enumerate which part of the check tripped.
		Problem(w, http.StatusBadRequest, "Verification Failed", "verification failed")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, shared.ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// RespondRateLimited sends a 429 with a Retry-After hint.
func RespondRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	Problem(w, http.StatusTooManyRequests, "Too Many Requests", "retry after "+strconv.Itoa(secs)+"s")
}
