package driven

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrLabelNotFound indicates the requested label does not exist in the repository.
var ErrLabelNotFound = errors.New("label not found")

// APIError is a failed GitHub call reduced to what callers classify on.
type APIError struct {
	StatusCode int
	Message    string

	// RateLimited is set when the call failed because the primary quota is
	// exhausted. Remaining and Reset then describe the quota.
	RateLimited bool
	Remaining   int
	Reset       time.Time
}

func (e *APIError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("github api %d: %s (rate limit resets at %s)", e.StatusCode, e.Message, e.Reset.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("github api %d: %s", e.StatusCode, e.Message)
}

// QuotaExhausted reports whether the error is a 403/429 with no calls left.
func (e *APIError) QuotaExhausted() bool {
	if e.StatusCode != http.StatusForbidden && e.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return e.RateLimited && e.Remaining == 0
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrLabelNotFound) {
		return true
	}
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}
