package github

import (
	"errors"
	"net/http"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// wrapAPIError converts go-github error types into *driven.APIError so the
// application layer can classify failures without importing go-github.
// Transport errors without an HTTP response are returned unchanged.
func wrapAPIError(err error, resp *gh.Response) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &driven.APIError{
			StatusCode:  statusOf(rateErr.Response, http.StatusForbidden),
			Message:     rateErr.Message,
			RateLimited: true,
			Remaining:   rateErr.Rate.Remaining,
			Reset:       rateErr.Rate.Reset.Time,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Now().Add(time.Minute)
		if abuseErr.RetryAfter != nil {
			reset = time.Now().Add(*abuseErr.RetryAfter)
		}
		return &driven.APIError{
			StatusCode:  statusOf(abuseErr.Response, http.StatusForbidden),
			Message:     abuseErr.Message,
			RateLimited: true,
			Remaining:   0,
			Reset:       reset,
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		apiErr := &driven.APIError{
			StatusCode: statusOf(ghErr.Response, 0),
			Message:    ghErr.Message,
		}
		if resp != nil && resp.Rate.Limit > 0 && resp.Rate.Remaining == 0 {
			apiErr.RateLimited = true
			apiErr.Reset = resp.Rate.Reset.Time
		}
		return apiErr
	}

	if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
		return &driven.APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	return err
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}
