package riot

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error classes callers branch on with errors.Is
var (
	// ErrNotFound is permanent: the resource does not exist and retrying will not help
	ErrNotFound = errors.New("riot: not found")
	// ErrRateLimited means the request budget is exhausted, locally or at the provider
	ErrRateLimited = errors.New("riot: rate limited")
	// ErrTransient covers timeouts, 5xx responses, network failures and an open circuit
	ErrTransient = errors.New("riot: transient failure")
)

// APIError is a non-200 response from the Riot API
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("API error: status %d, retry after %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Is maps status codes onto the sentinel error classes
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusBadRequest
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrTransient:
		return e.StatusCode == http.StatusTooManyRequests ||
			e.StatusCode == http.StatusRequestTimeout ||
			e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// RetryAfter extracts the provider's back-off hint, if any
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
