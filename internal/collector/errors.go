package collector

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrFetchFailed = errors.New("fetch failed")
	ErrProvider    = errors.New("provider error")
)

// Error kinds reported by KindOf.
const (
	KindRateLimited   = "rate_limited"
	KindFetchFailed   = "fetch_failed"
	KindProviderError = "provider_error"
	KindUnknown       = "unknown"
)

// RateLimitedError is returned when a provider answers HTTP 429.
type RateLimitedError struct {
	Provider string
	Asset    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded fetching %s, wait a moment and try again", e.Provider, e.Asset)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// FetchFailedError covers transport failures and non-success HTTP statuses.
// Status is 0 when no response was received.
type FetchFailedError struct {
	Provider string
	Asset    string
	Status   int
	Err      error
}

func (e *FetchFailedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: failed to fetch %s: status %d", e.Provider, e.Asset, e.Status)
	}
	return fmt.Sprintf("%s: failed to fetch %s: %v", e.Provider, e.Asset, e.Err)
}

func (e *FetchFailedError) Unwrap() error        { return e.Err }
func (e *FetchFailedError) Is(target error) bool { return target == ErrFetchFailed }

// ProviderError is an application-level error in a successful HTTP response.
type ProviderError struct {
	Provider string
	Asset    string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error for %s: %s", e.Provider, e.Asset, e.Message)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// KindOf classifies an error from the fetch layer.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrProvider):
		return KindProviderError
	case errors.Is(err, ErrFetchFailed):
		return KindFetchFailed
	default:
		return KindUnknown
	}
}
