package ratelimit

import (
	"math"
	"math/rand"
	"strconv"
	"time"
)

// FetchRetryError represents an error when all retry attempts are exhausted
type FetchRetryError struct {
	URL        string
	Attempts   int
	LastStatus int
	LastError  error
}

func (e *FetchRetryError) Error() string {
	msg := "failed to fetch " + e.URL + " after " + strconv.Itoa(e.Attempts) + " attempts"
	if e.LastStatus != 0 {
		msg += " (HTTP " + strconv.Itoa(e.LastStatus) + ")"
	}
	if e.LastError != nil {
		msg += ": " + e.LastError.Error()
	}
	return msg
}

func (e *FetchRetryError) Unwrap() error {
	return e.LastError
}

// IsRetryableStatus reports whether an HTTP status code warrants a retry.
// Retryable: 429 and all 5xx.
func IsRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}

// CalculateBackoff returns the exponential backoff delay for a given attempt,
// with 0-25% jitter to avoid synchronized retries.
func CalculateBackoff(attempt int, config Config) time.Duration {
	exponential := float64(config.InitialBackoffMs) * math.Pow(2.0, float64(attempt))
	capped := math.Min(exponential, float64(config.MaxBackoffMs))
	jitter := rand.Float64() * 0.25 * capped
	return time.Duration(capped+jitter) * time.Millisecond
}

// CalculateRateLimitBackoff returns the backoff for HTTP 429 responses.
// A Retry-After header takes precedence; otherwise a steeper 3x curve is used.
func CalculateRateLimitBackoff(attempt int, config Config, retryAfterHeader *string) time.Duration {
	if retryAfterHeader != nil {
		if seconds, err := strconv.Atoi(*retryAfterHeader); err == nil && seconds > 0 {
			jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
			return time.Duration(seconds)*time.Second + jitter
		}
	}

	exponential := float64(config.InitialBackoffMs) * math.Pow(3.0, float64(attempt))
	capped := math.Min(exponential, float64(config.MaxBackoffMs))
	jitter := rand.Float64() * 0.25 * capped
	return time.Duration(capped+jitter) * time.Millisecond
}
