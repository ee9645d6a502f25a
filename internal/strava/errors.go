package strava

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited matches any *RateLimitError via errors.Is
	ErrRateLimited = &RateLimitError{Message: "rate limit exceeded"}

	// ErrUnauthorized is returned when the token is rejected even after a refresh
	ErrUnauthorized = errors.New("strava: unauthorized")
)

// RateLimitError is returned for HTTP 429 responses
type RateLimitError struct {
	// Wait is how long Strava asked us to back off
	Wait    time.Duration
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%s, retry after %s", e.Message, e.Wait)
	}
	return e.Message
}

// Is implements errors.Is interface.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// RetryAfter satisfies scheduler.RetryAfterError
func (e *RateLimitError) RetryAfter() time.Duration {
	return e.Wait
}

// APIError is any other non-200 response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}
