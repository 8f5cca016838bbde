package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts       int           // Maximum number of attempts, the first one included
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Multiplier for exponential backoff
	Jitter            bool          // Whether to add jitter to backoff
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// IsRetryableError checks if an error is retryable
type IsRetryableError func(error) bool

// Retry executes fn until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done. The last error is returned.
func Retry(ctx context.Context, fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == config.MaxAttempts-1 {
			break
		}

		sleepDuration := backoff
		if config.Jitter {
			// up to 25% extra
			sleepDuration += time.Duration(float64(sleepDuration) * 0.25 * rand.Float64())
		}
		if sleepDuration > config.MaxBackoff {
			sleepDuration = config.MaxBackoff
		}

		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(sleepDuration):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// CalculateBackoff calculates the backoff duration for a given attempt
func CalculateBackoff(attempt int, initialBackoff time.Duration, maxBackoff time.Duration, multiplier float64) time.Duration {
	backoff := time.Duration(float64(initialBackoff) * math.Pow(multiplier, float64(attempt)))
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// IsRetryableNetworkError checks if an error is a retryable network error
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if IsRetryable(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	// Connection errors
	if containsAny(errStr, []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"unavailable",
		"network is unreachable",
		"no route to host",
		"eof",
	}) {
		return true
	}

	// Timeout errors
	if containsAny(errStr, []string{
		"deadline exceeded",
		"timeout",
	}) {
		return true
	}

	// Backend throttling
	return containsAny(errStr, []string{
		"resource exhausted",
		"too many requests",
		"rate limit",
	})
}

func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// RetryableError wraps an error to indicate it's retryable
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is a RetryableError
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
