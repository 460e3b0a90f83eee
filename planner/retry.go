package planner

import "time"

// DefaultTimeout bounds the wall-clock time of one model invocation.
const DefaultTimeout = 30 * time.Second

// RetryConfig holds per-model retry configuration for generation attempts.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per model.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for generation runs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}
