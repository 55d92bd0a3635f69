package retry

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/address-discovery/internal/logging"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int           // Total attempts including the first one
	InitialDelay    time.Duration // Delay after the first failed attempt
	MaxDelay        time.Duration // Maximum delay between attempts
	Multiplier      float64       // Multiplier for exponential backoff
	RetryableErrors []string      // Substrings that mark an error retryable; empty retries everything
	Sleep           SleepFunc     // Optional; defaults to a context-aware timer
}

// DefaultRetryConfig returns a default retry configuration
// Pattern: 1s, 2s, 4s between four attempts, max 60s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithExponentialBackoff executes a function with exponential backoff retry logic
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	sleep := config.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	result := &RetryResult{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}
			return result
		}

		result.LastError = err

		if !IsRetryable(err, config.RetryableErrors) {
			logger.WithError(err).Debug("Operation failed with non-retryable error")
			break
		}

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts":      attempt,
				"totalDuration": time.Since(startTime),
				"error":         err.Error(),
			}).Warn("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("Retry cancelled due to context cancellation")
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay,
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		if err := sleep(ctx, delay); err != nil {
			logger.WithError(err).Warn("Retry cancelled during backoff")
			result.LastError = err
			break
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay returns initialDelay * multiplier^(attempt-1), capped at MaxDelay
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// IsRetryable determines if an error should trigger a retry
func IsRetryable(err error, retryableErrors []string) bool {
	if err == nil {
		return false
	}

	if len(retryableErrors) == 0 {
		return true
	}

	errStr := err.Error()
	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}

	return false
}

// RetryStats tracks statistics about retry operations
type RetryStats struct {
	TotalOperations int     `json:"totalOperations"`
	SuccessfulOps   int     `json:"successfulOps"`
	FailedOps       int     `json:"failedOps"`
	TotalRetries    int     `json:"totalRetries"`
	AverageAttempts float64 `json:"averageAttempts"`
}

// RetryStatsTracker tracks retry statistics. Safe for concurrent use.
type RetryStatsTracker struct {
	mu    sync.Mutex
	stats RetryStats
}

// NewRetryStatsTracker creates a new retry stats tracker
func NewRetryStatsTracker() *RetryStatsTracker {
	return &RetryStatsTracker{}
}

// RecordResult records the result of a retry operation
func (rst *RetryStatsTracker) RecordResult(result *RetryResult) {
	rst.mu.Lock()
	defer rst.mu.Unlock()

	rst.stats.TotalOperations++

	if result.Success {
		rst.stats.SuccessfulOps++
	} else {
		rst.stats.FailedOps++
	}

	if result.Attempts > 1 {
		rst.stats.TotalRetries += result.Attempts - 1
	}

	rst.stats.AverageAttempts = float64(rst.stats.TotalRetries+rst.stats.TotalOperations) / float64(rst.stats.TotalOperations)
}

// GetStats returns the current retry statistics
func (rst *RetryStatsTracker) GetStats() RetryStats {
	rst.mu.Lock()
	defer rst.mu.Unlock()
	return rst.stats
}

// Reset resets the retry statistics
func (rst *RetryStatsTracker) Reset() {
	rst.mu.Lock()
	defer rst.mu.Unlock()
	rst.stats = RetryStats{}
}
