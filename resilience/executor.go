package resilience

import (
	"context"
	"math"
	"time"
)

// ExecutorConfig mirrors the distilled spec's retryStrategy config option.
type ExecutorConfig struct {
	MaxRetries          int
	BackoffMs           int64
	BackoffMultiplier   float64
	MaxBackoffMs        int64
	RetryableCategories []Category
}

// DefaultExecutorConfig matches the backoff values exercised by the
// two-step-retry scenario in the distilled spec (1000ms then 2000ms).
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRetries:        3,
		BackoffMs:         1000,
		BackoffMultiplier: 2.0,
		MaxBackoffMs:      30000,
		RetryableCategories: []Category{
			CategoryRateLimit, CategoryNetwork, CategoryTimeout, CategoryRecoverable,
		},
	}
}

// backoff computes the delay before attempt k (1-indexed):
// min(backoffMs * multiplier^(k-1), maxBackoffMs).
func (c ExecutorConfig) backoff(attempt int) time.Duration {
	d := float64(c.BackoffMs) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if int64(d) > c.MaxBackoffMs {
		d = float64(c.MaxBackoffMs)
	}
	return time.Duration(d) * time.Millisecond
}

func (c ExecutorConfig) isRetryableCategory(cat Category) bool {
	for _, allowed := range c.RetryableCategories {
		if allowed == cat {
			return true
		}
	}
	return false
}

// CategorizedError is returned by Execute when the wrapped operation
// ultimately fails, carrying the classification the caller needs to pick
// a recovery action.
type CategorizedError struct {
	Category Category
	Action   RecoveryAction
	Attempts int
	Err      error
}

func (e *CategorizedError) Error() string { return e.Err.Error() }
func (e *CategorizedError) Unwrap() error { return e.Err }

// Executor is C2: executeWithRetry(op, ctx) -> result, implementing
// bounded exponential backoff with error-category-aware retry decisions.
// It is the domain-specific sibling of the general-purpose Retry function
// in retry.go: Retry blindly retries any error up to MaxAttempts; Executor
// consults Classify/Retryable/RecoveryFor before deciding whether (and how
// long) to wait.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor builds an Executor from the given config.
func NewExecutor(config ExecutorConfig) *Executor {
	return &Executor{config: config}
}

// Execute runs fn, retrying on categorized-retryable errors with backoff
// until MaxRetries is exhausted, a non-retryable category is hit, or the
// context is cancelled. On success returns nil. On failure returns a
// *CategorizedError describing the last error's category and the
// recovery action the caller should take.
func (e *Executor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	var lastCat Category

	for attempt := 1; attempt <= e.config.MaxRetries+1; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		lastCat = Classify(err)

		if !Retryable(lastCat) || !e.config.isRetryableCategory(lastCat) {
			return &CategorizedError{
				Category: lastCat,
				Action:   RecoveryFor(lastCat, false),
				Attempts: attempt,
				Err:      lastErr,
			}
		}

		if attempt > e.config.MaxRetries {
			break
		}

		delay := e.config.backoff(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return &CategorizedError{
		Category: lastCat,
		Action:   RecoveryFor(lastCat, true),
		Attempts: e.config.MaxRetries + 1,
		Err:      lastErr,
	}
}
