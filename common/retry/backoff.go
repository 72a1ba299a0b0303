// Package retry implements exponential backoff retry for operations the
// caller judges safe to repeat. Used in-handler for the single
// TransientInternal retry called for in spec §7 (DB serialization
// failure / deadlock on reserveStock); bus-level redelivery
// is left entirely to the broker.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts        int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
	MaxElapsedTime     time.Duration
}

// DefaultConfig is a general-purpose backoff schedule for long-running
// retry loops (not used for the in-transaction single retry — see
// TransientConfig).
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        5,
		InitialInterval:    time.Second,
		MaxInterval:        time.Minute,
		BackoffCoefficient: 2.0,
		MaxElapsedTime:     time.Minute * 5,
	}
}

// TransientConfig retries exactly once, with a short fixed delay, matching
// spec §7's "TransientInternal is retried once inside the handler".
func TransientConfig() Config {
	return Config{
		MaxAttempts:        2,
		InitialInterval:    50 * time.Millisecond,
		MaxInterval:        50 * time.Millisecond,
		BackoffCoefficient: 1.0,
		MaxElapsedTime:     5 * time.Second,
	}
}

// Do executes fn, retrying on error per config.
func Do(ctx context.Context, config Config, logger *zap.Logger, fn func() error) error {
	var lastErr error
	interval := config.InitialInterval
	startTime := time.Now()

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(startTime) > config.MaxElapsedTime {
			return fmt.Errorf("max elapsed time exceeded: %w", lastErr)
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn("retry attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", config.MaxAttempts),
			zap.Error(err))

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * config.BackoffCoefficient)
		if interval > config.MaxInterval {
			interval = config.MaxInterval
		}
	}

	return fmt.Errorf("max attempts reached: %w", lastErr)
}

// DoWithResult is Do for functions that return a value alongside the error.
func DoWithResult[T any](ctx context.Context, config Config, logger *zap.Logger, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	interval := config.InitialInterval
	startTime := time.Now()

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if time.Since(startTime) > config.MaxElapsedTime {
			return result, fmt.Errorf("max elapsed time exceeded: %w", lastErr)
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		result = res

		lastErr = err
		logger.Warn("retry attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", config.MaxAttempts),
			zap.Error(err))

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * config.BackoffCoefficient)
		if interval > config.MaxInterval {
			interval = config.MaxInterval
		}
	}

	return result, fmt.Errorf("max attempts reached: %w", lastErr)
}
