// Package retry provides exponential backoff for transient failures, used
// where the process talks to infrastructure that may not be up yet.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/character-hunt/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns the standard backoff: 1s, 2s, 4s, 8s, 16s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// WithBackoff runs fn until it succeeds, attempts run out, or the context is
// cancelled. Returns the last error on failure.
func WithBackoff(ctx context.Context, cfg *Config, logger *logging.Logger, op string, fn Func) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"operation": op,
					"attempts":  attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		logger.WithError(err).WithFields(map[string]interface{}{
			"operation": op,
			"attempt":   attempt,
			"delay":     delay.String(),
		}).Warn("operation failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func backoffDelay(cfg *Config, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
