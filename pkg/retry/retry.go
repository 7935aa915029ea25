package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slurmview/slurmview/pkg/cluster"
	"github.com/slurmview/slurmview/pkg/models"
)

// Config holds retry configuration
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (exponential)
}

// DefaultConfig returns sensible defaults for retries
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// FromConnectionConfig builds a retry budget from the per-connection
// settings. The session itself never loops on these; the caller driving a
// reconnect does, so the loop stays interruptible through ctx.
func FromConnectionConfig(c models.ConnectionConfig) Config {
	cfg := DefaultConfig()
	if c.RetryAttempts > 0 {
		cfg.MaxRetries = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		cfg.InitialBackoff = c.RetryDelay
	}
	return cfg
}

// Do executes fn with exponential backoff retries
func Do(ctx context.Context, config Config, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err

		// Don't sleep after last attempt
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// IsRetryable reports whether an error is worth another attempt. Rejected
// credentials and caller errors are not; network hiccups are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, cluster.ErrAuthFailed) || errors.Is(err, cluster.ErrNotConnected) {
		return false
	}
	return true
}
