package retryutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/hotgluexyz/target-actionkit/actionkit"
)

const defaultMaxAttempts = 3

// Do runs fn, resubmitting on retriable API errors with an escalating
// delay. Fatal, precondition, and authentication errors surface on the
// first occurrence.
func Do(ctx context.Context, logger *slog.Logger, name string, maxAttempts int, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !actionkit.IsRetriable(lastErr) || attempt >= maxAttempts {
			return lastErr
		}
		wait := backoffDelay(attempt)
		if logger != nil {
			logger.Warn(name+"_retry_scheduled", "attempt", attempt, "delay", wait.String(), "error", lastErr.Error())
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 300 * time.Millisecond
	case 2:
		return 1 * time.Second
	default:
		return 2 * time.Second
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
