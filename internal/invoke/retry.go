package invoke

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retrier wraps an Invoker with bounded retry on transient failure. This
// budget covers capability flakiness only; it is separate from, and never
// combined with, corrective-loop retries.
type Retrier struct {
	Inner Invoker
	// Attempts is the total number of tries. Defaults to 3.
	Attempts int
	// Delay is the fixed pause between tries. Defaults to 2s.
	Delay time.Duration
	Log   *zap.Logger
}

func (r *Retrier) Invoke(ctx context.Context, req Request) (string, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := r.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := r.Inner.Invoke(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err

		// A canceled parent context is not transient.
		if ctx.Err() != nil {
			return "", lastErr
		}
		if attempt == attempts {
			break
		}

		log.Warn("capability invocation failed, retrying",
			zap.String("role", req.Role),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", lastErr
		}
	}
	return "", fmt.Errorf("invoke: role %q failed after %d attempts: %w", req.Role, attempts, lastErr)
}
