package retry

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// DefaultMaxAttempts is the overall attempt budget when the caller has no
// stronger opinion. Per-category ceilings below can lower it further.
const DefaultMaxAttempts = 3

const (
	networkBaseDelay = time.Second
	networkMaxDelay  = 30 * time.Second
	contractDelay    = 5 * time.Second
	cacheDelay       = time.Second
	genericBaseDelay = 2 * time.Second
	genericFactor    = 1.5
	genericMaxDelay  = 15 * time.Second
)

// attemptCeilings bounds attempts per category regardless of the caller's
// budget. Validation gets exactly one attempt: malformed data does not
// self-correct.
var attemptCeilings = map[Category]int{
	CategoryNetwork:    3,
	CategoryContract:   2,
	CategoryCache:      5,
	CategoryValidation: 1,
	CategoryUnknown:    2,
}

// Delay computes the backoff before the next attempt. attempt is 1-based:
// the number of the attempt that just failed.
func Delay(cat Category, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch cat {
	case CategoryNetwork:
		shift := attempt - 1
		if shift > 5 {
			shift = 5 // 1s<<5 = 32s, already past the cap
		}
		return capDelay(networkBaseDelay<<shift, networkMaxDelay)
	case CategoryContract:
		return contractDelay
	case CategoryCache:
		return cacheDelay
	default:
		d := time.Duration(float64(genericBaseDelay) * math.Pow(genericFactor, float64(attempt-1)))
		return capDelay(d, genericMaxDelay)
	}
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

// ShouldRetry reports whether another attempt is allowed for this
// category after `attempt` attempts have already failed.
func ShouldRetry(cat Category, attempt int) bool {
	if !profiles[cat].retryable {
		return false
	}
	ceiling, ok := attemptCeilings[cat]
	if !ok {
		ceiling = DefaultMaxAttempts
	}
	return attempt < ceiling
}

// Do runs op up to maxAttempts times, classifying each failure and
// backing off between attempts. When retries are exhausted it returns
// the original cause, not the classification wrapper, so callers that
// need the category re-classify.
func Do[T any](ctx context.Context, maxAttempts int, op func(context.Context) (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		classified := Classify(err)
		if attempt >= maxAttempts || !ShouldRetry(classified.Category, attempt) {
			return zero, classified.Cause
		}

		delay := Delay(classified.Category, attempt)
		slog.Warn("[Retry] Operation failed, backing off",
			"category", classified.Category,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// sleep waits for d, aborting early when the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
