// Package retry runs fallible operations a bounded number of times.
package retry

import (
	"context"
	"log/slog"
)

// DefaultAttempts is used for device interaction unless configured otherwise.
const DefaultAttempts = 3

// Do calls fn until it succeeds or attempts calls have failed, and returns
// the last error in the latter case. attempts <= 0 is treated as 1.
// There is no delay between attempts. A done ctx stops further attempts.
func Do[T any](ctx context.Context, attempts int, log *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if log == nil {
		log = slog.Default()
	}

	remaining := attempts
	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		log.Warn("attempt failed", "err", err)
		remaining--
		if remaining == 0 {
			log.Warn("retry limit reached", "attempts", attempts)
			return result, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		log.Warn("retrying", "remaining", remaining)
	}
}

// Func is Do for operations without a result.
func Func(ctx context.Context, attempts int, log *slog.Logger, fn func(context.Context) error) error {
	_, err := Do(ctx, attempts, log, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
