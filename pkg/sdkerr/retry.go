package sdkerr

import (
	"context"
	"errors"
	"time"
)

// Do runs op, retrying per the error's recovery guidance. maxRetries caps the
// number of retries after the first attempt; a negative value defers to the
// error's own MaxRetries. Returns the result, the number of retries consumed,
// and the last error. This is the sole retry loop in the SDK.
func Do[T any](ctx context.Context, maxRetries int, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	attempt := 0
	for {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, attempt - 1, nil
		}

		var sdkErr *Error
		if !errors.As(err, &sdkErr) {
			return zero, attempt - 1, err
		}
		if !sdkErr.IsRetriable() {
			return zero, attempt - 1, err
		}

		limit := maxRetries
		if limit < 0 {
			n, ok := sdkErr.MaxRetries()
			if !ok {
				return zero, attempt - 1, err
			}
			limit = n
		}
		if attempt > limit {
			return zero, attempt - 1, err
		}

		delay, ok := sdkErr.RetryDelay(attempt)
		if !ok {
			return zero, attempt - 1, err
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, attempt - 1, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Wrap(KindTransport, ctx.Err(), "retry cancelled")
	case <-timer.C:
		return nil
	}
}
