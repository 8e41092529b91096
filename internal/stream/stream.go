// Package stream provides the fixed-interval emission used by the demo
// streaming endpoints.
package stream

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Emit produces each element of values in order, delaying interval before
// every element (the first included). The returned channel is closed after
// the last element; that close is the completion signal. On cancellation
// emission stops immediately and the channel is left open — consumers must
// also select on their context. Each invocation is an independent timeline.
func Emit[T any](ctx context.Context, values []T, interval time.Duration, logger *zap.Logger) <-chan T {
	out := make(chan T)

	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for i, v := range values {
			if i > 0 {
				timer.Reset(interval)
			}
			select {
			case <-ctx.Done():
				logger.Debug("emission cancelled",
					zap.Int("emitted", i),
					zap.Int("total", len(values)),
				)
				return
			case <-timer.C:
			}

			select {
			case out <- v:
				logger.Debug("emitted element",
					zap.Int("index", i),
					zap.Any("value", v),
				)
			case <-ctx.Done():
				logger.Debug("emission cancelled",
					zap.Int("emitted", i),
					zap.Int("total", len(values)),
				)
				return
			}
		}

		logger.Debug("emission complete", zap.Int("count", len(values)))
		close(out)
	}()

	return out
}

// Ints returns the sequence 1..n, the payload of the demo endpoints.
func Ints(n int) []int {
	values := make([]int, n)
	for i := range values {
		values[i] = i + 1
	}
	return values
}
