package ops

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rshade/bulkops/internal/bulk"
)

// WithTimeout bounds every invocation of op. A non-positive d returns op unchanged.
func WithTimeout[T, R any](op bulk.Operation[T, R], d time.Duration) bulk.Operation[T, R] {
	if d <= 0 {
		return op
	}
	return func(ctx context.Context, item T) (R, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return op(ctx, item)
	}
}

// WithRateLimit waits on limiter before every invocation of op. A nil limiter
// returns op unchanged. A wait cut short by ctx fails the item.
func WithRateLimit[T, R any](op bulk.Operation[T, R], limiter *rate.Limiter) bulk.Operation[T, R] {
	if limiter == nil {
		return op
	}
	return func(ctx context.Context, item T) (R, error) {
		if err := limiter.Wait(ctx); err != nil {
			var zero R
			return zero, err
		}
		return op(ctx, item)
	}
}

// NewLimiter returns a limiter allowing perSecond invocations per second with
// a burst of one, or nil when perSecond is not positive.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// WithLogging logs each invocation of op. labelOf names the item in log lines.
func WithLogging[T, R any](op bulk.Operation[T, R], logger zerolog.Logger, labelOf func(T) string) bulk.Operation[T, R] {
	return func(ctx context.Context, item T) (R, error) {
		label := ""
		if labelOf != nil {
			label = labelOf(item)
		}

		start := time.Now()
		value, err := op(ctx, item)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn().Ctx(ctx).Str("item", label).Dur("duration", elapsed).Err(err).Msg("item failed")
		} else {
			logger.Debug().Ctx(ctx).Str("item", label).Dur("duration", elapsed).Msg("item succeeded")
		}
		return value, err
	}
}
