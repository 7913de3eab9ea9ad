package discovery

import (
	"context"

	"golang.org/x/time/rate"
)

// throttledProgress wraps onProgress so the cumulative byte count it
// reports never outruns limitBytesPerSecond, the way the enrichment
// client's own rate.Limiter paces its lookups. Acquiring one token per
// byte keeps the implementation a thin wrapper around the same
// primitive used throughout internal/ratelimit rather than a bespoke
// token-bucket.
func throttledProgress(ctx context.Context, limitBytesPerSecond int64, onProgress func(int64)) func(int64) {
	if limitBytesPerSecond <= 0 {
		return onProgress
	}

	limiter := rate.NewLimiter(rate.Limit(limitBytesPerSecond), int(limitBytesPerSecond))

	var last int64

	return func(written int64) {
		delta := written - last
		last = written

		for remaining := delta; remaining > 0; {
			n := clampBurst(remaining, limitBytesPerSecond)
			if err := limiter.WaitN(ctx, n); err != nil {
				break // a throttling wait error just means ctx was canceled; the caller's next I/O will see that too
			}

			remaining -= int64(n)
		}

		if onProgress != nil {
			onProgress(written)
		}
	}
}

// clampBurst keeps a single WaitN call within the limiter's burst size,
// since io.Copy's internal buffer can hand us a delta larger than a
// one-second allowance when downloads start from a warm connection.
func clampBurst(delta, burst int64) int {
	if delta > burst {
		return int(burst)
	}

	return int(delta)
}
