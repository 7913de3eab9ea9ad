// Package ratelimit composes the four concurrency limiters spec.md §5
// requires: a per-provider token-bucket rate limiter, a per-provider
// concurrency semaphore, a global download semaphore, and an
// enrichment semaphore. All four share the same shape (acquire before
// an I/O call, release after), so they're built from two small
// primitives instead of one limiter per concern.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter composes a token-bucket rate limit with a concurrency cap,
// applied together around every provider API call per spec §5 (1) and
// (2). Acquire blocks until both the bucket has a token and a
// concurrency slot is free; Release frees the slot only (tokens refill
// on their own schedule).
type Limiter struct {
	bucket *rate.Limiter
	slots  chan struct{}
}

// NewLimiter builds a Limiter whose bucket refills at
// requestsPerMinute/60 tokens per second with burst equal to capacity,
// and whose concurrency cap is also capacity — matching spec §5's
// "burst-equal-to-capacity" rule.
func NewLimiter(requestsPerMinute int, capacity int) *Limiter {
	perSecond := rate.Limit(float64(requestsPerMinute) / 60)
	if requestsPerMinute <= 0 {
		perSecond = rate.Inf
	}

	return &Limiter{
		bucket: rate.NewLimiter(perSecond, capacity),
		slots:  make(chan struct{}, capacity),
	}
}

// Acquire blocks until a rate-limit token and a concurrency slot are
// both available, or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := l.bucket.Wait(ctx); err != nil {
		<-l.slots

		return err
	}

	return nil
}

// Release frees the concurrency slot acquired by Acquire. It must be
// called exactly once per successful Acquire, typically via defer.
func (l *Limiter) Release() {
	<-l.slots
}

// Semaphore is a bare concurrency cap with no rate component, used for
// the global download semaphore and the enrichment semaphore (spec §5
// (3) and (4), which apply no rate limit, only a capacity bound).
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore builds a Semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}
