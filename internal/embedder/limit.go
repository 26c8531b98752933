package embedder

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds requests to a provider across all workers: a token bucket caps
// the request rate and a semaphore caps requests in flight. A nil *Limiter does
// not limit.
type Limiter struct {
	rate *rate.Limiter
	sem  *semaphore.Weighted
}

// NewLimiter creates a limiter. requestsPerSecond <= 0 disables rate limiting and
// maxConcurrent <= 0 disables the in-flight bound.
func NewLimiter(requestsPerSecond float64, burst int, maxConcurrent int) *Limiter {
	l := &Limiter{}
	if requestsPerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		l.rate = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	if maxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return l
}

// Acquire blocks until a request may be sent. The returned func must be called
// when the request completes.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil {
		return func() {}, nil
	}

	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	if l.rate != nil {
		if err := l.rate.Wait(ctx); err != nil {
			if l.sem != nil {
				l.sem.Release(1)
			}
			return nil, err
		}
	}

	return func() {
		if l.sem != nil {
			l.sem.Release(1)
		}
	}, nil
}
