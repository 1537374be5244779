// Package ratelimit throttles calls to public APIs with golang.org/x/time/rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fd1az/savvy-farm/internal/apperror"
)

// Limiter is a token bucket sized from a per-minute quota.
type Limiter struct {
	bucket *rate.Limiter
	name   string
}

// New creates a limiter allowing requestsPerMinute calls with a burst of a
// tenth of the quota. Zero or negative disables limiting.
func New(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, 1), name: name}
	}

	burst := max(requestsPerMinute/10, 1)
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst),
		name:   name,
	}
}

// Wait blocks until a call is allowed. When ctx ends first, or its deadline
// comes before the next token, it returns a RATE_LIMIT_EXCEEDED error.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithContext(l.name),
			apperror.WithCause(err),
		)
	}
	return nil
}

// Allow reports whether a call may happen now, consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// Burst returns the bucket size.
func (l *Limiter) Burst() int {
	return l.bucket.Burst()
}
