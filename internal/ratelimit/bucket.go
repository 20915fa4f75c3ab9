// Package ratelimit wraps golang.org/x/time/rate as the token-bucket gate
// in front of the remote chat API client.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Bucket gates outbound requests to a fixed rate with burst capacity.
type Bucket struct {
	limiter *rate.Limiter
}

// New creates a Bucket that allows ratePerMinute requests per minute,
// bursting up to burst requests at once.
func New(ratePerMinute float64, burst int) *Bucket {
	if burst <= 0 {
		burst = 1
	}
	return &Bucket{limiter: rate.NewLimiter(rate.Limit(ratePerMinute/60.0), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}
