// Package ratelimit provides the token bucket guarding outbound calls to
// the messaging platform.
package ratelimit

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Bucket is a token bucket with capacity c and refill rate r tokens/second,
// replenished continuously from wall-clock time. Safe for concurrent use.
type Bucket struct {
	limiter *rate.Limiter
}

// New creates a full bucket refilling at ratePerSec up to capacity.
func New(ratePerSec float64, capacity int) *Bucket {
	return &Bucket{limiter: rate.NewLimiter(rate.Limit(ratePerSec), capacity)}
}

// Consume blocks until n tokens are available, then debits them. It returns
// early only when ctx is done or n exceeds the bucket's capacity.
func (b *Bucket) Consume(ctx context.Context, n int) error {
	if err := b.limiter.WaitN(ctx, n); err != nil {
		return eris.Wrapf(err, "ratelimit: consume %d", n)
	}
	return nil
}

// Tokens reports the tokens currently available, for diagnostics.
func (b *Bucket) Tokens() float64 {
	return b.limiter.Tokens()
}
