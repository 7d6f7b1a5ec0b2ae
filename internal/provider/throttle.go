package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled limits how often the wrapped Generator is called, across all
// users of the process.
type Throttled struct {
	next    Generator
	limiter *rate.Limiter
}

// NewThrottled allows rps calls per second with the given burst.
func NewThrottled(next Generator, rps float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for a token and then calls the wrapped Generator. If no
// token becomes available before ctx is done, it returns ErrThrottled.
func (t *Throttled) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("Throttled.Generate: %w: %v", ErrThrottled, err)
	}
	return t.next.Generate(ctx, p)
}
