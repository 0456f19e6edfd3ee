package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// pacer spaces attempts with a token bucket. A nil pacer never waits.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(rps float64, burst int) *pacer {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
