package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is the cause of a GenerationFailure when the next request
// slot is further away than the wrapper is willing to wait.
var ErrRateLimited = errors.New("rate limit reached")

// maxRateWait bounds how long Generate waits for a slot before failing so
// dispatch can move to the next candidate.
const maxRateWait = time.Second

// RateLimited wraps an Adapter with a token bucket that allows at most rpm
// Generate calls per minute, with a full bucket at start. Identity and
// availability pass through.
type RateLimited struct {
	adapter Adapter
	limiter *rate.Limiter
}

// NewRateLimited wraps adapter. rpm <= 0 returns adapter unchanged.
func NewRateLimited(adapter Adapter, rpm int) Adapter {
	if rpm <= 0 {
		return adapter
	}
	return &RateLimited{
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (r *RateLimited) Identity() Identity {
	return r.adapter.Identity()
}

func (r *RateLimited) IsAvailable(ctx context.Context) bool {
	return r.adapter.IsAvailable(ctx)
}

// Probe forwards to the wrapped adapter when it can explain itself.
func (r *RateLimited) Probe(ctx context.Context) error {
	if p, ok := r.adapter.(Prober); ok {
		return p.Probe(ctx)
	}
	if !r.adapter.IsAvailable(ctx) {
		return errUnavailable
	}
	return nil
}

func (r *RateLimited) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	if err := r.reserve(ctx); err != nil {
		return nil, failure(r.adapter.Identity().ID, err)
	}
	return r.adapter.Generate(ctx, req)
}

// reserve takes a slot, waiting at most maxRateWait for it.
func (r *RateLimited) reserve(ctx context.Context) error {
	res := r.limiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return nil
	}
	if delay > maxRateWait {
		res.Cancel()
		return ErrRateLimited
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}
