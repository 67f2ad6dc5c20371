package delivery

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/scrypster/lifecache/internal/breaker"
	"github.com/scrypster/lifecache/pkg/types"
)

// ErrCircuitOpen is returned by a Breaker channel while its circuit is open.
var ErrCircuitOpen = breaker.ErrCircuitOpen

// Breaker guards a channel with a circuit breaker so a dead endpoint fails
// fast instead of stalling every tick.
type Breaker struct {
	next Channel
	cb   *breaker.CircuitBreaker
}

// NewBreaker wraps next. cfg.Name defaults to the channel name.
func NewBreaker(next Channel, cfg breaker.Config) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "delivery-" + next.Name()
	}
	return &Breaker{next: next, cb: breaker.New(cfg)}
}

// Name implements Channel.
func (b *Breaker) Name() string { return b.next.Name() }

// Deliver implements Channel.
func (b *Breaker) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	err := b.cb.Execute(ctx, func() error {
		return b.next.Deliver(ctx, rec, report)
	})
	return wrapError(b.Name(), rec, err)
}

// State reports the breaker state: closed, open or half-open.
func (b *Breaker) State() string { return b.cb.State() }

// RateLimited waits for a limiter token before each delivery.
type RateLimited struct {
	next    Channel
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of perSecond and burst.
func NewRateLimited(next Channel, perSecond float64, burst int) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Name implements Channel.
func (r *RateLimited) Name() string { return r.next.Name() }

// Deliver implements Channel.
func (r *RateLimited) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return wrapError(r.Name(), rec, fmt.Errorf("rate limit: %w", err))
	}
	return wrapError(r.Name(), rec, r.next.Deliver(ctx, rec, report))
}
