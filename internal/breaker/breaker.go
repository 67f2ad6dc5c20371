// Package breaker wraps gobreaker for the outbound calls LifeCache makes:
// delivery channels and online transcription.
package breaker

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the wrapped function while the
// circuit is open or its half-open trial slots are taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config tunes a CircuitBreaker. Zero fields take the defaults noted.
type Config struct {
	Name                 string        // log label (default: "breaker")
	MaxFailures          uint32        // consecutive failures that open the circuit (default: 3)
	Timeout              time.Duration // open period before a trial call (default: 30s)
	HalfOpenMaxSuccesses uint32        // trial successes that close it again (default: 1)
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "breaker"
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxSuccesses == 0 {
		c.HalfOpenMaxSuccesses = 1
	}
	return c
}

// Metrics counts calls through a breaker. Totals cover its whole life; the
// consecutive counters reset whenever the circuit changes state.
type Metrics struct {
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker stops calling a failing dependency for a while.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker

	successes atomic.Uint64
	failures  atomic.Uint64
}

// New creates a circuit breaker.
func New(cfg Config) *CircuitBreaker {
	cfg = cfg.withDefaults()
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.HalfOpenMaxSuccesses,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.MaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("breaker: %s %s -> %s", name, from, to)
			},
		}),
	}
}

// Execute calls fn unless the circuit is open or ctx is already done. A
// rejected call counts as a failure in Metrics.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		b.failures.Add(1)
		return err
	}

	_, err := b.cb.Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fn()
	})
	switch {
	case err == nil:
		b.successes.Add(1)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.failures.Add(1)
		return ErrCircuitOpen
	default:
		b.failures.Add(1)
		return err
	}
}

// State is "closed", "open" or "half-open".
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

// Metrics returns the current counters.
func (b *CircuitBreaker) Metrics() Metrics {
	s, f := b.successes.Load(), b.failures.Load()
	counts := b.cb.Counts()
	return Metrics{
		TotalRequests:        s + f,
		TotalSuccesses:       s,
		TotalFailures:        f,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
