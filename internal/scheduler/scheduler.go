// Package scheduler delivers pending records whose delivery date has passed.
//
// A record moves unscheduled -> pending -> delivered|failed, and failed ->
// pending only through an explicit Requeue. Every transition is a
// compare-and-set against the record store, so Tick, Schedule and Requeue may
// run concurrently (even from several processes) without delivering a
// record twice from a single state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/lifecache/internal/delivery"
	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/pkg/types"
)

// DefaultTickInterval is how often the background loop polls for due records.
const DefaultTickInterval = time.Minute

var (
	// ErrInvalidTransition is returned when an operation does not apply to
	// the record's current delivery state.
	ErrInvalidTransition = errors.New("invalid delivery transition")

	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrNotStarted is returned by Stop on a scheduler that is not running.
	ErrNotStarted = errors.New("scheduler not started")
)

// Config controls the scheduler.
type Config struct {
	// TickInterval between background ticks. Default: 1 minute.
	TickInterval time.Duration

	// Clock supplies wall time for DeliveredAt and background ticks.
	// Default: time.Now.
	Clock func() time.Time
}

// FailedDelivery pairs a record ID with the error that failed it.
type FailedDelivery struct {
	ID  string
	Err error
}

// TickResult summarizes one Tick.
type TickResult struct {
	Delivered []string
	Failed    []FailedDelivery
	Skipped   []string
	StartedAt time.Time
	Duration  time.Duration
}

// Scheduler drives due records through a delivery channel.
type Scheduler struct {
	store   storage.RecordStore
	channel delivery.Channel
	config  Config

	// tickMu serializes Tick; overlapping callers wait.
	tickMu sync.Mutex

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	onDelivered      func(*types.Record)
	onDeliveryFailed func(*types.Record, error)
}

// New creates a scheduler over store that delivers through ch.
func New(store storage.RecordStore, ch delivery.Channel, cfg Config) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if ch == nil {
		return nil, fmt.Errorf("delivery channel is required")
	}
	if cfg.TickInterval < 0 {
		return nil, fmt.Errorf("tick interval must not be negative")
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Scheduler{store: store, channel: ch, config: cfg}, nil
}

// SetOnDelivered sets a callback fired after a record is marked delivered.
func (s *Scheduler) SetOnDelivered(callback func(*types.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelivered = callback
}

// SetOnDeliveryFailed sets a callback fired after a record is marked failed.
func (s *Scheduler) SetOnDeliveryFailed(callback func(*types.Record, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeliveryFailed = callback
}

// Schedule moves an unscheduled record to pending with rec.DeliveryAt.
// Scheduling a record that is already pending is a no-op; delivered and
// failed records return ErrInvalidTransition.
func (s *Scheduler) Schedule(ctx context.Context, rec *types.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}
	if !rec.IsScheduled() {
		return fmt.Errorf("%w: delivery_at is required to schedule %s", storage.ErrInvalidInput, rec.ID)
	}

	stored, err := s.store.Get(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", rec.ID, err)
	}

	switch stored.DeliveryState {
	case types.DeliveryPending:
		return nil
	case types.DeliveryUnscheduled:
	default:
		return fmt.Errorf("%w: cannot schedule %s record %s", ErrInvalidTransition, stored.DeliveryState, rec.ID)
	}

	if rec.DeliveryAt.Before(stored.CreatedAt) {
		return fmt.Errorf("%w: delivery_at precedes creation of %s", storage.ErrInvalidInput, rec.ID)
	}

	next := stored.Clone()
	at := rec.DeliveryAt.UTC()
	next.DeliveryAt = &at
	next.DeliveryState = types.DeliveryPending

	if err := s.store.Update(ctx, next, types.DeliveryUnscheduled); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", rec.ID, err)
	}

	rec.DeliveryAt = next.DeliveryAt
	rec.DeliveryState = next.DeliveryState
	rec.Version = next.Version
	log.Printf("scheduler: scheduled %s for %s", rec.ID, at.Format(time.RFC3339))
	return nil
}

// Requeue moves a failed record back to pending so the next tick retries it.
func (s *Scheduler) Requeue(ctx context.Context, id string) error {
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", id, err)
	}
	if stored.DeliveryState != types.DeliveryFailed {
		return fmt.Errorf("%w: cannot requeue %s record %s", ErrInvalidTransition, stored.DeliveryState, id)
	}

	next := stored.Clone()
	next.DeliveryState = types.DeliveryPending
	next.DeliveryError = ""
	next.DeliveredAt = nil

	if err := s.store.Update(ctx, next, types.DeliveryFailed); err != nil {
		return fmt.Errorf("failed to requeue %s: %w", id, err)
	}
	log.Printf("scheduler: requeued %s after %d attempt(s)", id, next.DeliveryAttempts)
	return nil
}

// Tick delivers every record that is pending and due at now.
//
// Records are processed in ascending delivery date then ID. Each record is
// re-read before delivery and skipped if another actor already moved it.
// Per-record failures are collected in the result; only a failing due query
// returns an error.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	result := &TickResult{StartedAt: s.config.Clock()}
	defer func() { result.Duration = s.config.Clock().Sub(result.StartedAt) }()

	due, err := s.store.QueryDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due records: %w", err)
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.DeliveryAt.Equal(*b.DeliveryAt) {
			return a.DeliveryAt.Before(*b.DeliveryAt)
		}
		return a.ID < b.ID
	})

	for _, rec := range due {
		if ctx.Err() != nil {
			log.Printf("scheduler: tick cancelled with %d record(s) left", len(due)-len(result.Delivered)-len(result.Failed)-len(result.Skipped))
			break
		}
		s.deliver(ctx, rec.ID, now, result)
	}

	if len(due) > 0 {
		log.Printf("scheduler: tick delivered=%d failed=%d skipped=%d",
			len(result.Delivered), len(result.Failed), len(result.Skipped))
	}
	return result, nil
}

func (s *Scheduler) deliver(ctx context.Context, id string, now time.Time, result *TickResult) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			result.Skipped = append(result.Skipped, id)
			return
		}
		log.Printf("scheduler: failed to reload %s: %v", id, err)
		result.Failed = append(result.Failed, FailedDelivery{ID: id, Err: err})
		return
	}
	if !current.IsDue(now) {
		result.Skipped = append(result.Skipped, id)
		return
	}

	deliveryErr := s.channel.Deliver(ctx, current.Clone(), current.Report.Clone())

	next := current.Clone()
	next.DeliveryAttempts++
	if deliveryErr == nil {
		deliveredAt := s.config.Clock().UTC()
		next.DeliveryState = types.DeliveryDelivered
		next.DeliveredAt = &deliveredAt
		next.DeliveryError = ""
	} else {
		var de *delivery.DeliveryError
		if !errors.As(deliveryErr, &de) {
			deliveryErr = &delivery.DeliveryError{Channel: s.channel.Name(), RecordID: id, Err: deliveryErr}
		}
		next.DeliveryState = types.DeliveryFailed
		next.DeliveryError = deliveryErr.Error()
	}

	// The outcome must be recorded even if the caller gives up mid-delivery.
	if err := s.store.Update(context.WithoutCancel(ctx), next, types.DeliveryPending); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			log.Printf("scheduler: %s already handled, skipping", id)
			result.Skipped = append(result.Skipped, id)
			return
		}
		log.Printf("scheduler: failed to record outcome for %s: %v", id, err)
		result.Failed = append(result.Failed, FailedDelivery{ID: id, Err: err})
		return
	}

	s.mu.RLock()
	onDelivered, onFailed := s.onDelivered, s.onDeliveryFailed
	s.mu.RUnlock()

	if deliveryErr != nil {
		log.Printf("scheduler: delivery of %s failed: %v", id, deliveryErr)
		result.Failed = append(result.Failed, FailedDelivery{ID: id, Err: deliveryErr})
		if onFailed != nil {
			onFailed(next, deliveryErr)
		}
		return
	}

	result.Delivered = append(result.Delivered, id)
	if onDelivered != nil {
		onDelivered(next)
	}
}

// Start runs Tick immediately and then every TickInterval until Stop is
// called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)

	log.Printf("scheduler: started with interval %s via %s", s.config.TickInterval, s.channel.Name())
	return nil
}

// Stop cancels the background loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	log.Println("scheduler: stopped")
	return nil
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		s.runTick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runTick detaches from loop cancellation so Stop lets the batch finish.
func (s *Scheduler) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Tick(context.WithoutCancel(ctx), s.config.Clock()); err != nil {
		log.Printf("scheduler: tick failed: %v", err)
	}
}
