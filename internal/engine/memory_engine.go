// Package engine provides the MemoryEngine, which ties analysis, persistence
// and the delivery scheduler together for LifeCache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/lifecache/internal/analysis"
	"github.com/scrypster/lifecache/internal/book"
	"github.com/scrypster/lifecache/internal/scheduler"
	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/internal/transcribe"
	"github.com/scrypster/lifecache/pkg/types"
)

var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("engine not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")
)

// CreateRequest describes a text memory.
type CreateRequest struct {
	Owner      string
	Title      string
	Content    string
	Recipient  string
	Message    string
	DeliveryAt *time.Time
}

// AudioRequest describes an audio memory. The audio is transcribed before
// analysis; the analyzer never sees audio.
type AudioRequest struct {
	Owner      string
	Title      string
	Filename   string
	Audio      io.Reader
	Recipient  string
	Message    string
	DeliveryAt *time.Time
}

// Option configures a MemoryEngine.
type Option func(*MemoryEngine)

// WithTranscriber enables CreateFromAudio.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(e *MemoryEngine) { e.transcriber = t }
}

// WithSchedulerLoop makes Start run the scheduler's background ticker.
func WithSchedulerLoop(enabled bool) Option {
	return func(e *MemoryEngine) { e.runScheduler = enabled }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *MemoryEngine) { e.now = now }
}

// MemoryEngine is the core orchestrator for memory creation and delivery.
// Creation is synchronous: text is analyzed and the record stored with its
// report before CreateMemory returns.
type MemoryEngine struct {
	store       storage.RecordStore
	analyzer    *analysis.Analyzer
	scheduler   *scheduler.Scheduler
	transcriber transcribe.Transcriber
	now         func() time.Time

	runScheduler bool

	// State management
	started bool
	mu      sync.RWMutex

	// Callbacks
	onMemoryCreated func(rec *types.Record)
}

// NewMemoryEngine creates an engine over store, analyzer and sched.
func NewMemoryEngine(store storage.RecordStore, analyzer *analysis.Analyzer, sched *scheduler.Scheduler, opts ...Option) (*MemoryEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if sched == nil {
		return nil, fmt.Errorf("scheduler is required")
	}

	e := &MemoryEngine{
		store:     store,
		analyzer:  analyzer,
		scheduler: sched,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetOnMemoryCreated sets a callback fired after a memory is stored.
func (e *MemoryEngine) SetOnMemoryCreated(callback func(rec *types.Record)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMemoryCreated = callback
}

// Scheduler exposes the delivery scheduler for callback wiring.
func (e *MemoryEngine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

// TranscriptionEnabled reports whether audio memories are accepted.
func (e *MemoryEngine) TranscriptionEnabled() bool {
	return e.transcriber != nil
}

// Start marks the engine ready and, if configured, starts the scheduler loop.
func (e *MemoryEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	log.Println("engine: starting...")

	if e.runScheduler {
		if err := e.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	e.started = true
	log.Println("engine: started")
	return nil
}

// Shutdown stops the scheduler loop, waiting for an in-flight tick until ctx
// expires.
func (e *MemoryEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}

	log.Println("engine: shutting down...")

	if e.runScheduler {
		done := make(chan error, 1)
		go func() { done <- e.scheduler.Stop() }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, scheduler.ErrNotStarted) {
				log.Printf("engine: scheduler stop: %v", err)
			}
		case <-ctx.Done():
			e.started = false
			return fmt.Errorf("scheduler did not stop: %w", ctx.Err())
		}
	}

	e.started = false
	log.Println("engine: shut down")
	return nil
}

func (e *MemoryEngine) checkStarted() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.started {
		return ErrNotStarted
	}
	return nil
}

// CreateMemory analyzes req.Content and stores the record with its report.
// A record created with DeliveryAt starts pending.
func (e *MemoryEngine) CreateMemory(ctx context.Context, req CreateRequest) (*types.Record, error) {
	if err := e.checkStarted(); err != nil {
		return nil, err
	}
	return e.create(ctx, req, types.SourceText, "")
}

// CreateFromAudio transcribes req.Audio and stores the resulting memory.
// Transcription failures are returned as *transcribe.TranscriptionError.
func (e *MemoryEngine) CreateFromAudio(ctx context.Context, req AudioRequest) (*types.Record, error) {
	if err := e.checkStarted(); err != nil {
		return nil, err
	}
	if e.transcriber == nil {
		return nil, &transcribe.TranscriptionError{Filename: req.Filename, Err: transcribe.ErrTranscriptionUnavailable}
	}
	if req.Audio == nil {
		return nil, fmt.Errorf("%w: audio is required", storage.ErrInvalidInput)
	}

	text, err := e.transcriber.Transcribe(ctx, req.Filename, req.Audio)
	if err != nil {
		var te *transcribe.TranscriptionError
		if !errors.As(err, &te) {
			err = &transcribe.TranscriptionError{Filename: req.Filename, Err: err}
		}
		return nil, err
	}

	return e.create(ctx, CreateRequest{
		Owner:      req.Owner,
		Title:      req.Title,
		Content:    text,
		Recipient:  req.Recipient,
		Message:    req.Message,
		DeliveryAt: req.DeliveryAt,
	}, types.SourceAudio, req.Filename)
}

func (e *MemoryEngine) create(ctx context.Context, req CreateRequest, source types.Source, filename string) (*types.Record, error) {
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", storage.ErrInvalidInput)
	}

	report, err := e.analyzer.Analyze(req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze memory: %w", err)
	}

	createdAt := e.now().UTC()
	rec := &types.Record{
		ID:            uuid.NewString(),
		Owner:         owner,
		Title:         strings.TrimSpace(req.Title),
		Content:       req.Content,
		Source:        source,
		Filename:      filename,
		CreatedAt:     createdAt,
		Recipient:     strings.TrimSpace(req.Recipient),
		Message:       req.Message,
		DeliveryState: types.DeliveryUnscheduled,
		Report:        report,
	}

	if req.DeliveryAt != nil {
		if req.DeliveryAt.Before(createdAt) {
			return nil, fmt.Errorf("%w: delivery_at %s is before creation", storage.ErrInvalidInput, req.DeliveryAt.Format(time.RFC3339))
		}
		at := req.DeliveryAt.UTC()
		rec.DeliveryAt = &at
		rec.DeliveryState = types.DeliveryPending
	}

	if err := e.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	log.Printf("engine: created %s memory %s for %s (%s, %d sentences)",
		source, rec.ID, owner, report.DominantEmotion, report.SentenceCount)

	e.mu.RLock()
	cb := e.onMemoryCreated
	e.mu.RUnlock()
	if cb != nil {
		cb(rec.Clone())
	}
	return rec, nil
}

// ScheduleDelivery schedules an unscheduled memory for delivery at at.
func (e *MemoryEngine) ScheduleDelivery(ctx context.Context, id string, at time.Time) (*types.Record, error) {
	if err := e.checkStarted(); err != nil {
		return nil, err
	}
	if err := e.scheduler.Schedule(ctx, &types.Record{ID: id, DeliveryAt: &at}); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, id)
}

// Requeue returns a failed memory to pending.
func (e *MemoryEngine) Requeue(ctx context.Context, id string) (*types.Record, error) {
	if err := e.checkStarted(); err != nil {
		return nil, err
	}
	if err := e.scheduler.Requeue(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, id)
}

// TickNow runs one scheduler tick at the current time.
func (e *MemoryEngine) TickNow(ctx context.Context) (*scheduler.TickResult, error) {
	if err := e.checkStarted(); err != nil {
		return nil, err
	}
	return e.scheduler.Tick(ctx, e.now())
}

// Get retrieves a memory by ID.
func (e *MemoryEngine) Get(ctx context.Context, id string) (*types.Record, error) {
	return e.store.Get(ctx, id)
}

// List retrieves memories with pagination and filtering.
func (e *MemoryEngine) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Record], error) {
	return e.store.List(ctx, opts)
}

// Related returns up to limit memories of the same owner whose emotion
// profile is closest to the memory id.
func (e *MemoryEngine) Related(ctx context.Context, id string, limit int) ([]*types.Record, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Report == nil || limit <= 0 {
		return nil, nil
	}

	// One extra slot for the memory itself.
	candidates, err := e.similar(ctx, rec.Owner, rec.Report.EmotionScores, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to search by emotion: %w", err)
	}

	out := make([]*types.Record, 0, limit)
	for _, c := range candidates {
		if c.ID == id {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// similar ranks owner's analyzed memories by emotion profile, in the store
// when it indexes profiles.
func (e *MemoryEngine) similar(ctx context.Context, owner string, scores map[string]float64, limit int) ([]*types.Record, error) {
	if searcher, ok := e.store.(storage.EmotionSearcher); ok {
		return searcher.SimilarByEmotion(ctx, owner, scores, limit)
	}
	all, err := e.store.List(ctx, storage.ListOptions{Owner: owner, Limit: storage.NoLimit})
	if err != nil {
		return nil, err
	}
	pool := make([]*types.Record, 0, len(all.Items))
	for i := range all.Items {
		pool = append(pool, &all.Items[i])
	}
	return storage.RankByEmotion(pool, scores, limit), nil
}

// CompileBook gathers every memory of owner into a memory book.
func (e *MemoryEngine) CompileBook(ctx context.Context, owner, title string) (*book.Book, error) {
	result, err := e.store.List(ctx, storage.ListOptions{
		Owner:     owner,
		Limit:     storage.NoLimit,
		SortBy:    "created_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memories for %s: %w", owner, err)
	}

	records := make([]*types.Record, 0, len(result.Items))
	for i := range result.Items {
		records = append(records, &result.Items[i])
	}
	if title == "" {
		title = owner + "'s Memory Book"
	}
	return book.Compile(title, records, e.now())
}
