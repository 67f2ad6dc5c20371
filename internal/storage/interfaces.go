// Package storage defines the persistence contract for memory records.
//
// The store is the single shared mutable resource of the pipeline. Every state
// mutation goes through Update, which is a compare-and-set on the stored
// delivery state, so the scheduler and operator actions can interleave safely.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/lifecache/pkg/types"
)

// RecordStore provides persistence for memory records and their delivery state.
type RecordStore interface {
	// Save inserts a new record.
	// Returns ErrInvalidInput if required fields are missing and
	// ErrAlreadyExists if a record with the same ID is stored.
	Save(ctx context.Context, rec *types.Record) error

	// Get retrieves a record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id string) (*types.Record, error)

	// QueryDue returns every pending record whose delivery date is at or
	// before now, ordered by delivery date then ID.
	QueryDue(ctx context.Context, now time.Time) ([]*types.Record, error)

	// Update persists the delivery fields of rec if, and only if, the stored
	// delivery state equals expected. On success the stored version is bumped
	// and rec.Version is updated to match.
	// Content, owner and creation time are never rewritten; the report is
	// attached only when none is stored yet.
	// Returns ErrNotFound if the record doesn't exist and ErrStaleState when
	// the stored state no longer matches expected.
	Update(ctx context.Context, rec *types.Record, expected types.DeliveryState) error

	// List retrieves records with pagination and filtering.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Record], error)

	// Close releases any resources held by the store.
	Close() error
}

// EmotionSearcher is implemented by stores that index emotional profiles.
type EmotionSearcher interface {
	// SimilarByEmotion returns up to limit records of owner whose emotion
	// profile is nearest to scores, closest first. An empty owner searches
	// every owner.
	SimilarByEmotion(ctx context.Context, owner string, scores map[string]float64, limit int) ([]*types.Record, error)
}
