package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/lifecache/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists indicates that a record with the same ID is already stored.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrStaleState indicates that a compare-and-set update lost a race: the
	// stored delivery state no longer matches the expected one.
	ErrStaleState = errors.New("stale delivery state")
)

// StaleStateError carries the states involved in a failed compare-and-set.
// It matches ErrStaleState with errors.Is.
type StaleStateError struct {
	ID       string
	Expected types.DeliveryState
	Actual   types.DeliveryState
}

func (e *StaleStateError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("stale delivery state for %s: expected %s", e.ID, e.Expected)
	}
	return fmt.Sprintf("stale delivery state for %s: expected %s, found %s", e.ID, e.Expected, e.Actual)
}

// Is reports whether target is ErrStaleState.
func (e *StaleStateError) Is(target error) bool {
	return target == ErrStaleState
}

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination and filtering options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 10, max: 100).
	// Memory books use NoLimit to read every record of an owner.
	Limit int

	// SortBy specifies the field to sort by (created_at, delivery_at, id).
	SortBy string

	// SortOrder specifies the sort direction ("asc" or "desc", default: "desc").
	SortOrder string

	// Owner filters by submitting user. Empty string means no filter.
	Owner string

	// DeliveryState filters by delivery state. Empty means no filter.
	DeliveryState types.DeliveryState

	// CreatedAfter filters to records created strictly after this time.
	// Zero value means no lower bound.
	CreatedAfter time.Time

	// CreatedBefore filters to records created strictly before this time.
	// Zero value means no upper bound.
	CreatedBefore time.Time
}

// NoLimit disables the page size cap in ListOptions.
const NoLimit = -1

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	// Whitelist validation for SortBy to prevent SQL injection
	allowedSortFields := map[string]bool{
		"created_at":  true,
		"delivery_at": true,
		"id":          true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "created_at"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}

	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit == NoLimit {
		o.Page = 1
		return
	}

	if o.Limit < 1 {
		o.Limit = 10
	}

	if o.Limit > 100 {
		o.Limit = 100
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	if o.Limit == NoLimit {
		return 0
	}
	return (o.Page - 1) * o.Limit
}

// ValidateRecord checks the fields every store requires on insert.
func ValidateRecord(rec *types.Record) error {
	if rec == nil {
		return ErrInvalidInput
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", ErrInvalidInput)
	}
	if rec.Owner == "" {
		return fmt.Errorf("%w: record owner is required", ErrInvalidInput)
	}
	if rec.Content == "" {
		return fmt.Errorf("%w: record content is required", ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		return fmt.Errorf("%w: record created_at is required", ErrInvalidInput)
	}
	return ValidateDeliveryFields(rec)
}

// ValidateDeliveryFields checks the delivery state invariants of rec.
func ValidateDeliveryFields(rec *types.Record) error {
	if !types.IsValidDeliveryState(rec.DeliveryState) {
		return fmt.Errorf("%w: unknown delivery state %q", ErrInvalidInput, rec.DeliveryState)
	}
	if !rec.IsScheduled() && rec.DeliveryState != types.DeliveryUnscheduled {
		return fmt.Errorf("%w: delivery state %s requires delivery_at", ErrInvalidInput, rec.DeliveryState)
	}
	return nil
}
