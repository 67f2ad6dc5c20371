package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/lifecache/pkg/types"
)

func TestListOptionsNormalize(t *testing.T) {
	opts := ListOptions{SortBy: "content; DROP TABLE records", SortOrder: "sideways", Limit: 500}
	opts.Normalize()

	assert.Equal(t, "created_at", opts.SortBy)
	assert.Equal(t, "desc", opts.SortOrder)
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, 100, opts.Limit)
	assert.Equal(t, 0, opts.Offset())

	opts = ListOptions{Page: 3, Limit: 20}
	opts.Normalize()
	assert.Equal(t, 40, opts.Offset())

	opts = ListOptions{Page: 4, Limit: NoLimit}
	opts.Normalize()
	assert.Equal(t, NoLimit, opts.Limit)
	assert.Equal(t, 0, opts.Offset())
}

func TestValidateRecord(t *testing.T) {
	now := time.Now()
	valid := &types.Record{
		ID: "r1", Owner: "ann", Content: "hello", CreatedAt: now,
		DeliveryState: types.DeliveryUnscheduled,
	}
	assert.NoError(t, ValidateRecord(valid))

	assert.ErrorIs(t, ValidateRecord(nil), ErrInvalidInput)

	missingOwner := valid.Clone()
	missingOwner.Owner = ""
	assert.ErrorIs(t, ValidateRecord(missingOwner), ErrInvalidInput)

	pendingWithoutDate := valid.Clone()
	pendingWithoutDate.DeliveryState = types.DeliveryPending
	assert.ErrorIs(t, ValidateRecord(pendingWithoutDate), ErrInvalidInput)

	badState := valid.Clone()
	badState.DeliveryState = "shipping"
	assert.ErrorIs(t, ValidateRecord(badState), ErrInvalidInput)
}

func TestStaleStateErrorMatchesSentinel(t *testing.T) {
	var err error = &StaleStateError{ID: "r1", Expected: types.DeliveryPending, Actual: types.DeliveryDelivered}
	assert.True(t, errors.Is(err, ErrStaleState))
	assert.Contains(t, err.Error(), "found delivered")

	var stale *StaleStateError
	assert.True(t, errors.As(err, &stale))
	assert.Equal(t, types.DeliveryDelivered, stale.Actual)
}
