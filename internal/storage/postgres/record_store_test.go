package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/lifecache/internal/storage"
	"github.com/scrypster/lifecache/internal/storage/postgres"
	"github.com/scrypster/lifecache/pkg/types"
)

var categories = []string{"joy", "sorrow", "love"}

// postgresTestDSN returns the DSN for the test database.
// If POSTGRES_TEST_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh RecordStore on an empty records table.
func newTestStore(t *testing.T) *postgres.RecordStore {
	t.Helper()

	store, err := postgres.NewRecordStore(postgresTestDSN(t), categories)
	require.NoError(t, err, "NewRecordStore should succeed")
	require.NoError(t, store.TruncateForTest(context.Background()), "truncate records")

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func newTestRecord(id string, deliveryAt *time.Time) *types.Record {
	rec := &types.Record{
		ID:            id,
		Owner:         "ann",
		Content:       "Test memory content for " + id,
		Source:        types.SourceText,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		DeliveryState: types.DeliveryUnscheduled,
		Report: &types.AnalysisReport{
			EmotionScores:   map[string]float64{"joy": 1},
			DominantEmotion: "joy",
		},
	}
	if deliveryAt != nil {
		rec.DeliveryAt = deliveryAt
		rec.DeliveryState = types.DeliveryPending
	}
	return rec
}

func TestNewRecordStore_RequiresCategories(t *testing.T) {
	_, err := postgres.NewRecordStore("postgres://unused", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSaveGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	rec := newTestRecord("r1", &due)
	require.NoError(t, store.Save(ctx, rec))
	assert.ErrorIs(t, store.Save(ctx, newTestRecord("r1", nil)), storage.ErrAlreadyExists)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec.Content, got.Content)
	assert.Equal(t, types.DeliveryPending, got.DeliveryState)
	require.NotNil(t, got.DeliveryAt)
	assert.True(t, got.DeliveryAt.Equal(due))
	require.NotNil(t, got.Report)
	assert.Equal(t, "joy", got.Report.DominantEmotion)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestQueryDueAndCompareAndSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	require.NoError(t, store.Save(ctx, newTestRecord("b", &past)))
	require.NoError(t, store.Save(ctx, newTestRecord("a", &past)))
	require.NoError(t, store.Save(ctx, newTestRecord("later", &future)))
	require.NoError(t, store.Save(ctx, newTestRecord("never", nil)))

	due, err := store.QueryDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].ID)
	assert.Equal(t, "b", due[1].ID)

	rec := due[0]
	rec.DeliveryState = types.DeliveryDelivered
	rec.DeliveryAttempts = 1
	require.NoError(t, store.Update(ctx, rec, types.DeliveryPending))
	assert.Equal(t, int64(2), rec.Version)

	stale := newTestRecord("a", &past)
	stale.DeliveryState = types.DeliveryFailed
	assert.ErrorIs(t, store.Update(ctx, stale, types.DeliveryPending), storage.ErrStaleState)

	due, err = store.QueryDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "b", due[0].ID)
}

func TestListAndSimilarByEmotion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sad := newTestRecord("sad", nil)
	sad.Report = &types.AnalysisReport{EmotionScores: map[string]float64{"sorrow": 1}, DominantEmotion: "sorrow"}
	require.NoError(t, store.Save(ctx, sad))
	require.NoError(t, store.Save(ctx, newTestRecord("happy", nil)))

	page, err := store.List(ctx, storage.ListOptions{Owner: "ann"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	bob := newTestRecord("bob-happy", nil)
	bob.Owner = "bob"
	require.NoError(t, store.Save(ctx, bob))

	similar, err := store.SimilarByEmotion(ctx, "ann", map[string]float64{"joy": 0.9, "sorrow": 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "happy", similar[0].ID)

	similar, err = store.SimilarByEmotion(ctx, "bob", map[string]float64{"sorrow": 1}, 5)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "bob-happy", similar[0].ID)
}
