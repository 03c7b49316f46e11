package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacoglab/dreammem-go/pkg/storage"
	sqliteStore "github.com/metacoglab/dreammem-go/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) (storage.RecordStore, func()) {
	testDBPath := "./test_dreammem.db"

	// Clean up any existing test database
	_ = os.Remove(testDBPath)

	config := &sqliteStore.Config{
		DBPath:    testDBPath,
		TableName: "records",
	}

	store, err := sqliteStore.NewClient(config)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		_ = store.Close()
		_ = os.Remove(testDBPath)
	}

	return store, cleanup
}

func newTestRecord(id int64, content string, category storage.Category) *storage.Record {
	return &storage.Record{
		ID:        id,
		Content:   content,
		Category:  category,
		Embedding: []float64{0.1, 0.2, 0.3},
		Keywords:  []string{"test", "record"},
		Metadata:  map[string]interface{}{"source": "test"},
		CreatedAt: time.Now(),
	}
}

func TestSQLiteClient_InsertAndGet(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	record := newTestRecord(100, "User prefers short answers", storage.CategoryConversational)
	err := store.Insert(ctx, record)
	require.NoError(t, err)

	got, err := store.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Content, got.Content)
	assert.Equal(t, record.Category, got.Category)
	assert.Equal(t, record.Embedding, got.Embedding)
	assert.Equal(t, record.Keywords, got.Keywords)
	assert.Equal(t, "test", got.Metadata["source"])
	assert.False(t, got.Archived)
}

func TestSQLiteClient_GetNotFound(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	_, err := store.Get(ctx, 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteClient_ListActive(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTestRecord(1, "first", storage.CategoryConversational)))
	require.NoError(t, store.Insert(ctx, newTestRecord(2, "second", storage.CategoryExchange)))
	require.NoError(t, store.Insert(ctx, newTestRecord(3, "third", storage.CategoryConversational)))

	// All categories, insertion order
	records, err := store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
	assert.Equal(t, int64(3), records[2].ID)

	// Single category
	records, err = store.ListActive(ctx, storage.CategoryExchange)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)

	// Archived records drop out
	archived, err := store.Archive(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	records, err = store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestSQLiteClient_ArchiveIdempotent(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTestRecord(1, "first", storage.CategoryConversational)))
	require.NoError(t, store.Insert(ctx, newTestRecord(2, "second", storage.CategoryConversational)))

	archived, err := store.Archive(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	// Second archive of the same IDs counts nothing
	archived, err = store.Archive(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0, archived)

	// Unknown IDs are skipped, not errors
	archived, err = store.Archive(ctx, []int64{42})
	require.NoError(t, err)
	assert.Equal(t, 0, archived)

	// Archived records are still readable
	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestSQLiteClient_CountActive(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	count, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.Insert(ctx, newTestRecord(1, "first", storage.CategoryConversational)))
	require.NoError(t, store.Insert(ctx, newTestRecord(2, "second", storage.CategoryConversational)))

	count, err = store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.Archive(ctx, []int64{1})
	require.NoError(t, err)

	count, err = store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteClient_UpdateMetadata(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTestRecord(1, "first", storage.CategoryConversational)))

	err := store.UpdateMetadata(ctx, 1, map[string]interface{}{"reviewed": true})
	require.NoError(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, true, got.Metadata["reviewed"])

	err = store.UpdateMetadata(ctx, 999, map[string]interface{}{"reviewed": true})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteClient_Feedback(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	older := &storage.FeedbackItem{
		ID:        "fb-1",
		Content:   "stop repeating the question",
		Context:   map[string]interface{}{"exchange_id": float64(42)},
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &storage.FeedbackItem{
		ID:        "fb-2",
		Content:   "keep answers shorter",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.InsertFeedback(ctx, newer))
	require.NoError(t, store.InsertFeedback(ctx, older))

	items, err := store.ListUnconsumedFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Oldest first
	assert.Equal(t, "fb-1", items[0].ID)
	assert.Equal(t, "fb-2", items[1].ID)
	assert.Equal(t, "stop repeating the question", items[0].Content)
	assert.Equal(t, float64(42), items[0].Context["exchange_id"])
	assert.False(t, items[0].Consumed)
}

func TestSQLiteClient_CommitConsolidation(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTestRecord(1, "first", storage.CategoryConversational)))
	require.NoError(t, store.Insert(ctx, newTestRecord(2, "second", storage.CategoryExchange)))
	require.NoError(t, store.InsertFeedback(ctx, &storage.FeedbackItem{
		ID:        "fb-1",
		Content:   "feedback",
		CreatedAt: time.Now(),
	}))

	insight := newTestRecord(10, "[A1] answer briefly", storage.CategoryConsolidated)

	archived, err := store.CommitConsolidation(ctx,
		[]*storage.Record{insight},
		[]int64{1, 2},
		[]string{"fb-1"},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	// Insight persisted and active
	records, err := store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(10), records[0].ID)
	assert.Equal(t, storage.CategoryConsolidated, records[0].Category)

	// Originals archived but still readable
	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	// Feedback consumed
	items, err := store.ListUnconsumedFeedback(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteClient_CommitConsolidationRollsBack(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTestRecord(1, "first", storage.CategoryConversational)))

	// Duplicate insight ID forces the transaction to fail
	duplicate := newTestRecord(1, "colliding insight", storage.CategoryConsolidated)

	_, err := store.CommitConsolidation(ctx,
		[]*storage.Record{duplicate},
		[]int64{1},
		nil,
	)
	require.Error(t, err)

	// Nothing changed
	records, err := store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "first", records[0].Content)
	assert.False(t, records[0].Archived)
}
