package consolidation_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacoglab/dreammem-go/pkg/consolidation"
	"github.com/metacoglab/dreammem-go/pkg/index"
	"github.com/metacoglab/dreammem-go/pkg/reasoning"
	"github.com/metacoglab/dreammem-go/pkg/storage"
	sqliteStore "github.com/metacoglab/dreammem-go/pkg/storage/sqlite"
)

// constEmbedder returns the same vector for every text.
type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (constEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func (constEmbedder) Dimensions() int { return 2 }
func (constEmbedder) Close() error    { return nil }

// scriptedBackend returns a canned response, optionally failing,
// blocking, or running a hook first.
type scriptedBackend struct {
	response string
	err      error
	block    chan struct{}
	hook     func()
	calls    atomic.Int32
}

func (b *scriptedBackend) Complete(ctx context.Context, prompt string, opts ...reasoning.CompleteOption) (string, error) {
	return b.CompleteWithMessages(ctx, []reasoning.Message{{Role: "user", Content: prompt}}, opts...)
}

func (b *scriptedBackend) CompleteWithMessages(ctx context.Context, messages []reasoning.Message, opts ...reasoning.CompleteOption) (string, error) {
	b.calls.Add(1)
	if b.hook != nil {
		b.hook()
	}
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.err != nil {
		return "", b.err
	}
	return b.response, nil
}

func (b *scriptedBackend) Close() error { return nil }

type engineFixture struct {
	engine   *consolidation.Engine
	store    storage.RecordStore
	vectors  *index.FlatIndex
	keywords *index.KeywordIndex
	backend  *scriptedBackend
	nextID   atomic.Int64
}

func setupEngineTest(t *testing.T, backend *scriptedBackend) (*engineFixture, func()) {
	testDBPath := "./test_consolidation.db"
	_ = os.Remove(testDBPath)

	store, err := sqliteStore.NewClient(&sqliteStore.Config{DBPath: testDBPath})
	require.NoError(t, err)

	fixture := &engineFixture{
		store:    store,
		vectors:  index.NewFlatIndex(),
		keywords: index.NewKeywordIndex(),
		backend:  backend,
	}
	fixture.nextID.Store(1000)

	fixture.engine = consolidation.NewEngine(consolidation.Config{
		Store:     store,
		Backend:   backend,
		Embedder:  constEmbedder{},
		Vectors:   fixture.vectors,
		Keywords:  fixture.keywords,
		Tokenizer: index.NewMixedScriptTokenizer(),
		NewID:     func() int64 { return fixture.nextID.Add(1) },
		Logger:    zerolog.Nop(),
	})

	cleanup := func() {
		_ = store.Close()
		_ = os.Remove(testDBPath)
	}
	return fixture, cleanup
}

func (f *engineFixture) seedRecord(t *testing.T, id int64, content string, category storage.Category) {
	t.Helper()
	ctx := context.Background()
	record := &storage.Record{
		ID:        id,
		Content:   content,
		Category:  category,
		Embedding: []float64{1, 0},
		Keywords:  []string{"seed"},
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.Insert(ctx, record))
	require.NoError(t, f.vectors.Add(ctx, id, record.Embedding, record.CreatedAt))
	f.keywords.Add(id, record.Keywords)
}

func (f *engineFixture) seedFeedback(t *testing.T, id, content string) {
	t.Helper()
	require.NoError(t, f.store.InsertFeedback(context.Background(), &storage.FeedbackItem{
		ID:        id,
		Content:   content,
		CreatedAt: time.Now(),
	}))
}

func TestEngine_SuccessfulCycle(t *testing.T) {
	backend := &scriptedBackend{response: "A1. answer briefly\nB1. keep suggesting tests"}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	ctx := context.Background()
	f.seedRecord(t, 1, "user asked about maps", storage.CategoryConversational)
	f.seedRecord(t, 2, "User: hi\nAssistant: hello", storage.CategoryExchange)
	f.seedRecord(t, 3, "[A1] old insight", storage.CategoryConsolidated)
	f.seedFeedback(t, "fb-1", "be more concise")

	result, err := f.engine.Run(ctx, consolidation.RunParams{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.MemoriesProcessed)
	assert.Equal(t, 1, result.FeedbacksUsed)
	assert.Equal(t, 3, result.RecordsArchived)
	assert.Equal(t, []string{"[A1] answer briefly", "[B1] keep suggesting tests"}, result.Insights)

	// Only the new insights remain active
	active, err := f.store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, record := range active {
		assert.Equal(t, storage.CategoryConsolidated, record.Category)
	}

	// Snapshot archived, feedback consumed
	got, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Archived)
	pending, err := f.store.ListUnconsumedFeedback(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Indexes follow: the three seeds replaced by two insights
	assert.Equal(t, 2, f.vectors.Len())
	assert.Equal(t, 2, f.keywords.Len())

	assert.Equal(t, consolidation.PhaseIdle, f.engine.Phase())
}

func TestEngine_EmptyStoreSkips(t *testing.T) {
	backend := &scriptedBackend{response: "A1. unused"}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	result, err := f.engine.Run(context.Background(), consolidation.RunParams{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, int32(0), backend.calls.Load())
}

func TestEngine_FeedbackOnlyCycleRuns(t *testing.T) {
	backend := &scriptedBackend{response: "A1. act on the feedback"}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	ctx := context.Background()
	f.seedFeedback(t, "fb-1", "stop using bullet points")

	result, err := f.engine.Run(ctx, consolidation.RunParams{})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.FeedbacksUsed)

	pending, err := f.store.ListUnconsumedFeedback(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_BackendFailureIsNoOp(t *testing.T) {
	backend := &scriptedBackend{err: assert.AnError}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	ctx := context.Background()
	f.seedRecord(t, 1, "memory", storage.CategoryConversational)
	f.seedFeedback(t, "fb-1", "feedback")

	_, err := f.engine.Run(ctx, consolidation.RunParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, consolidation.ErrReasoningFailed)

	// Store untouched
	active, err := f.store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].Archived)
	pending, err := f.store.ListUnconsumedFeedback(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, f.vectors.Len())

	assert.Equal(t, consolidation.PhaseIdle, f.engine.Phase())
}

func TestEngine_EmptyResponseIsNoOp(t *testing.T) {
	backend := &scriptedBackend{response: "   "}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	ctx := context.Background()
	f.seedRecord(t, 1, "memory", storage.CategoryConversational)

	_, err := f.engine.Run(ctx, consolidation.RunParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, consolidation.ErrReasoningFailed)

	active, err := f.store.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEngine_ReasoningTimeout(t *testing.T) {
	backend := &scriptedBackend{block: make(chan struct{})}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	ctx := context.Background()
	f.seedRecord(t, 1, "memory", storage.CategoryConversational)

	_, err := f.engine.Run(ctx, consolidation.RunParams{ReasoningTimeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, consolidation.ErrReasoningTimeout)

	active, err := f.store.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.False(t, active[0].Archived)
}

func TestEngine_ConcurrentSaveSurvivesCycle(t *testing.T) {
	f, cleanup := setupEngineTest(t, nil)
	defer cleanup()

	ctx := context.Background()
	f.seedRecord(t, 1, "old memory", storage.CategoryConversational)

	// The hook fires after the snapshot was taken, while the backend
	// "reasons". The record it saves must survive the archive step.
	backend := &scriptedBackend{response: "A1. distilled"}
	backend.hook = func() {
		require.NoError(t, f.store.Insert(ctx, &storage.Record{
			ID:        99,
			Content:   "saved mid-cycle",
			Category:  storage.CategoryConversational,
			Embedding: []float64{1, 0},
			Keywords:  []string{"mid"},
			CreatedAt: time.Now(),
		}))
	}
	f.backend = backend
	f.engine = consolidation.NewEngine(consolidation.Config{
		Store:     f.store,
		Backend:   backend,
		Embedder:  constEmbedder{},
		Vectors:   f.vectors,
		Keywords:  f.keywords,
		Tokenizer: index.NewMixedScriptTokenizer(),
		NewID:     func() int64 { return f.nextID.Add(1) },
		Logger:    zerolog.Nop(),
	})

	result, err := f.engine.Run(ctx, consolidation.RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.MemoriesProcessed)
	assert.Equal(t, 1, result.RecordsArchived)

	// The mid-cycle record is still active
	got, err := f.store.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, got.Archived)

	// The snapshot record is archived
	got, err = f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestEngine_SecondCycleRejectedWhileRunning(t *testing.T) {
	backend := &scriptedBackend{response: "A1. distilled", block: make(chan struct{})}
	f, cleanup := setupEngineTest(t, backend)
	defer cleanup()

	ctx := context.Background()
	f.seedRecord(t, 1, "memory", storage.CategoryConversational)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.engine.Run(ctx, consolidation.RunParams{})
	}()

	// Wait for the first cycle to reach the backend
	require.Eventually(t, func() bool {
		return backend.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.engine.Run(ctx, consolidation.RunParams{})
	assert.ErrorIs(t, err, consolidation.ErrCycleInProgress)

	close(backend.block)
	wg.Wait()

	assert.Equal(t, consolidation.PhaseIdle, f.engine.Phase())
}
