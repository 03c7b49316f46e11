package retrieval_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacoglab/dreammem-go/pkg/index"
	"github.com/metacoglab/dreammem-go/pkg/retrieval"
	"github.com/metacoglab/dreammem-go/pkg/storage"
	sqliteStore "github.com/metacoglab/dreammem-go/pkg/storage/sqlite"
)

// stubEmbedder returns preassigned vectors per text.
type stubEmbedder struct {
	vectors map[string][]float64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no stub vector for %q", text)
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) Close() error    { return nil }

type engineFixture struct {
	engine   *retrieval.Engine
	store    storage.RecordStore
	vectors  *index.FlatIndex
	keywords *index.KeywordIndex
	embedder *stubEmbedder
	tok      index.Tokenizer
}

func setupEngineTest(t *testing.T) (*engineFixture, func()) {
	testDBPath := "./test_retrieval.db"
	_ = os.Remove(testDBPath)

	store, err := sqliteStore.NewClient(&sqliteStore.Config{DBPath: testDBPath})
	require.NoError(t, err)

	emb := &stubEmbedder{vectors: make(map[string][]float64)}
	vectors := index.NewFlatIndex()
	keywords := index.NewKeywordIndex()
	tok := index.NewMixedScriptTokenizer()

	engine := retrieval.NewEngine(emb, vectors, keywords, tok, store, zerolog.Nop())

	fixture := &engineFixture{
		engine:   engine,
		store:    store,
		vectors:  vectors,
		keywords: keywords,
		embedder: emb,
		tok:      tok,
	}
	cleanup := func() {
		_ = store.Close()
		_ = os.Remove(testDBPath)
	}
	return fixture, cleanup
}

// addRecord stores and indexes a record with the given embedding.
func (f *engineFixture) addRecord(t *testing.T, id int64, content string, category storage.Category, embedding []float64, createdAt time.Time) {
	t.Helper()
	record := &storage.Record{
		ID:        id,
		Content:   content,
		Category:  category,
		Embedding: embedding,
		Keywords:  f.tok.Tokenize(content),
		CreatedAt: createdAt,
	}
	require.NoError(t, f.store.Insert(context.Background(), record))
	require.NoError(t, f.vectors.Add(context.Background(), id, embedding, createdAt))
	f.keywords.Add(id, record.Keywords)
}

func baseQuery() retrieval.Query {
	return retrieval.Query{
		Text:               "query",
		Limit:              5,
		RelevanceThreshold: 0.85,
		KeywordHitScore:    0.85,
	}
}

func TestEngine_ThresholdFiltersCandidates(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	// Cosine similarity against the query vector (1, 0): 0.9, 0.7, 0.2.
	// Contents share no tokens with the query text.
	f.embedder.vectors["query"] = []float64{1, 0}
	f.addRecord(t, 1, "alpha", storage.CategoryConversational, []float64{0.9, 0.43588989435}, now)
	f.addRecord(t, 2, "beta", storage.CategoryConversational, []float64{0.7, 0.71414284285}, now)
	f.addRecord(t, 3, "gamma", storage.CategoryConversational, []float64{0.2, 0.97979589711}, now)

	results, err := f.engine.Search(ctx, baseQuery())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
}

func TestEngine_ThresholdReadFreshPerCall(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	f.embedder.vectors["query"] = []float64{1, 0}
	f.addRecord(t, 1, "alpha", storage.CategoryConversational, []float64{0.7, 0.71414284285}, time.Now())

	q := baseQuery()
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Same index, lower threshold on the next call
	q.RelevanceThreshold = 0.5
	results, err = f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestEngine_KeywordOnlyHitsScoredAtFixedValue(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()

	// Orthogonal embedding, but shares the token "timezone" with the query
	f.embedder.vectors["timezone please"] = []float64{1, 0}
	f.addRecord(t, 1, "timezone is JST", storage.CategoryConversational, []float64{0, 1}, time.Now())

	q := baseQuery()
	q.Text = "timezone please"
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.InDelta(t, 0.85, results[0].Score, 1e-9)
}

func TestEngine_VectorScoreWinsOverKeywordScore(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()

	// Both a strong vector match and a keyword match
	f.embedder.vectors["timezone"] = []float64{1, 0}
	f.addRecord(t, 1, "timezone is JST", storage.CategoryConversational, []float64{1, 0}, time.Now())

	q := baseQuery()
	q.Text = "timezone"
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestEngine_SelfObservationExcludedByDefault(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	f.embedder.vectors["query"] = []float64{1, 0}
	f.addRecord(t, 1, "alpha", storage.CategorySelfObservation, []float64{1, 0}, time.Now())

	results, err := f.engine.Search(ctx, baseQuery())
	require.NoError(t, err)
	assert.Empty(t, results)

	q := baseQuery()
	q.IncludeSelfObservation = true
	results, err = f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestEngine_CategoryFilterNamingSelfObservationIncludesIt(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	f.embedder.vectors["query"] = []float64{1, 0}
	f.addRecord(t, 1, "alpha", storage.CategorySelfObservation, []float64{1, 0}, time.Now())
	f.addRecord(t, 2, "beta", storage.CategoryConversational, []float64{1, 0}, time.Now())

	// Filtering to the category is an explicit request; no separate flag
	// is needed.
	q := baseQuery()
	q.Categories = []storage.Category{storage.CategorySelfObservation}
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)

	// A filter not naming it still excludes it
	q = baseQuery()
	q.Categories = []storage.Category{storage.CategoryConversational}
	results, err = f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestEngine_CategoryFilter(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	f.embedder.vectors["query"] = []float64{1, 0}
	f.addRecord(t, 1, "alpha", storage.CategoryConversational, []float64{1, 0}, time.Now())
	f.addRecord(t, 2, "beta", storage.CategoryExchange, []float64{1, 0}, time.Now())

	q := baseQuery()
	q.Categories = []storage.Category{storage.CategoryExchange}
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestEngine_RanksByScoreThenRecency(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	f.embedder.vectors["query"] = []float64{1, 0}
	f.addRecord(t, 1, "alpha", storage.CategoryConversational, []float64{1, 0}, older)
	f.addRecord(t, 2, "beta", storage.CategoryConversational, []float64{1, 0}, newer)
	f.addRecord(t, 3, "gamma", storage.CategoryConversational, []float64{0.9, 0.43588989435}, newer)

	q := baseQuery()
	q.RelevanceThreshold = 0.5
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(2), results[0].ID) // tie on 1.0, newer wins
	assert.Equal(t, int64(1), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)
}

func TestEngine_LimitTruncates(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	f.embedder.vectors["query"] = []float64{1, 0}
	for i := int64(1); i <= 8; i++ {
		f.addRecord(t, i, fmt.Sprintf("record %d", i), storage.CategoryConversational, []float64{1, 0}, time.Now())
	}

	q := baseQuery()
	q.Limit = 3
	results, err := f.engine.Search(ctx, q)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestEngine_EmptyResultIsValid(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	f.embedder.vectors["query"] = []float64{1, 0}

	results, err := f.engine.Search(context.Background(), baseQuery())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_ValidatesInput(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	q := baseQuery()
	q.Text = ""
	_, err := f.engine.Search(context.Background(), q)
	assert.Error(t, err)

	q = baseQuery()
	q.Limit = 0
	_, err = f.engine.Search(context.Background(), q)
	assert.Error(t, err)
}

func TestEngine_IndexedRecordMissingFromStore(t *testing.T) {
	f, cleanup := setupEngineTest(t)
	defer cleanup()

	ctx := context.Background()
	f.embedder.vectors["query"] = []float64{1, 0}

	// Indexed but never stored
	require.NoError(t, f.vectors.Add(ctx, 42, []float64{1, 0}, time.Now()))

	_, err := f.engine.Search(ctx, baseQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrInconsistent)
}
