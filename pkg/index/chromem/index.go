// Package chromem provides a VectorIndex backed by chromem-go, as an
// alternative to the default flat index for larger stores.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/metacoglab/dreammem-go/pkg/index"
)

// Index implements index.VectorIndex on top of a chromem-go collection.
type Index struct {
	collection *chromem.Collection
}

// Config contains configuration for creating a chromem index.
type Config struct {
	// CollectionName names the chromem collection. Defaults to "records".
	CollectionName string

	// PersistPath, when set, stores the index on disk instead of in
	// memory.
	PersistPath string
}

// NewIndex creates a chromem-backed vector index.
func NewIndex(cfg *Config) (*Index, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	name := cfg.CollectionName
	if name == "" {
		name = "records"
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("NewChromemIndex: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are supplied per document, so the collection's own
	// embedding func is never invoked.
	collection, err := db.GetOrCreateCollection(name, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem index stores precomputed embeddings only")
	})
	if err != nil {
		return nil, fmt.Errorf("NewChromemIndex: %w", err)
	}

	return &Index{collection: collection}, nil
}

// Add implements index.VectorIndex.
func (ix *Index) Add(ctx context.Context, id int64, embedding []float64, createdAt time.Time) error {
	if len(embedding) == 0 {
		return fmt.Errorf("Add: empty embedding for record %d", id)
	}

	doc := chromem.Document{
		ID:        strconv.FormatInt(id, 10),
		Embedding: toFloat32(embedding),
		Content:   " ",
		Metadata: map[string]string{
			"created_at": createdAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := ix.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("Add: %w", err)
	}
	return nil
}

// Remove implements index.VectorIndex.
func (ix *Index) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	docIDs := make([]string, len(ids))
	for i, id := range ids {
		docIDs[i] = strconv.FormatInt(id, 10)
	}
	if err := ix.collection.Delete(ctx, nil, nil, docIDs...); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	return nil
}

// Query implements index.VectorIndex.
func (ix *Index) Query(ctx context.Context, embedding []float64, k int, minScore float64) ([]index.Hit, error) {
	count := ix.collection.Count()
	if k <= 0 || count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := ix.collection.QueryEmbedding(ctx, toFloat32(embedding), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	hits := make([]index.Hit, 0, len(results))
	for _, res := range results {
		score := float64(res.Similarity)
		if score < minScore {
			continue
		}
		id, err := strconv.ParseInt(res.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Query: parse id %q: %w", res.ID, err)
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
		hits = append(hits, index.Hit{ID: id, Score: score, CreatedAt: createdAt})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	return hits, nil
}

// Len implements index.VectorIndex.
func (ix *Index) Len() int {
	return ix.collection.Count()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
