// Package index provides the in-memory retrieval indexes: a vector
// index over record embeddings and an inverted keyword index. Both are
// rebuilt from the record store on startup and kept in step with it by
// the owning client; archived records are removed from both.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// ErrInconsistent reports that an index entry disagrees with the record
// store, for example an indexed ID whose record no longer exists.
var ErrInconsistent = errors.New("index inconsistent with record store")

// Hit is a single vector index match.
type Hit struct {
	ID        int64
	Score     float64
	CreatedAt time.Time
}

// VectorIndex is the embedding index over active records.
type VectorIndex interface {
	// Add indexes a record's embedding.
	Add(ctx context.Context, id int64, embedding []float64, createdAt time.Time) error

	// Remove drops records from the index. Unknown IDs are ignored.
	Remove(ctx context.Context, ids []int64) error

	// Query returns up to k records by cosine similarity to the query
	// embedding, highest first, with more recent records winning score
	// ties. Hits scoring below minScore are excluded.
	Query(ctx context.Context, embedding []float64, k int, minScore float64) ([]Hit, error)

	// Len returns the number of indexed records.
	Len() int
}

type flatEntry struct {
	id        int64
	embedding []float64
	norm      float64
	createdAt time.Time
}

// FlatIndex is the default VectorIndex: a brute-force in-memory scan
// with exact cosine similarity. It is safe for concurrent use.
type FlatIndex struct {
	mu      sync.RWMutex
	entries []flatEntry
	byID    map[int64]int
}

// NewFlatIndex creates an empty flat vector index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{byID: make(map[int64]int)}
}

// Add implements VectorIndex.
func (f *FlatIndex) Add(ctx context.Context, id int64, embedding []float64, createdAt time.Time) error {
	if len(embedding) == 0 {
		return fmt.Errorf("Add: empty embedding for record %d", id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry := flatEntry{
		id:        id,
		embedding: embedding,
		norm:      vectorNorm(embedding),
		createdAt: createdAt,
	}
	if pos, ok := f.byID[id]; ok {
		f.entries[pos] = entry
		return nil
	}
	f.byID[id] = len(f.entries)
	f.entries = append(f.entries, entry)
	return nil
}

// Remove implements VectorIndex.
func (f *FlatIndex) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := f.entries[:0]
	for _, entry := range f.entries {
		if !drop[entry.id] {
			kept = append(kept, entry)
		}
	}
	f.entries = kept

	f.byID = make(map[int64]int, len(f.entries))
	for i, entry := range f.entries {
		f.byID[entry.id] = i
	}
	return nil
}

// Query implements VectorIndex.
func (f *FlatIndex) Query(ctx context.Context, embedding []float64, k int, minScore float64) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	queryNorm := vectorNorm(embedding)

	f.mu.RLock()
	hits := make([]Hit, 0, len(f.entries))
	for _, entry := range f.entries {
		score := cosineSimilarity(embedding, queryNorm, entry.embedding, entry.norm)
		if score < minScore {
			continue
		}
		hits = append(hits, Hit{ID: entry.id, Score: score, CreatedAt: entry.createdAt})
	}
	f.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len implements VectorIndex.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

func vectorNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a []float64, normA float64, b []float64, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}
