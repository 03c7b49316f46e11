// Package retrieval implements hybrid search over the memory store,
// combining embedding similarity with keyword matching.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/metacoglab/dreammem-go/pkg/embedder"
	"github.com/metacoglab/dreammem-go/pkg/index"
	"github.com/metacoglab/dreammem-go/pkg/storage"
)

const (
	// RecallFloor is the minimum cosine similarity for a vector candidate
	// to enter the candidate pool. It is deliberately permissive; the
	// caller's relevance threshold does the real filtering.
	RecallFloor = 0.3

	// CandidateMultiplier sizes the vector candidate pool relative to the
	// requested limit, so keyword union and threshold filtering still
	// leave enough results.
	CandidateMultiplier = 4
)

// Query describes a single search. RelevanceThreshold and KeywordHitScore
// are passed per call so configuration changes between calls take effect
// immediately.
type Query struct {
	// Text is the search text. Must be non-empty.
	Text string

	// Limit caps the number of results. Must be positive.
	Limit int

	// RelevanceThreshold drops candidates scoring below it.
	RelevanceThreshold float64

	// KeywordHitScore is the fixed score assigned to keyword-only hits.
	KeywordHitScore float64

	// IncludeSelfObservation admits self-observation records, which are
	// excluded by default.
	IncludeSelfObservation bool

	// Categories, when non-empty, restricts results to these categories.
	// Naming CategorySelfObservation here includes those records without
	// needing IncludeSelfObservation.
	Categories []storage.Category
}

// Engine performs hybrid retrieval over the vector and keyword indexes.
type Engine struct {
	embedder  embedder.Provider
	vectors   index.VectorIndex
	keywords  *index.KeywordIndex
	tokenizer index.Tokenizer
	store     storage.RecordStore
	logger    zerolog.Logger
}

// NewEngine creates a retrieval engine over the given store and indexes.
func NewEngine(provider embedder.Provider, vectors index.VectorIndex, keywords *index.KeywordIndex, tokenizer index.Tokenizer, store storage.RecordStore, logger zerolog.Logger) *Engine {
	return &Engine{
		embedder:  provider,
		vectors:   vectors,
		keywords:  keywords,
		tokenizer: tokenizer,
		store:     store,
		logger:    logger,
	}
}

// Search runs a hybrid search and returns up to q.Limit records, best
// first. Results carry their relevance score in Record.Score. An empty
// result is a valid outcome, not an error.
//
// Vector candidates are gathered at CandidateMultiplier times the limit
// down to RecallFloor, merged with keyword matches scored at
// q.KeywordHitScore (a record found both ways keeps the higher score),
// filtered by category rules and q.RelevanceThreshold, then ranked by
// score with more recent records winning ties.
func (e *Engine) Search(ctx context.Context, q Query) ([]*storage.Record, error) {
	if q.Text == "" {
		return nil, errors.New("Search: empty query text")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("Search: invalid limit %d", q.Limit)
	}

	queryEmbedding, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	hits, err := e.vectors.Query(ctx, queryEmbedding, q.Limit*CandidateMultiplier, RecallFloor)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	scores := make(map[int64]float64, len(hits))
	for _, hit := range hits {
		scores[hit.ID] = hit.Score
	}

	tokens := e.tokenizer.Tokenize(q.Text)
	keywordHits := 0
	for _, id := range e.keywords.Query(tokens) {
		if scores[id] < q.KeywordHitScore {
			scores[id] = q.KeywordHitScore
		}
		keywordHits++
	}

	results := make([]*storage.Record, 0, len(scores))
	for id, score := range scores {
		if score < q.RelevanceThreshold {
			continue
		}

		record, err := e.store.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("Search: record %d: %w", id, index.ErrInconsistent)
		}
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		if record.Archived {
			continue
		}
		// A category filter naming self-observation is an explicit request
		// for those records; the default exclusion applies only when no
		// filter is given.
		if len(q.Categories) > 0 {
			if !containsCategory(q.Categories, record.Category) {
				continue
			}
		} else if record.Category == storage.CategorySelfObservation && !q.IncludeSelfObservation {
			continue
		}

		record.Score = score
		results = append(results, record)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}

	e.logger.Debug().
		Int("vector_hits", len(hits)).
		Int("keyword_hits", keywordHits).
		Int("results", len(results)).
		Float64("threshold", q.RelevanceThreshold).
		Msg("search completed")

	return results, nil
}

func containsCategory(categories []storage.Category, category storage.Category) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}
