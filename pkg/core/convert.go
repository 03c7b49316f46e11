// Package core provides the main DreamMem client and memory management functionality.
package core

import "github.com/metacoglab/dreammem-go/pkg/storage"

// toStorageRecord converts a core.Record to storage.Record.
//
// This function is used internally to convert between package types
// to avoid circular dependencies.
func toStorageRecord(r *Record) *storage.Record {
	return &storage.Record{
		ID:        r.ID,
		Content:   r.Content,
		Category:  storage.Category(r.Category),
		Embedding: r.Embedding,
		Keywords:  r.Keywords,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
		Archived:  r.Archived,
		Score:     r.Score,
	}
}

// fromStorageRecord converts a storage.Record to core.Record.
//
// This function is used internally to convert between package types
// to avoid circular dependencies.
func fromStorageRecord(r *storage.Record) *Record {
	return &Record{
		ID:        r.ID,
		Content:   r.Content,
		Category:  Category(r.Category),
		Embedding: r.Embedding,
		Keywords:  r.Keywords,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
		Archived:  r.Archived,
		Score:     r.Score,
	}
}

// fromStorageRecords converts a slice of storage.Record to a slice of core.Record.
//
// This function is used internally for batch conversion between package types.
func fromStorageRecords(records []*storage.Record) []*Record {
	result := make([]*Record, len(records))
	for i, r := range records {
		result[i] = fromStorageRecord(r)
	}
	return result
}

// fromStorageFeedback converts a storage.FeedbackItem to core.FeedbackItem.
func fromStorageFeedback(f *storage.FeedbackItem) *FeedbackItem {
	return &FeedbackItem{
		ID:        f.ID,
		Content:   f.Content,
		Context:   f.Context,
		CreatedAt: f.CreatedAt,
		Consumed:  f.Consumed,
	}
}
