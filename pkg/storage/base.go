// Package storage provides interfaces and types for record persistence backends.
//
// It defines the RecordStore interface that all storage implementations must satisfy,
// along with the record and feedback types shared across the module.
package storage

import (
	"context"
	"time"
)

// Category classifies a stored record. The set is closed: retrieval
// exclusion and write-eligibility rules depend on exhaustive handling
// of these four values.
type Category string

const (
	// CategoryConversational marks memories saved deliberately during a
	// conversation (voluntary saves and tool-call saves).
	CategoryConversational Category = "conversational"

	// CategoryConsolidated marks insights derived by a consolidation cycle.
	// It is never directly writable through the tool-call surface.
	CategoryConsolidated Category = "consolidated"

	// CategorySelfObservation marks introspective notes. Excluded from
	// retrieval by default unless explicitly requested.
	CategorySelfObservation Category = "self-observation"

	// CategoryExchange marks auto-saved conversation exchanges.
	CategoryExchange Category = "exchange"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryConversational,
	CategoryConsolidated,
	CategorySelfObservation,
	CategoryExchange,
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryConversational, CategoryConsolidated, CategorySelfObservation, CategoryExchange:
		return true
	}
	return false
}

// Record represents a single memory record.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. Records are immutable once created: only Archived
// and Metadata may change afterwards.
type Record struct {
	// ID is the unique identifier of the record. Assigned at creation,
	// never reused.
	ID int64

	// Content is the text payload. Never empty for a persisted record.
	Content string

	// Category is the record's classification within the closed set.
	Category Category

	// Embedding is the vector embedding computed from Content at ingestion.
	Embedding []float64

	// Keywords is the token set extracted from Content at ingestion,
	// consumed by the keyword index.
	Keywords []string

	// Metadata contains additional scalar attributes, set at creation.
	Metadata map[string]interface{}

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// Archived marks the record as processed by consolidation. Archived
	// records are excluded from retrieval and consolidation input but
	// retained for audit.
	Archived bool

	// Score is the similarity score attached by search operations.
	// Not persisted.
	Score float64
}

// FeedbackItem is a free-text correction note produced externally and
// consumed exactly once by a consolidation cycle. Items are never
// physically deleted; consumption flips the Consumed flag.
type FeedbackItem struct {
	// ID is the unique identifier of the feedback item.
	ID string

	// Content is the feedback text.
	Content string

	// Context contains optional scalar context captured with the feedback
	// (for example the conversation turn it refers to).
	Context map[string]interface{}

	// CreatedAt is when the feedback was recorded.
	CreatedAt time.Time

	// Consumed is set once a consolidation cycle has processed the item.
	Consumed bool
}

// RecordStore defines the interface for record persistence backends.
//
// All storage implementations (SQLite, PostgreSQL, MySQL) must implement
// this interface. Implementations assume a single in-process writer; the
// core client serializes all mutations.
type RecordStore interface {
	// Insert persists a new record. The record's ID, embedding, keywords
	// and timestamps must already be populated by the caller.
	Insert(ctx context.Context, record *Record) error

	// Get retrieves a record by ID, archived or not.
	Get(ctx context.Context, id int64) (*Record, error)

	// ListActive returns all non-archived records in insertion order,
	// optionally filtered to one category (empty category means all).
	ListActive(ctx context.Context, category Category) ([]*Record, error)

	// Archive marks the given records as archived and returns the number
	// of records newly archived. Archiving an already-archived or unknown
	// id is a no-op, not an error.
	Archive(ctx context.Context, ids []int64) (int, error)

	// UpdateMetadata replaces a record's metadata. Content and category
	// are immutable and have no corresponding update operation.
	UpdateMetadata(ctx context.Context, id int64, metadata map[string]interface{}) error

	// CountActive returns the number of non-archived records.
	CountActive(ctx context.Context) (int, error)

	// InsertFeedback persists a new feedback item.
	InsertFeedback(ctx context.Context, item *FeedbackItem) error

	// ListUnconsumedFeedback returns all feedback items not yet consumed
	// by a consolidation cycle, oldest first.
	ListUnconsumedFeedback(ctx context.Context) ([]*FeedbackItem, error)

	// CommitConsolidation applies the outcome of a consolidation cycle in
	// a single transaction: inserts the derived insight records, archives
	// the snapshotted record ids, and marks the snapshotted feedback items
	// consumed. Either everything is applied or nothing is.
	//
	// Returns the number of records archived by the commit.
	CommitConsolidation(ctx context.Context, insights []*Record, recordIDs []int64, feedbackIDs []string) (int, error)

	// Close closes the store and releases resources.
	Close() error
}
