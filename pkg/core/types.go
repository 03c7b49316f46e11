// Package core provides the main DreamMem client and memory management functionality.
package core

import "time"

// Category classifies a memory record.
//
// The set of categories is closed:
//   - CategoryConversational: memories saved during conversation
//   - CategoryConsolidated: insights produced by consolidation cycles
//   - CategorySelfObservation: the agent's own observations about itself
//   - CategoryExchange: raw user/assistant exchange pairs
type Category string

const (
	// CategoryConversational holds memories saved during conversation.
	CategoryConversational Category = "conversational"

	// CategoryConsolidated holds insights produced by consolidation.
	// Records in this category are written only by consolidation cycles.
	CategoryConsolidated Category = "consolidated"

	// CategorySelfObservation holds the agent's observations about its
	// own behavior. Excluded from search results by default.
	CategorySelfObservation Category = "self-observation"

	// CategoryExchange holds raw conversation exchange pairs.
	CategoryExchange Category = "exchange"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryConversational,
	CategoryConsolidated,
	CategorySelfObservation,
	CategoryExchange,
}

// WritableCategories lists the categories a caller may save into
// directly. Consolidated records are produced only by consolidation
// cycles.
var WritableCategories = []Category{
	CategoryConversational,
	CategorySelfObservation,
	CategoryExchange,
}

// Valid reports whether the category is one of the defined categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Writable reports whether callers may save records into this category.
func (c Category) Writable() bool {
	for _, known := range WritableCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Record represents a single memory record.
//
// Example:
//
//	record := &core.Record{
//	    ID:       1234567890,
//	    Content:  "User prefers short answers",
//	    Category: core.CategoryConversational,
//	    Metadata: map[string]interface{}{
//	        "source": "conversation",
//	    },
//	}
type Record struct {
	// ID is the unique identifier of the record.
	ID int64 `json:"id"`

	// Content is the text content of the record.
	Content string `json:"content"`

	// Category classifies the record.
	Category Category `json:"category"`

	// Embedding is the vector embedding for similarity search.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"embedding,omitempty"`

	// Keywords are the tokens the record is keyword-indexed under.
	Keywords []string `json:"keywords,omitempty"`

	// Metadata contains additional structured information about the record.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// Archived marks records consumed by a consolidation cycle. Archived
	// records are kept for audit but never returned by search.
	Archived bool `json:"archived,omitempty"`

	// Score is the relevance score from search operations (0.0-1.0).
	// Higher scores indicate better matches.
	Score float64 `json:"score,omitempty"`
}

// FeedbackItem is a correction or instruction from the user, queued for
// the next consolidation cycle.
type FeedbackItem struct {
	// ID is the unique identifier of the feedback item.
	ID string `json:"id"`

	// Content is the feedback text.
	Content string `json:"content"`

	// Context carries optional structured context, such as the exchange
	// that prompted the feedback.
	Context map[string]interface{} `json:"context,omitempty"`

	// CreatedAt is when the feedback was recorded.
	CreatedAt time.Time `json:"created_at"`

	// Consumed marks feedback already used by a consolidation cycle.
	Consumed bool `json:"consumed,omitempty"`
}

// ConsolidationResult summarizes a finished consolidation cycle.
type ConsolidationResult struct {
	// Skipped is true when there was nothing to consolidate.
	Skipped bool `json:"skipped,omitempty"`

	// MemoriesProcessed counts the records drained into the cycle.
	MemoriesProcessed int `json:"memories_processed"`

	// FeedbacksUsed counts the feedback items fed into the cycle.
	FeedbacksUsed int `json:"feedbacks_used"`

	// Insights holds the distilled insight texts.
	Insights []string `json:"insights,omitempty"`

	// RecordsArchived counts records archived by the cycle.
	RecordsArchived int `json:"records_archived"`

	// Duration is the wall-clock time the cycle took.
	Duration time.Duration `json:"duration"`
}

// Stats describes the current state of the memory store.
type Stats struct {
	// ActiveRecords counts non-archived records.
	ActiveRecords int `json:"active_records"`

	// PendingFeedback counts unconsumed feedback items.
	PendingFeedback int `json:"pending_feedback"`

	// ConsolidationThreshold is the active record count that triggers a
	// consolidation recommendation.
	ConsolidationThreshold int `json:"consolidation_threshold"`

	// ConsolidationDue is true when ActiveRecords has reached the
	// threshold.
	ConsolidationDue bool `json:"consolidation_due"`
}
