// Package core provides the main DreamMem client and memory management functionality.
package core

// SaveOption is a function type for configuring Save operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type SaveOption func(*SaveOptions)

// SaveOptions contains configuration options for Save operations.
type SaveOptions struct {
	// Category classifies the record. Defaults to CategoryConversational.
	Category Category

	// Metadata contains additional metadata about the record.
	Metadata map[string]interface{}
}

// WithCategory sets the category for Save operations.
//
// Example:
//
//	record, _ := client.Save(ctx, "content", core.WithCategory(core.CategorySelfObservation))
func WithCategory(category Category) SaveOption {
	return func(opts *SaveOptions) {
		opts.Category = category
	}
}

// WithMetadata sets metadata for Save operations.
//
// Metadata can be used for filtering and additional context.
//
// Example:
//
//	record, _ := client.Save(ctx, "content",
//	    core.WithMetadata(map[string]interface{}{
//	        "source": "conversation",
//	    }),
//	)
func WithMetadata(metadata map[string]interface{}) SaveOption {
	return func(opts *SaveOptions) {
		opts.Metadata = metadata
	}
}

// applySaveOptions applies SaveOption functions with defaults.
func applySaveOptions(opts []SaveOption) *SaveOptions {
	options := &SaveOptions{
		Category: CategoryConversational,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// SearchOption is a function type for configuring Search operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for Search operations.
type SearchOptions struct {
	// Limit caps the number of results. Zero means the client's default
	// limit.
	Limit int

	// Categories, when non-empty, restricts results to these categories.
	Categories []Category

	// IncludeSelfObservation admits self-observation records, which are
	// excluded by default.
	IncludeSelfObservation bool

	// RelevanceThreshold overrides the configured threshold for this
	// search only. Nil means use the current setting.
	RelevanceThreshold *float64
}

// WithLimit sets the maximum number of results for Search operations.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", core.WithLimit(10))
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithCategoriesForSearch restricts Search results to the given
// categories. Naming CategorySelfObservation is an explicit request for
// those records, so WithSelfObservation is not needed alongside it.
//
// Example:
//
//	results, _ := client.Search(ctx, "query",
//	    core.WithCategoriesForSearch(core.CategoryConsolidated),
//	)
func WithCategoriesForSearch(categories ...Category) SearchOption {
	return func(opts *SearchOptions) {
		opts.Categories = categories
	}
}

// WithSelfObservation admits self-observation records into Search
// results. They are excluded by default.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", core.WithSelfObservation())
func WithSelfObservation() SearchOption {
	return func(opts *SearchOptions) {
		opts.IncludeSelfObservation = true
	}
}

// WithRelevanceThresholdForSearch overrides the relevance threshold for
// a single Search.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", core.WithRelevanceThresholdForSearch(0.7))
func WithRelevanceThresholdForSearch(threshold float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.RelevanceThreshold = &threshold
	}
}

// applySearchOptions applies SearchOption functions with defaults.
func applySearchOptions(opts []SearchOption) *SearchOptions {
	options := &SearchOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// FeedbackOption is a function type for configuring SaveFeedback operations.
type FeedbackOption func(*FeedbackOptions)

// FeedbackOptions contains configuration options for SaveFeedback operations.
type FeedbackOptions struct {
	// Context carries optional structured context, such as the exchange
	// that prompted the feedback.
	Context map[string]interface{}
}

// WithFeedbackContext attaches context to a feedback item.
//
// Example:
//
//	item, _ := client.SaveFeedback(ctx, "answers are too long",
//	    core.WithFeedbackContext(map[string]interface{}{
//	        "exchange_id": 42,
//	    }),
//	)
func WithFeedbackContext(context map[string]interface{}) FeedbackOption {
	return func(opts *FeedbackOptions) {
		opts.Context = context
	}
}

// applyFeedbackOptions applies FeedbackOption functions with defaults.
func applyFeedbackOptions(opts []FeedbackOption) *FeedbackOptions {
	options := &FeedbackOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
