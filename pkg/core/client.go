package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/metacoglab/dreammem-go/pkg/consolidation"
	"github.com/metacoglab/dreammem-go/pkg/embedder"
	ollamaEmbedder "github.com/metacoglab/dreammem-go/pkg/embedder/ollama"
	openaiEmbedder "github.com/metacoglab/dreammem-go/pkg/embedder/openai"
	"github.com/metacoglab/dreammem-go/pkg/index"
	chromemIndex "github.com/metacoglab/dreammem-go/pkg/index/chromem"
	"github.com/metacoglab/dreammem-go/pkg/reasoning"
	openaiReasoning "github.com/metacoglab/dreammem-go/pkg/reasoning/openai"
	"github.com/metacoglab/dreammem-go/pkg/retrieval"
	"github.com/metacoglab/dreammem-go/pkg/storage"
	mysqlStore "github.com/metacoglab/dreammem-go/pkg/storage/mysql"
	postgresStore "github.com/metacoglab/dreammem-go/pkg/storage/postgres"
	sqliteStore "github.com/metacoglab/dreammem-go/pkg/storage/sqlite"
)

// Client is the main DreamMem client for memory management.
//
// It provides a complete interface for storing, searching, and
// consolidating an agent's memory:
//   - Categorized record storage with archiving
//   - Hybrid search combining embeddings and keywords
//   - User feedback capture
//   - Consolidation ("dreaming") that distills records into insights
//
// All writes go through the client, which keeps the record store and
// the in-memory indexes in step. The client is thread-safe and can be
// used concurrently from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	record, _ := client.Save(ctx, "User prefers short answers",
//	    core.WithCategory(core.CategoryConversational),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// settings holds the runtime-tunable parameters.
	settings *Settings

	// store is the record store for memory persistence.
	store storage.RecordStore

	// embedder is the embedding provider for vector generation.
	embedder embedder.Provider

	// backend is the reasoning backend for consolidation.
	backend reasoning.Backend

	// vectors is the embedding index over active records.
	vectors index.VectorIndex

	// keywords is the inverted keyword index over active records.
	keywords *index.KeywordIndex

	// tokenizer splits content into keyword tokens.
	tokenizer index.Tokenizer

	// engine performs hybrid retrieval.
	engine *retrieval.Engine

	// consolidator runs consolidation cycles.
	consolidator *consolidation.Engine

	// snowflakeNode generates unique IDs for records.
	snowflakeNode *snowflake.Node

	// logger is the structured logger for all client operations.
	logger zerolog.Logger

	// mu serializes writes. All mutations of the store and indexes
	// happen under the write lock, so a record is visible to search
	// either completely or not at all.
	mu sync.RWMutex
}

// NewClient creates a new DreamMem client.
//
// The client is initialized with:
//   - Record store (SQLite, PostgreSQL, or MySQL)
//   - Embedding provider (OpenAI or Ollama)
//   - Reasoning backend (OpenAI or LM Studio)
//   - Vector index (flat or chromem), rebuilt from the store on startup
//
// Parameters:
//   - cfg: Configuration containing store, embedder, and reasoning settings
//
// Returns a new Client instance, or an error if initialization fails.
//
// Example:
//
//	config := &core.Config{
//	    Store:     core.StoreConfig{Provider: "sqlite", Config: map[string]interface{}{"db_path": "./dreammem.db"}},
//	    Embedder:  core.EmbedderConfig{Provider: "openai", APIKey: "sk-..."},
//	    Reasoning: core.ReasoningConfig{Provider: "openai", APIKey: "sk-..."},
//	}
//	client, err := core.NewClient(config)
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)

	store, err := initStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	embedderProvider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	backend, err := initReasoning(cfg.Reasoning)
	if err != nil {
		return nil, err
	}

	vectors, err := initIndex(cfg.Index)
	if err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	client := &Client{
		config:        cfg,
		settings:      newSettings(cfg),
		store:         store,
		embedder:      embedderProvider,
		backend:       backend,
		vectors:       vectors,
		keywords:      index.NewKeywordIndex(),
		tokenizer:     index.NewMixedScriptTokenizer(),
		snowflakeNode: node,
		logger:        logger,
	}

	client.engine = retrieval.NewEngine(
		embedderProvider,
		vectors,
		client.keywords,
		client.tokenizer,
		store,
		logger,
	)

	client.consolidator = consolidation.NewEngine(consolidation.Config{
		Store:     store,
		Backend:   backend,
		Embedder:  embedderProvider,
		Vectors:   vectors,
		Keywords:  client.keywords,
		Tokenizer: client.tokenizer,
		NewID:     func() int64 { return node.Generate().Int64() },
		Logger:    logger,
	})

	if err := client.rebuildIndexes(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// rebuildIndexes loads every active record from the store into the
// vector and keyword indexes. Archived records stay out.
func (c *Client) rebuildIndexes(ctx context.Context) error {
	records, err := c.store.ListActive(ctx, "")
	if err != nil {
		return NewMemoryError("NewClient", err)
	}

	for _, record := range records {
		if err := c.vectors.Add(ctx, record.ID, record.Embedding, record.CreatedAt); err != nil {
			return NewMemoryError("NewClient", err)
		}
		keywords := record.Keywords
		if len(keywords) == 0 {
			keywords = c.tokenizer.Tokenize(record.Content)
		}
		c.keywords.Add(record.ID, keywords)
	}

	c.logger.Info().Int("records", len(records)).Msg("indexes rebuilt from record store")
	return nil
}

// Save stores a new memory record.
//
// The method:
//  1. Validates the content and category
//  2. Generates an embedding vector and keyword tokens
//  3. Persists the record and updates both indexes
//
// The record becomes searchable only once Save returns; a failure at
// any step leaves the store and indexes unchanged, except that an index
// update failure after the insert is reported and healed on the next
// startup rebuild.
//
// Parameters:
//   - ctx: Context for cancellation
//   - content: Record content (must be non-empty)
//   - opts: Optional parameters (Category, Metadata)
//
// Returns the created Record, or an error if the operation fails.
// Saving into CategoryConsolidated is rejected; consolidated records
// are produced only by consolidation cycles.
//
// Example:
//
//	record, err := client.Save(ctx, "User prefers short answers",
//	    core.WithCategory(core.CategoryConversational),
//	    core.WithMetadata(map[string]interface{}{"source": "conversation"}),
//	)
func (c *Client) Save(ctx context.Context, content string, opts ...SaveOption) (*Record, error) {
	saveOpts := applySaveOptions(opts)

	if strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("Save", fmt.Errorf("%w: empty content", ErrValidation))
	}
	if !saveOpts.Category.Valid() {
		return nil, NewMemoryError("Save", fmt.Errorf("%w: unknown category %q", ErrValidation, saveOpts.Category))
	}
	if !saveOpts.Category.Writable() {
		return nil, NewMemoryError("Save", fmt.Errorf("%w: category %q is not writable", ErrValidation, saveOpts.Category))
	}

	embedding, err := c.embedder.Embed(ctx, content)
	if err != nil {
		return nil, NewMemoryError("Save", err)
	}

	record := &Record{
		ID:        c.snowflakeNode.Generate().Int64(),
		Content:   content,
		Category:  saveOpts.Category,
		Embedding: embedding,
		Keywords:  c.tokenizer.Tokenize(content),
		Metadata:  saveOpts.Metadata,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Insert(ctx, toStorageRecord(record)); err != nil {
		return nil, NewMemoryError("Save", err)
	}
	if err := c.vectors.Add(ctx, record.ID, record.Embedding, record.CreatedAt); err != nil {
		return nil, NewMemoryError("Save", err)
	}
	c.keywords.Add(record.ID, record.Keywords)

	c.logger.Debug().Int64("record_id", record.ID).Str("category", string(record.Category)).Msg("record saved")
	return record, nil
}

// SaveExchange stores a raw user/assistant exchange as a single record
// in CategoryExchange.
//
// Example:
//
//	record, err := client.SaveExchange(ctx, "How do I sort a map?", "Maps are unordered; sort the keys instead.")
func (c *Client) SaveExchange(ctx context.Context, userMessage, assistantMessage string) (*Record, error) {
	if strings.TrimSpace(userMessage) == "" && strings.TrimSpace(assistantMessage) == "" {
		return nil, NewMemoryError("SaveExchange", fmt.Errorf("%w: empty exchange", ErrValidation))
	}

	content := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantMessage)
	return c.Save(ctx, content,
		WithCategory(CategoryExchange),
		WithMetadata(map[string]interface{}{"source": "exchange"}),
	)
}

// Get retrieves a record by ID, archived or not.
//
// Returns ErrNotFound (wrapped) if no record has the given ID.
func (c *Client) Get(ctx context.Context, id int64) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, err := c.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NewMemoryError("Get", ErrNotFound)
	}
	if err != nil {
		return nil, NewMemoryError("Get", err)
	}
	return fromStorageRecord(record), nil
}

// ListActive returns all non-archived records in insertion order,
// optionally filtered by category (empty category means all).
func (c *Client) ListActive(ctx context.Context, category Category) ([]*Record, error) {
	if category != "" && !category.Valid() {
		return nil, NewMemoryError("ListActive", fmt.Errorf("%w: unknown category %q", ErrValidation, category))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	records, err := c.store.ListActive(ctx, storage.Category(category))
	if err != nil {
		return nil, NewMemoryError("ListActive", err)
	}
	return fromStorageRecords(records), nil
}

// Archive marks records as archived and removes them from both indexes.
// Archived records stay in the store but never appear in search results.
//
// Archiving is idempotent: already-archived and unknown IDs are skipped,
// and the returned count covers only records newly archived by this
// call.
func (c *Client) Archive(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	archived, err := c.store.Archive(ctx, ids)
	if err != nil {
		return 0, NewMemoryError("Archive", err)
	}
	if err := c.vectors.Remove(ctx, ids); err != nil {
		return archived, NewMemoryError("Archive", err)
	}
	c.keywords.Remove(ids)

	c.logger.Debug().Int("archived", archived).Msg("records archived")
	return archived, nil
}

// UpdateMetadata replaces a record's metadata.
//
// Returns ErrNotFound (wrapped) if no record has the given ID.
func (c *Client) UpdateMetadata(ctx context.Context, id int64, metadata map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.UpdateMetadata(ctx, id, metadata)
	if errors.Is(err, storage.ErrNotFound) {
		return NewMemoryError("UpdateMetadata", ErrNotFound)
	}
	return NewMemoryError("UpdateMetadata", err)
}

// Search performs hybrid search over the active records.
//
// Vector candidates and keyword matches are merged, filtered by the
// relevance threshold, and ranked by score with more recent records
// winning ties. Archived records never appear; self-observation records
// appear only when requested. An empty result is a valid outcome.
//
// The relevance threshold is read from the client settings at every
// call, so Settings().SetRelevanceThreshold takes effect on the next
// search.
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: Search text (must be non-empty)
//   - opts: Optional parameters (Limit, Categories, SelfObservation, threshold override)
//
// Returns matching records best first, with Score populated.
//
// Example:
//
//	results, err := client.Search(ctx, "answer style", core.WithLimit(10))
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) ([]*Record, error) {
	searchOpts := applySearchOptions(opts)

	if strings.TrimSpace(query) == "" {
		return nil, NewMemoryError("Search", fmt.Errorf("%w: empty query", ErrValidation))
	}
	for _, category := range searchOpts.Categories {
		if !category.Valid() {
			return nil, NewMemoryError("Search", fmt.Errorf("%w: unknown category %q", ErrValidation, category))
		}
	}

	limit := searchOpts.Limit
	if limit <= 0 {
		limit = c.settings.DefaultLimit()
	}
	threshold := c.settings.RelevanceThreshold()
	if searchOpts.RelevanceThreshold != nil {
		threshold = *searchOpts.RelevanceThreshold
	}

	categories := make([]storage.Category, len(searchOpts.Categories))
	for i, category := range searchOpts.Categories {
		categories[i] = storage.Category(category)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	results, err := c.engine.Search(ctx, retrieval.Query{
		Text:                   query,
		Limit:                  limit,
		RelevanceThreshold:     threshold,
		KeywordHitScore:        c.settings.KeywordHitScore(),
		IncludeSelfObservation: searchOpts.IncludeSelfObservation,
		Categories:             categories,
	})
	if errors.Is(err, index.ErrInconsistent) {
		return nil, NewMemoryError("Search", ErrIndexInconsistency)
	}
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	return fromStorageRecords(results), nil
}

// SaveFeedback queues a correction from the user for the next
// consolidation cycle. Feedback is given the highest priority when the
// cycle builds its reasoning prompt.
//
// Example:
//
//	item, err := client.SaveFeedback(ctx, "stop using bullet points for everything")
func (c *Client) SaveFeedback(ctx context.Context, content string, opts ...FeedbackOption) (*FeedbackItem, error) {
	feedbackOpts := applyFeedbackOptions(opts)

	if strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("SaveFeedback", fmt.Errorf("%w: empty content", ErrValidation))
	}

	item := &FeedbackItem{
		ID:        uuid.NewString(),
		Content:   content,
		Context:   feedbackOpts.Context,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.InsertFeedback(ctx, &storage.FeedbackItem{
		ID:        item.ID,
		Content:   item.Content,
		Context:   item.Context,
		CreatedAt: item.CreatedAt,
	}); err != nil {
		return nil, NewMemoryError("SaveFeedback", err)
	}

	c.logger.Debug().Str("feedback_id", item.ID).Msg("feedback saved")
	return item, nil
}

// PendingFeedback returns the feedback items not yet consumed by a
// consolidation cycle, oldest first.
func (c *Client) PendingFeedback(ctx context.Context) ([]*FeedbackItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, err := c.store.ListUnconsumedFeedback(ctx)
	if err != nil {
		return nil, NewMemoryError("PendingFeedback", err)
	}

	result := make([]*FeedbackItem, len(items))
	for i, item := range items {
		result[i] = fromStorageFeedback(item)
	}
	return result, nil
}

// ShouldConsolidate reports whether the active record count has reached
// the consolidation threshold. The threshold is read fresh from the
// client settings.
func (c *Client) ShouldConsolidate(ctx context.Context) (bool, error) {
	count, err := c.store.CountActive(ctx)
	if err != nil {
		return false, NewMemoryError("ShouldConsolidate", err)
	}
	return count >= c.settings.ConsolidationThreshold(), nil
}

// Consolidate runs one consolidation cycle: it drains the active
// records and pending feedback, asks the reasoning backend to distill
// them into insights, stores the insights as consolidated records, and
// archives the drained snapshot, all committed atomically.
//
// Records saved while the cycle runs are not part of the snapshot and
// survive it untouched. Any failure before the commit leaves the store
// exactly as it was. A cycle with nothing to consolidate succeeds as a
// no-op with Skipped set.
//
// Returns ErrConsolidationRunning (wrapped) if a cycle is already in
// progress, ErrBackendTimeout if the reasoning call exceeds the
// configured timeout, and ErrBackendUnavailable if the backend fails.
func (c *Client) Consolidate(ctx context.Context) (*ConsolidationResult, error) {
	result, err := c.consolidator.Run(ctx, consolidation.RunParams{
		ReasoningTimeout: c.settings.ReasoningTimeout(),
	})
	if err != nil {
		switch {
		case errors.Is(err, consolidation.ErrCycleInProgress):
			return nil, NewMemoryError("Consolidate", ErrConsolidationRunning)
		case errors.Is(err, consolidation.ErrReasoningTimeout):
			return nil, NewMemoryError("Consolidate", ErrBackendTimeout)
		case errors.Is(err, consolidation.ErrReasoningFailed):
			return nil, NewMemoryError("Consolidate", fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
		default:
			return nil, NewMemoryError("Consolidate", err)
		}
	}

	return &ConsolidationResult{
		Skipped:           result.Skipped,
		MemoriesProcessed: result.MemoriesProcessed,
		FeedbacksUsed:     result.FeedbacksUsed,
		Insights:          result.Insights,
		RecordsArchived:   result.RecordsArchived,
		Duration:          result.Duration,
	}, nil
}

// ConsolidationPhase returns the current phase of the consolidation
// engine ("idle" when no cycle is running).
func (c *Client) ConsolidationPhase() string {
	return c.consolidator.Phase().String()
}

// Stats returns the current state of the memory store.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count, err := c.store.CountActive(ctx)
	if err != nil {
		return nil, NewMemoryError("Stats", err)
	}
	feedback, err := c.store.ListUnconsumedFeedback(ctx)
	if err != nil {
		return nil, NewMemoryError("Stats", err)
	}

	threshold := c.settings.ConsolidationThreshold()
	return &Stats{
		ActiveRecords:          count,
		PendingFeedback:        len(feedback),
		ConsolidationThreshold: threshold,
		ConsolidationDue:       count >= threshold,
	}, nil
}

// Settings returns the client's runtime-tunable settings.
func (c *Client) Settings() *Settings {
	return c.settings
}

// Close closes the client and releases all resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if err := c.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return NewMemoryError("Close", errors.Join(errs...))
	}
	return nil
}

// newLogger builds the client logger at the configured level.
func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Str("component", "dreammem").Logger()
}

// initStore initializes the record store based on configuration.
func initStore(cfg StoreConfig) (storage.RecordStore, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:    getStringConfig(cfg.Config, "db_path", "./dreammem.db"),
			TableName: getStringConfig(cfg.Config, "table_name", "records"),
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:      getStringConfig(cfg.Config, "host", "localhost"),
			Port:      getIntConfig(cfg.Config, "port", 5432),
			User:      getStringConfig(cfg.Config, "user", "postgres"),
			Password:  getStringConfig(cfg.Config, "password", ""),
			DBName:    getStringConfig(cfg.Config, "db_name", "dreammem"),
			TableName: getStringConfig(cfg.Config, "table_name", "records"),
			SSLMode:   getStringConfig(cfg.Config, "ssl_mode", "disable"),
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:      getStringConfig(cfg.Config, "host", "127.0.0.1"),
			Port:      getIntConfig(cfg.Config, "port", 3306),
			User:      getStringConfig(cfg.Config, "user", "root"),
			Password:  getStringConfig(cfg.Config, "password", ""),
			DBName:    getStringConfig(cfg.Config, "db_name", "dreammem"),
			TableName: getStringConfig(cfg.Config, "table_name", "records"),
		})
	default:
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: unknown store provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder initializes the embedding provider based on configuration.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "ollama":
		return ollamaEmbedder.NewClient(&ollamaEmbedder.Config{
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initReasoning initializes the reasoning backend based on configuration.
// The lmstudio provider is the OpenAI-compatible API of a local LM
// Studio server and shares the openai client.
func initReasoning(cfg ReasoningConfig) (reasoning.Backend, error) {
	switch cfg.Provider {
	case "openai":
		return openaiReasoning.NewClient(&openaiReasoning.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "lmstudio":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:1234/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "lm-studio"
		}
		return openaiReasoning.NewClient(&openaiReasoning.Config{
			APIKey:  apiKey,
			Model:   cfg.Model,
			BaseURL: baseURL,
		})
	default:
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: unknown reasoning provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initIndex initializes the vector index based on configuration.
func initIndex(cfg IndexConfig) (index.VectorIndex, error) {
	switch cfg.Provider {
	case "", "flat":
		return index.NewFlatIndex(), nil
	case "chromem":
		return chromemIndex.NewIndex(&chromemIndex.Config{
			PersistPath: cfg.Path,
		})
	default:
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: unknown index provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// getStringConfig extracts a string value from a config map.
func getStringConfig(config map[string]interface{}, key, defaultValue string) string {
	if value, ok := config[key].(string); ok && value != "" {
		return value
	}
	return defaultValue
}

// getIntConfig extracts an integer value from a config map.
func getIntConfig(config map[string]interface{}, key string, defaultValue int) int {
	switch value := config[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	default:
		return defaultValue
	}
}
