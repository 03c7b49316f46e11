// Package core provides the main DreamMem client and memory management functionality.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the complete configuration for a DreamMem client.
//
// It includes settings for:
//   - Record store (for memory persistence)
//   - Embedding provider (for vector generation)
//   - Reasoning backend (for consolidation)
//   - Vector index (flat or chromem)
//   - Retrieval and consolidation tuning
//
// Example:
//
//	config := &core.Config{
//	    Store: core.StoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./dreammem.db",
//	        },
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    Reasoning: core.ReasoningConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	        Model:    "gpt-4o-mini",
//	    },
//	}
type Config struct {
	// Store contains record store configuration.
	Store StoreConfig `json:"store" yaml:"store"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// Reasoning contains reasoning backend configuration.
	Reasoning ReasoningConfig `json:"reasoning" yaml:"reasoning"`

	// Index contains vector index configuration.
	Index IndexConfig `json:"index" yaml:"index"`

	// Retrieval contains search tuning.
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`

	// Consolidation contains consolidation tuning.
	Consolidation ConsolidationConfig `json:"consolidation" yaml:"consolidation"`

	// LogLevel sets the logging level (trace, debug, info, warn, error).
	// Defaults to "info".
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// StoreConfig contains configuration for the record store.
//
// Supported providers: sqlite, postgres, mysql
//
// Example:
//
//	storeConfig := core.StoreConfig{
//	    Provider: "sqlite",
//	    Config: map[string]interface{}{
//	        "db_path":    "./dreammem.db",
//	        "table_name": "records",
//	    },
//	}
type StoreConfig struct {
	// Provider is the record store provider name (sqlite, postgres, mysql).
	Provider string `json:"provider" yaml:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_name
	// For PostgreSQL: host, port, user, password, db_name, table_name, ssl_mode
	// For MySQL: host, port, user, password, db_name, table_name
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, ollama
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, ollama).
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small", "nomic-embed-text").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536, 768).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// ReasoningConfig contains configuration for the reasoning backend used
// by consolidation.
//
// Supported providers: openai, lmstudio. The lmstudio provider is the
// OpenAI-compatible API of a local LM Studio server.
type ReasoningConfig struct {
	// Provider is the reasoning backend name (openai, lmstudio).
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key (local servers accept any value).
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model name to use.
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// IndexConfig contains configuration for the vector index.
//
// Supported providers: flat (default), chromem
type IndexConfig struct {
	// Provider is the vector index provider name (flat, chromem).
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Path persists a chromem index on disk when set.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// RetrievalConfig contains search tuning.
type RetrievalConfig struct {
	// RelevanceThreshold drops search candidates scoring below it.
	// Defaults to 0.85.
	RelevanceThreshold float64 `json:"relevance_threshold,omitempty" yaml:"relevance_threshold,omitempty"`

	// KeywordHitScore is the fixed score assigned to keyword-only hits.
	// Defaults to 0.85.
	KeywordHitScore float64 `json:"keyword_hit_score,omitempty" yaml:"keyword_hit_score,omitempty"`

	// DefaultLimit is the result limit used when a search does not set
	// one. Defaults to 5.
	DefaultLimit int `json:"default_limit,omitempty" yaml:"default_limit,omitempty"`
}

// ConsolidationConfig contains consolidation tuning.
type ConsolidationConfig struct {
	// Threshold is the active record count at which consolidation is
	// recommended. Defaults to 30.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// TimeoutSeconds bounds the reasoning call of a cycle. Defaults to 120.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Defaults for retrieval and consolidation tuning.
const (
	DefaultRelevanceThreshold     = 0.85
	DefaultKeywordHitScore        = 0.85
	DefaultSearchLimit            = 5
	DefaultConsolidationThreshold = 30
	DefaultTimeoutSeconds         = 120
)

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH, SQLITE_TABLE
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, etc.
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - REASONING_PROVIDER, REASONING_API_KEY, REASONING_MODEL, REASONING_BASE_URL
//   - INDEX_PROVIDER (flat, chromem), INDEX_PATH
//   - RETRIEVAL_RELEVANCE_THRESHOLD, RETRIEVAL_KEYWORD_HIT_SCORE, RETRIEVAL_DEFAULT_LIMIT
//   - CONSOLIDATION_THRESHOLD, CONSOLIDATION_TIMEOUT_SECONDS
//   - LOG_LEVEL
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	storeConfig := make(map[string]interface{})
	switch provider {
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path":    getEnvOrDefault("SQLITE_PATH", "./dreammem.db"),
			"table_name": getEnvOrDefault("SQLITE_TABLE", "records"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		storeConfig = map[string]interface{}{
			"host":       getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":       port,
			"user":       getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":   os.Getenv("POSTGRES_PASSWORD"),
			"db_name":    getEnvOrDefault("POSTGRES_DATABASE", "dreammem"),
			"table_name": getEnvOrDefault("POSTGRES_TABLE", "records"),
			"ssl_mode":   getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		storeConfig = map[string]interface{}{
			"host":       getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			"port":       port,
			"user":       getEnvOrDefault("MYSQL_USER", "root"),
			"password":   os.Getenv("MYSQL_PASSWORD"),
			"db_name":    getEnvOrDefault("MYSQL_DATABASE", "dreammem"),
			"table_name": getEnvOrDefault("MYSQL_TABLE", "records"),
		}
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	embedderModel := os.Getenv("EMBEDDING_MODEL")
	embedderBaseURL := os.Getenv("EMBEDDING_BASE_URL")
	dimensions, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "0"))
	switch embedderProvider {
	case "ollama":
		if embedderBaseURL == "" {
			embedderBaseURL = "http://localhost:11434"
		}
		if embedderModel == "" {
			embedderModel = "nomic-embed-text"
		}
	default:
		if embedderModel == "" {
			embedderModel = "text-embedding-3-small"
		}
	}

	reasoningProvider := getEnvOrDefault("REASONING_PROVIDER", "openai")
	reasoningBaseURL := os.Getenv("REASONING_BASE_URL")
	reasoningModel := os.Getenv("REASONING_MODEL")
	if reasoningProvider == "lmstudio" && reasoningBaseURL == "" {
		reasoningBaseURL = "http://localhost:1234/v1"
	}

	config := &Config{
		Store: StoreConfig{
			Provider: provider,
			Config:   storeConfig,
		},
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      embedderModel,
			BaseURL:    embedderBaseURL,
			Dimensions: dimensions,
		},
		Reasoning: ReasoningConfig{
			Provider: reasoningProvider,
			APIKey:   os.Getenv("REASONING_API_KEY"),
			Model:    reasoningModel,
			BaseURL:  reasoningBaseURL,
		},
		Index: IndexConfig{
			Provider: getEnvOrDefault("INDEX_PROVIDER", "flat"),
			Path:     os.Getenv("INDEX_PATH"),
		},
		Retrieval: RetrievalConfig{
			RelevanceThreshold: getEnvFloat("RETRIEVAL_RELEVANCE_THRESHOLD", DefaultRelevanceThreshold),
			KeywordHitScore:    getEnvFloat("RETRIEVAL_KEYWORD_HIT_SCORE", DefaultKeywordHitScore),
			DefaultLimit:       getEnvInt("RETRIEVAL_DEFAULT_LIMIT", DefaultSearchLimit),
		},
		Consolidation: ConsolidationConfig{
			Threshold:      getEnvInt("CONSOLIDATION_THRESHOLD", DefaultConsolidationThreshold),
			TimeoutSeconds: getEnvInt("CONSOLIDATION_TIMEOUT_SECONDS", DefaultTimeoutSeconds),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	config.applyDefaults()
	return &config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills zero-valued tuning fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Index.Provider == "" {
		c.Index.Provider = "flat"
	}
	if c.Retrieval.RelevanceThreshold == 0 {
		c.Retrieval.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if c.Retrieval.KeywordHitScore == 0 {
		c.Retrieval.KeywordHitScore = DefaultKeywordHitScore
	}
	if c.Retrieval.DefaultLimit == 0 {
		c.Retrieval.DefaultLimit = DefaultSearchLimit
	}
	if c.Consolidation.Threshold == 0 {
		c.Consolidation.Threshold = DefaultConsolidationThreshold
	}
	if c.Consolidation.TimeoutSeconds == 0 {
		c.Consolidation.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate validates the configuration.
//
// Checks that all required fields are set:
//   - Store provider must be specified
//   - Embedder provider must be specified
//   - Reasoning provider must be specified
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Store.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.Embedder.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.Reasoning.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	// First check the current directory
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	// Check project root directory (search upward)
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
