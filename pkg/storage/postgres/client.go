// Package postgres provides the PostgreSQL implementation of the record store.
//
// Embeddings, keywords and metadata are stored as JSONB columns. Suitable for
// deployments that already run PostgreSQL; behavior matches the SQLite store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/metacoglab/dreammem-go/pkg/storage"
)

// Client implements storage.RecordStore using PostgreSQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a PostgreSQL record store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// TableName is the name of the records table. Defaults to "records".
	TableName string

	// SSLMode is the libpq sslmode parameter. Defaults to "disable".
	SSLMode string
}

// NewClient creates a new PostgreSQL record store.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "records"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{
		db:        db,
		tableName: cfg.TableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			embedding JSONB NOT NULL,
			keywords JSONB NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TIMESTAMPTZ
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_category_archived ON %s(category, archived)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	feedbackQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_feedback (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			context JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			consumed BOOLEAN NOT NULL DEFAULT FALSE,
			consumed_at TIMESTAMPTZ
		)
	`, c.tableName)
	if _, err := c.db.ExecContext(ctx, feedbackQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Insert persists a record.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	return c.insertTx(ctx, c.db, record)
}

func (c *Client) insertTx(ctx context.Context, ex execer, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, content, category, embedding, keywords, metadata, created_at, archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
	`, c.tableName)

	embeddingJSON, err := json.Marshal(record.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	keywordsJSON, err := json.Marshal(record.Keywords)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = ex.ExecContext(ctx, query,
		record.ID,
		record.Content,
		string(record.Category),
		string(embeddingJSON),
		string(keywordsJSON),
		string(metadataJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, content, category, embedding, keywords, metadata, created_at, archived
		FROM %s
		WHERE id = $1
	`, c.tableName)

	record, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return record, nil
}

// ListActive returns all non-archived records in insertion order.
func (c *Client) ListActive(ctx context.Context, category storage.Category) ([]*storage.Record, error) {
	where := "WHERE archived = FALSE"
	args := []interface{}{}
	if category != "" {
		where += " AND category = $1"
		args = append(args, string(category))
	}

	query := fmt.Sprintf(`
		SELECT id, content, category, embedding, keywords, metadata, created_at, archived
		FROM %s
		%s
		ORDER BY id
	`, c.tableName, where)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}

	return records, nil
}

// Archive marks records as archived and returns the newly archived count.
func (c *Client) Archive(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return c.archiveTx(ctx, c.db, ids)
}

func (c *Client) archiveTx(ctx context.Context, ex execer, ids []int64) (int, error) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now())
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET archived = TRUE, archived_at = $1
		WHERE archived = FALSE AND id IN (%s)
	`, c.tableName, strings.Join(placeholders, ", "))

	result, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("Archive: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Archive: %w", err)
	}

	return int(affected), nil
}

// UpdateMetadata replaces a record's metadata.
func (c *Client) UpdateMetadata(ctx context.Context, id int64, metadata map[string]interface{}) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("UpdateMetadata: %w", err)
	}

	query := fmt.Sprintf("UPDATE %s SET metadata = $1 WHERE id = $2", c.tableName)
	result, err := c.db.ExecContext(ctx, query, string(metadataJSON), id)
	if err != nil {
		return fmt.Errorf("UpdateMetadata: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateMetadata: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// CountActive returns the number of non-archived records.
func (c *Client) CountActive(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE archived = FALSE", c.tableName)

	var count int
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountActive: %w", err)
	}

	return count, nil
}

// InsertFeedback persists a feedback item.
func (c *Client) InsertFeedback(ctx context.Context, item *storage.FeedbackItem) error {
	contextJSON, err := json.Marshal(item.Context)
	if err != nil {
		return fmt.Errorf("InsertFeedback: %w", err)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s_feedback (id, content, context, created_at, consumed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query, item.ID, item.Content, string(contextJSON), createdAt); err != nil {
		return fmt.Errorf("InsertFeedback: %w", err)
	}

	return nil
}

// ListUnconsumedFeedback returns unconsumed feedback items, oldest first.
func (c *Client) ListUnconsumedFeedback(ctx context.Context) ([]*storage.FeedbackItem, error) {
	query := fmt.Sprintf(`
		SELECT id, content, context, created_at, consumed
		FROM %s_feedback
		WHERE consumed = FALSE
		ORDER BY created_at
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListUnconsumedFeedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*storage.FeedbackItem
	for rows.Next() {
		var item storage.FeedbackItem
		var contextStr sql.NullString
		if err := rows.Scan(&item.ID, &item.Content, &contextStr, &item.CreatedAt, &item.Consumed); err != nil {
			return nil, fmt.Errorf("ListUnconsumedFeedback: %w", err)
		}
		if contextStr.Valid && contextStr.String != "" {
			if err := json.Unmarshal([]byte(contextStr.String), &item.Context); err != nil {
				return nil, fmt.Errorf("ListUnconsumedFeedback: parse context: %w", err)
			}
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnconsumedFeedback: %w", err)
	}

	return items, nil
}

// CommitConsolidation applies a consolidation outcome in one transaction.
func (c *Client) CommitConsolidation(ctx context.Context, insights []*storage.Record, recordIDs []int64, feedbackIDs []string) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("CommitConsolidation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, insight := range insights {
		if err := c.insertTx(ctx, tx, insight); err != nil {
			return 0, fmt.Errorf("CommitConsolidation: %w", err)
		}
	}

	archived := 0
	if len(recordIDs) > 0 {
		archived, err = c.archiveTx(ctx, tx, recordIDs)
		if err != nil {
			return 0, fmt.Errorf("CommitConsolidation: %w", err)
		}
	}

	if len(feedbackIDs) > 0 {
		placeholders := make([]string, len(feedbackIDs))
		args := make([]interface{}, 0, len(feedbackIDs)+1)
		args = append(args, time.Now())
		for i, id := range feedbackIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, id)
		}
		query := fmt.Sprintf(`
			UPDATE %s_feedback SET consumed = TRUE, consumed_at = $1
			WHERE consumed = FALSE AND id IN (%s)
		`, c.tableName, strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("CommitConsolidation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("CommitConsolidation: %w", err)
	}

	return archived, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanRecord scans a record from a database row or rows.
func scanRecord(scanner interface{}) (*storage.Record, error) {
	var record storage.Record
	var category string
	var embeddingStr string
	var keywordsStr string
	var metadataStr sql.NullString

	var err error
	switch s := scanner.(type) {
	case *sql.Row:
		err = s.Scan(&record.ID, &record.Content, &category, &embeddingStr, &keywordsStr, &metadataStr, &record.CreatedAt, &record.Archived)
	case *sql.Rows:
		err = s.Scan(&record.ID, &record.Content, &category, &embeddingStr, &keywordsStr, &metadataStr, &record.CreatedAt, &record.Archived)
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}
	if err != nil {
		return nil, err
	}

	record.Category = storage.Category(category)

	if err := json.Unmarshal([]byte(embeddingStr), &record.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if err := json.Unmarshal([]byte(keywordsStr), &record.Keywords); err != nil {
		return nil, fmt.Errorf("parse keywords: %w", err)
	}
	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &record.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &record, nil
}
