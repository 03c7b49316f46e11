// Package sqlite provides the SQLite implementation of the record store.
//
// SQLite is a lightweight, file-based database suitable for local single-user
// deployments, which is the default for this module. Embeddings, keywords and
// metadata are stored as JSON strings in TEXT fields.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/metacoglab/dreammem-go/pkg/storage"
)

// Client implements storage.RecordStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records. The feedback
	// table is derived from it as <tableName>_feedback.
	tableName string
}

// Config contains configuration for creating a SQLite record store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the records table. Defaults to "records".
	TableName string
}

// NewClient creates a new SQLite record store.
//
// The parent directory of DBPath is created if missing, and the record and
// feedback tables are initialized on first use.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "records"
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
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

// initTables initializes the record and feedback tables.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			embedding TEXT NOT NULL,
			keywords TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			archived INTEGER NOT NULL DEFAULT 0,
			archived_at DATETIME
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
			context TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			consumed INTEGER NOT NULL DEFAULT 0,
			consumed_at DATETIME
		)
	`, c.tableName)
	if _, err := c.db.ExecContext(ctx, feedbackQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert persists a record.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	return c.insertTx(ctx, c.db, record)
}

// execer abstracts *sql.DB and *sql.Tx so inserts can run inside the
// consolidation commit transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (c *Client) insertTx(ctx context.Context, ex execer, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, content, category, embedding, keywords, metadata, created_at, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
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
		WHERE id = ?
	`, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	record, err := scanRecord(row)
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
	where := "WHERE archived = 0"
	args := []interface{}{}
	if category != "" {
		where += " AND category = ?"
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

// Archive marks records as archived. Already-archived and unknown ids are
// skipped; the return value counts newly archived rows only.
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
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET archived = 1, archived_at = ?
		WHERE archived = 0 AND id IN (%s)
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

	query := fmt.Sprintf("UPDATE %s SET metadata = ? WHERE id = ?", c.tableName)
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
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE archived = 0", c.tableName)

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
		VALUES (?, ?, ?, ?, 0)
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
		WHERE consumed = 0
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
		var consumed int
		if err := rows.Scan(&item.ID, &item.Content, &contextStr, &item.CreatedAt, &consumed); err != nil {
			return nil, fmt.Errorf("ListUnconsumedFeedback: %w", err)
		}
		if contextStr.Valid && contextStr.String != "" {
			if err := json.Unmarshal([]byte(contextStr.String), &item.Context); err != nil {
				return nil, fmt.Errorf("ListUnconsumedFeedback: parse context: %w", err)
			}
		}
		item.Consumed = consumed != 0
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnconsumedFeedback: %w", err)
	}

	return items, nil
}

// CommitConsolidation applies a consolidation outcome in one transaction:
// inserts the derived insight records, archives the snapshotted record ids,
// and marks the snapshotted feedback items consumed.
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
			placeholders[i] = "?"
			args = append(args, id)
		}
		query := fmt.Sprintf(`
			UPDATE %s_feedback SET consumed = 1, consumed_at = ?
			WHERE consumed = 0 AND id IN (%s)
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
	var archived int

	var err error
	switch s := scanner.(type) {
	case *sql.Row:
		err = s.Scan(&record.ID, &record.Content, &category, &embeddingStr, &keywordsStr, &metadataStr, &record.CreatedAt, &archived)
	case *sql.Rows:
		err = s.Scan(&record.ID, &record.Content, &category, &embeddingStr, &keywordsStr, &metadataStr, &record.CreatedAt, &archived)
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}
	if err != nil {
		return nil, err
	}

	record.Category = storage.Category(category)
	record.Archived = archived != 0

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
