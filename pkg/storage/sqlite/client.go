// Package sqlite provides a SQLite chat-log store.
//
// SQLite is a file-based database suited to local development and
// single-host deployments. Embeddings are stored as JSON arrays in TEXT columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oswaldbot/relay-go/pkg/storage"
)

// Client implements storage.ChatLogStore on SQLite.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains configuration for the SQLite chat-log store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the table to use. Defaults to "chat_logs".
	TableName string

	// EmbeddingModelDims is the dimension of embedding vectors.
	// Zero disables the dimension check.
	EmbeddingModelDims int
}

// NewClient opens (and if needed creates) the SQLite chat-log store.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = storage.DefaultTableName
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: cfg.EmbeddingModelDims,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			prompt_embedding TEXT NOT NULL,
			response_embedding TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_username ON %s(username, created_at)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert stores a chat log.
func (c *Client) Insert(ctx context.Context, log *storage.ChatLog) error {
	if err := storage.Validate(log, c.dimensions); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	promptJSON, err := json.Marshal(log.PromptEmbedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	responseJSON, err := json.Marshal(log.ResponseEmbedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, username, prompt, response, prompt_embedding, response_embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		log.ID,
		log.Username,
		log.Prompt,
		log.Response,
		string(promptJSON),
		string(responseJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// ListByUser returns up to limit logs for username, newest first.
func (c *Client) ListByUser(ctx context.Context, username string, limit int) ([]*storage.ChatLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, username, prompt, response, prompt_embedding, response_embedding, created_at
		FROM %s
		WHERE username = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*storage.ChatLog
	for rows.Next() {
		var log storage.ChatLog
		var promptJSON, responseJSON string
		if err := rows.Scan(
			&log.ID,
			&log.Username,
			&log.Prompt,
			&log.Response,
			&promptJSON,
			&responseJSON,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListByUser: %w", err)
		}
		if err := json.Unmarshal([]byte(promptJSON), &log.PromptEmbedding); err != nil {
			return nil, fmt.Errorf("ListByUser: parse prompt embedding: %w", err)
		}
		if err := json.Unmarshal([]byte(responseJSON), &log.ResponseEmbedding); err != nil {
			return nil, fmt.Errorf("ListByUser: parse response embedding: %w", err)
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}

	return logs, nil
}

// CountByUser returns the number of logs stored for username.
func (c *Client) CountByUser(ctx context.Context, username string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE username = ?", c.tableName)

	var count int
	if err := c.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountByUser: %w", err)
	}
	return count, nil
}

// ListUsernames returns every username with at least one log, sorted.
func (c *Client) ListUsernames(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT username FROM %s ORDER BY username", c.tableName)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListUsernames: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("ListUsernames: %w", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUsernames: %w", err)
	}
	return usernames, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
