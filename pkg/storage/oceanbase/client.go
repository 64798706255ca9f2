// Package oceanbase provides an OceanBase chat-log store using native VECTOR columns.
package oceanbase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/oswaldbot/relay-go/pkg/storage"
)

// Client is an OceanBase chat-log store.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains OceanBase configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// TableName defaults to "chat_logs".
	TableName string

	// EmbeddingModelDims sizes the VECTOR columns. Defaults to 768.
	EmbeddingModelDims int
}

// DSN returns the MySQL-protocol connection string for cfg.
func (cfg *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// NewClient connects to OceanBase and prepares the chat-log table.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = storage.DefaultTableName
	}
	dims := cfg.EmbeddingModelDims
	if dims <= 0 {
		dims = 768
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: dims,
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
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			prompt LONGTEXT NOT NULL,
			response LONGTEXT NOT NULL,
			prompt_embedding VECTOR(%d),
			response_embedding VECTOR(%d),
			created_at DATETIME(6) NOT NULL,
			INDEX idx_username_created (username, created_at)
		)
	`, c.tableName, c.dimensions, c.dimensions)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert stores a chat log.
func (c *Client) Insert(ctx context.Context, log *storage.ChatLog) error {
	if err := storage.Validate(log, c.dimensions); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, username, prompt, response, prompt_embedding, response_embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query,
		log.ID,
		log.Username,
		log.Prompt,
		log.Response,
		storage.FormatVector(log.PromptEmbedding),
		storage.FormatVector(log.ResponseEmbedding),
		createdAt.UTC(),
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
		var promptVec, responseVec sql.NullString
		if err := rows.Scan(
			&log.ID,
			&log.Username,
			&log.Prompt,
			&log.Response,
			&promptVec,
			&responseVec,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListByUser: %w", err)
		}
		if log.PromptEmbedding, err = storage.ParseVector(promptVec.String); err != nil {
			return nil, fmt.Errorf("ListByUser: %w", err)
		}
		if log.ResponseEmbedding, err = storage.ParseVector(responseVec.String); err != nil {
			return nil, fmt.Errorf("ListByUser: %w", err)
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
