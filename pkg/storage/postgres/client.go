// Package postgres provides a PostgreSQL + pgvector chat-log store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/oswaldbot/relay-go/pkg/storage"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Client is a PostgreSQL + pgvector chat-log store.
type Client struct {
	db         *sql.DB
	schema     string
	table      string
	dimensions int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// Schema holds the chat-log table. Created if missing. Defaults to "public".
	Schema string

	// TableName defaults to "chat_logs".
	TableName string

	// EmbeddingModelDims sizes the VECTOR columns. Defaults to 768.
	EmbeddingModelDims int

	SSLMode string
}

// DSN returns the lib/pq connection string for cfg.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// NewClient connects to PostgreSQL and prepares the schema, the vector
// extension and the chat-log table.
func NewClient(cfg *Config) (*Client, error) {
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	table := cfg.TableName
	if table == "" {
		table = storage.DefaultTableName
	}
	if !identPattern.MatchString(schema) || !identPattern.MatchString(table) {
		return nil, fmt.Errorf("NewPostgresClient: invalid schema or table name %q.%q", schema, table)
	}
	dims := cfg.EmbeddingModelDims
	if dims <= 0 {
		dims = 768
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{
		db:         db,
		schema:     schema,
		table:      table,
		dimensions: dims,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) qualified() string {
	return c.schema + "." + c.table
}

func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", c.schema)); err != nil {
		return fmt.Errorf("initTables: create schema: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			prompt_embedding VECTOR(%d),
			response_embedding VECTOR(%d),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`, c.qualified(), c.dimensions, c.dimensions)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_username ON %s(username, created_at)
	`, c.table, c.qualified())
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.qualified())

	_, err := c.db.ExecContext(ctx, query,
		log.ID,
		log.Username,
		log.Prompt,
		log.Response,
		storage.FormatVector(log.PromptEmbedding),
		storage.FormatVector(log.ResponseEmbedding),
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
		SELECT id, username, prompt, response,
		       prompt_embedding::text, response_embedding::text, created_at
		FROM %s
		WHERE username = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, c.qualified())

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
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE username = $1", c.qualified())

	var count int
	if err := c.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountByUser: %w", err)
	}
	return count, nil
}

// ListUsernames returns every username with at least one log, sorted.
func (c *Client) ListUsernames(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT username FROM %s ORDER BY username", c.qualified())

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

// DB exposes the connection pool so that other stores can share it.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
