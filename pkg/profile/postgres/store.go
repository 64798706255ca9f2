// Package postgres provides PostgreSQL implementation for profile storage.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/oswaldbot/relay-go/pkg/profile"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements profile.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	table  string
	ownsDB bool
}

// Config contains PostgreSQL configuration.
type Config struct {
	// DSN is a lib/pq connection string. Ignored when DB is set.
	DSN string

	// DB reuses an existing connection pool. The store does not close it.
	DB *sql.DB

	// Schema holds the profile table. Defaults to "public".
	Schema string

	// TableName defaults to "user_profiles".
	TableName string
}

// NewStore creates a new PostgreSQL profile store.
func NewStore(cfg *Config) (*Store, error) {
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	table := cfg.TableName
	if table == "" {
		table = "user_profiles"
	}
	if !identPattern.MatchString(schema) || !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid schema or table name %q.%q", schema, table)
	}

	db, ownsDB := cfg.DB, false
	if db == nil {
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
		ownsDB = true
	}

	store := &Store{db: db, table: schema + "." + table, ownsDB: ownsDB}
	if err := store.initTable(context.Background(), schema); err != nil {
		if ownsDB {
			_ = db.Close()
		}
		return nil, err
	}
	return store, nil
}

func (s *Store) initTable(ctx context.Context, schema string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			username TEXT PRIMARY KEY,
			profile_content TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// SaveProfile creates or replaces the profile content for username.
func (s *Store) SaveProfile(ctx context.Context, username, content string) error {
	now := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO %s (username, profile_content, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (username) DO UPDATE SET
			profile_content = EXCLUDED.profile_content,
			updated_at = EXCLUDED.updated_at
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query, username, content, now); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile for username, or nil if none exists.
func (s *Store) GetProfile(ctx context.Context, username string) (*profile.Profile, error) {
	query := fmt.Sprintf(`
		SELECT username, profile_content, created_at, updated_at
		FROM %s
		WHERE username = $1
	`, s.table)

	var p profile.Profile
	err := s.db.QueryRowContext(ctx, query, username).Scan(&p.Username, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// ListUsernames returns every username with a profile, sorted.
func (s *Store) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT username FROM %s ORDER BY username", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

// Close closes the connection pool if the store opened it.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}
