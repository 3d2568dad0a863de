// Package postgres reads course data out of PostgreSQL for the data-access
// tools. Access is read-only: writes are refused before they reach the
// database.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxQueryRows   = 500
	defaultConnectTimeout = 5 * time.Second
)

type Config struct {
	Logger *slog.Logger

	DatabaseURI string
	// MaxQueryRows caps the number of rows Query returns.
	MaxQueryRows int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.DatabaseURI == "" {
		return fmt.Errorf("database URI is required")
	}

	if c.MaxQueryRows == 0 {
		c.MaxQueryRows = defaultMaxQueryRows
	}

	return nil
}

// Store wraps a pgx pool with the three lookups the tools need.
type Store struct {
	log  *slog.Logger
	cfg  *Config
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URI: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg.Logger.Info("postgres: connected", "database", poolConfig.ConnConfig.Database)

	return &Store{
		log:  cfg.Logger,
		cfg:  &cfg,
		pool: pool,
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Object is one table or view visible in a schema.
type Object struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ListObjects returns the tables and views in the given schema.
func (s *Store) ListObjects(ctx context.Context, schema string) ([]Object, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name,
		       CASE table_type WHEN 'BASE TABLE' THEN 'table' ELSE lower(table_type) END
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Name, &o.Type); err != nil {
			return nil, fmt.Errorf("failed to scan object row: %w", err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read object rows: %w", err)
	}

	return objects, nil
}

// Column describes one column of an object.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// GetObjectDetails returns the columns of one object, in ordinal order.
func (s *Store) GetObjectDetails(ctx context.Context, object, schema string) ([]Column, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schema, object)
	if err != nil {
		return nil, fmt.Errorf("failed to describe object: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column rows: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("object %q not found in schema %q", object, schema)
	}

	return columns, nil
}

// QueryResult is the row set one query produced.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

// Query runs one read-only statement and returns its rows, capped at
// MaxQueryRows.
func (s *Store) Query(ctx context.Context, sql string) (*QueryResult, error) {
	if err := validateReadOnly(sql); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(result.Rows) >= s.cfg.MaxQueryRows {
			s.log.Warn("postgres: query result truncated", "maxRows", s.cfg.MaxQueryRows)
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query rows: %w", err)
	}
	result.Count = len(result.Rows)

	s.log.Debug("postgres: query complete", "rows", result.Count, "duration", time.Since(start))
	return result, nil
}

// readOnlyKeywords are the statement types Query accepts.
var readOnlyKeywords = map[string]struct{}{
	"select":  {},
	"with":    {},
	"show":    {},
	"explain": {},
	"values":  {},
	"table":   {},
}

// validateReadOnly rejects anything that is not a single read-only
// statement. This is a guard against the model ever being talked into a
// write, on top of the read-only database role the service should use.
func validateReadOnly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("query is empty")
	}

	// Strip leading line comments before looking at the first keyword.
	for strings.HasPrefix(trimmed, "--") {
		idx := strings.IndexByte(trimmed, '\n')
		if idx < 0 {
			return fmt.Errorf("query is empty")
		}
		trimmed = strings.TrimSpace(trimmed[idx+1:])
	}
	if trimmed == "" {
		return fmt.Errorf("query is empty")
	}

	first := strings.ToLower(firstWord(trimmed))
	if _, ok := readOnlyKeywords[first]; !ok {
		return fmt.Errorf("only read-only queries are allowed, got %q statement", first)
	}

	// A semicolon may only terminate the statement; anything after it is
	// a second statement.
	if idx := strings.IndexByte(trimmed, ';'); idx >= 0 {
		if rest := strings.TrimSpace(trimmed[idx+1:]); rest != "" {
			return fmt.Errorf("multiple statements are not allowed")
		}
	}

	return nil
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' {
			return s[:i]
		}
	}
	return s
}
