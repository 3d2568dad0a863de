package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshslysz/phyl-chatbot/internal/data/postgres"
)

// Store is the slice of the postgres store the tools use. It is an
// interface so tool handlers can be tested without a database.
type Store interface {
	ListObjects(ctx context.Context, schema string) ([]postgres.Object, error)
	GetObjectDetails(ctx context.Context, object, schema string) ([]postgres.Column, error)
	Query(ctx context.Context, sql string) (*postgres.QueryResult, error)
}

type Config struct {
	Logger *slog.Logger
	Store  Store

	Version string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}

	if c.Version == "" {
		c.Version = "dev"
	}

	return nil
}
