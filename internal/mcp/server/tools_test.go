package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshslysz/phyl-chatbot/internal/data/postgres"
)

// stubStore serves canned course data.
type stubStore struct {
	objects map[string][]postgres.Object
	columns map[string][]postgres.Column
	query   func(sql string) (*postgres.QueryResult, error)
}

func (s *stubStore) ListObjects(ctx context.Context, schema string) ([]postgres.Object, error) {
	objects, ok := s.objects[schema]
	if !ok {
		return nil, nil
	}
	return objects, nil
}

func (s *stubStore) GetObjectDetails(ctx context.Context, object, schema string) ([]postgres.Column, error) {
	columns, ok := s.columns[object]
	if !ok {
		return nil, fmt.Errorf("object %q not found in schema %q", object, schema)
	}
	return columns, nil
}

func (s *stubStore) Query(ctx context.Context, sql string) (*postgres.QueryResult, error) {
	return s.query(sql)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func courseStore() *stubStore {
	return &stubStore{
		objects: map[string][]postgres.Object{
			"public": {
				{Name: "assignments", Type: "table"},
				{Name: "policies", Type: "table"},
			},
		},
		columns: map[string][]postgres.Column{
			"policies": {
				{Name: "policy_name", DataType: "text", Nullable: false},
				{Name: "details", DataType: "text", Nullable: true},
			},
		},
		query: func(sql string) (*postgres.QueryResult, error) {
			return &postgres.QueryResult{
				Columns: []string{"policy_name", "details"},
				Rows: []map[string]any{
					{"policy_name": "email", "details": "respond within 48 hours"},
				},
				Count: 1,
			}, nil
		},
	}
}

func TestServer_New(t *testing.T) {
	t.Run("registers all tools", func(t *testing.T) {
		s, err := New(Config{Logger: testLogger(), Store: courseStore()})
		require.NoError(t, err)
		require.NotNil(t, s.mcp)
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := New(Config{Logger: testLogger()})
		require.ErrorContains(t, err, "store is required")
	})

	t.Run("missing logger", func(t *testing.T) {
		_, err := New(Config{Store: courseStore()})
		require.ErrorContains(t, err, "logger is required")
	})
}

func TestHandleListObjects(t *testing.T) {
	store := courseStore()

	t.Run("explicit schema", func(t *testing.T) {
		out, err := handleListObjects(context.Background(), store, ListObjectsInput{SchemaName: "public"})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "assignments", out.Objects[0].Name)
	})

	t.Run("defaults to public", func(t *testing.T) {
		out, err := handleListObjects(context.Background(), store, ListObjectsInput{})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
	})

	t.Run("unknown schema is empty not an error", func(t *testing.T) {
		out, err := handleListObjects(context.Background(), store, ListObjectsInput{SchemaName: "private"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
	})
}

func TestHandleGetObjectDetails(t *testing.T) {
	store := courseStore()

	t.Run("known object", func(t *testing.T) {
		out, err := handleGetObjectDetails(context.Background(), store, GetObjectDetailsInput{ObjectName: "policies"})
		require.NoError(t, err)
		assert.Equal(t, "policies", out.ObjectName)
		assert.Equal(t, "public", out.SchemaName)
		require.Len(t, out.Columns, 2)
		assert.Equal(t, "policy_name", out.Columns[0].Name)
	})

	t.Run("missing object name", func(t *testing.T) {
		_, err := handleGetObjectDetails(context.Background(), store, GetObjectDetailsInput{})
		require.ErrorContains(t, err, "object_name is required")
	})

	t.Run("unknown object", func(t *testing.T) {
		_, err := handleGetObjectDetails(context.Background(), store, GetObjectDetailsInput{ObjectName: "grades"})
		require.ErrorContains(t, err, "not found")
	})
}

func TestHandleExecuteSQL(t *testing.T) {
	t.Run("returns rows", func(t *testing.T) {
		store := courseStore()
		out, err := handleExecuteSQL(context.Background(), store, ExecuteSQLInput{SQL: "SELECT * FROM policies"})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, "respond within 48 hours", out.Rows[0]["details"])
	})

	t.Run("missing sql", func(t *testing.T) {
		store := courseStore()
		_, err := handleExecuteSQL(context.Background(), store, ExecuteSQLInput{})
		require.ErrorContains(t, err, "sql is required")
	})

	t.Run("store error propagates", func(t *testing.T) {
		store := courseStore()
		store.query = func(sql string) (*postgres.QueryResult, error) {
			return nil, fmt.Errorf("only read-only queries are allowed")
		}
		_, err := handleExecuteSQL(context.Background(), store, ExecuteSQLInput{SQL: "DROP TABLE policies"})
		require.ErrorContains(t, err, "read-only")
	})
}
