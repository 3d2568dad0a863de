package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshslysz/phyl-chatbot/internal/mcp/server/metrics"
)

type ExecuteSQLInput struct {
	SQL string `json:"sql"`
}

type ExecuteSQLOutput struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

func RegisterExecuteSQLTool(log *slog.Logger, server *mcp.Server, store Store) error {
	req, err := jsonschema.For[ExecuteSQLInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute_sql input schema: %w", err)
	}

	res, err := jsonschema.For[ExecuteSQLOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute_sql output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         "execute_sql",
		Description:  "Execute a read-only SQL query and return the matching rows.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ExecuteSQLInput) (*mcp.CallToolResult, ExecuteSQLOutput, error) {
		const toolName = "execute_sql"
		startTime := time.Now()

		log.Debug("mcp/tool: handling execute_sql", "sql", req.SQL)

		out, err := handleExecuteSQL(ctx, store, req)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, ExecuteSQLOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		metrics.QueryRowsReturned.Observe(float64(out.Count))
		return nil, out, nil
	})
	return nil
}

func handleExecuteSQL(ctx context.Context, store Store, req ExecuteSQLInput) (ExecuteSQLOutput, error) {
	if req.SQL == "" {
		return ExecuteSQLOutput{}, fmt.Errorf("sql is required")
	}

	result, err := store.Query(ctx, req.SQL)
	if err != nil {
		return ExecuteSQLOutput{}, fmt.Errorf("failed to execute query: %w", err)
	}

	return ExecuteSQLOutput{
		Columns: result.Columns,
		Rows:    result.Rows,
		Count:   result.Count,
	}, nil
}
