package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshslysz/phyl-chatbot/internal/data/postgres"
	"github.com/joshslysz/phyl-chatbot/internal/mcp/server/metrics"
)

type ListObjectsInput struct {
	SchemaName string `json:"schema_name"`
}

type ListObjectsOutput struct {
	Objects []postgres.Object `json:"objects"`
	Count   int               `json:"count"`
}

func RegisterListObjectsTool(log *slog.Logger, server *mcp.Server, store Store) error {
	req, err := jsonschema.For[ListObjectsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_objects input schema: %w", err)
	}

	res, err := jsonschema.For[ListObjectsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_objects output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         "list_objects",
		Description:  "List database objects (tables and views) in a schema.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ListObjectsInput) (*mcp.CallToolResult, ListObjectsOutput, error) {
		const toolName = "list_objects"
		startTime := time.Now()

		log.Debug("mcp/tool: handling list_objects", "schema", req.SchemaName)

		out, err := handleListObjects(ctx, store, req)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, ListObjectsOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, out, nil
	})
	return nil
}

func handleListObjects(ctx context.Context, store Store, req ListObjectsInput) (ListObjectsOutput, error) {
	schema := req.SchemaName
	if schema == "" {
		schema = "public"
	}

	objects, err := store.ListObjects(ctx, schema)
	if err != nil {
		return ListObjectsOutput{}, fmt.Errorf("failed to list objects: %w", err)
	}

	return ListObjectsOutput{
		Objects: objects,
		Count:   len(objects),
	}, nil
}
