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

type GetObjectDetailsInput struct {
	ObjectName string `json:"object_name"`
	SchemaName string `json:"schema_name,omitempty"`
}

type GetObjectDetailsOutput struct {
	ObjectName string            `json:"object_name"`
	SchemaName string            `json:"schema_name"`
	Columns    []postgres.Column `json:"columns"`
}

func RegisterGetObjectDetailsTool(log *slog.Logger, server *mcp.Server, store Store) error {
	req, err := jsonschema.For[GetObjectDetailsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get_object_details input schema: %w", err)
	}

	res, err := jsonschema.For[GetObjectDetailsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get_object_details output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         "get_object_details",
		Description:  "Get detailed column information (names, types, nullability) for one database object.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req GetObjectDetailsInput) (*mcp.CallToolResult, GetObjectDetailsOutput, error) {
		const toolName = "get_object_details"
		startTime := time.Now()

		log.Debug("mcp/tool: handling get_object_details", "object", req.ObjectName, "schema", req.SchemaName)

		out, err := handleGetObjectDetails(ctx, store, req)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, GetObjectDetailsOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, out, nil
	})
	return nil
}

func handleGetObjectDetails(ctx context.Context, store Store, req GetObjectDetailsInput) (GetObjectDetailsOutput, error) {
	if req.ObjectName == "" {
		return GetObjectDetailsOutput{}, fmt.Errorf("object_name is required")
	}
	schema := req.SchemaName
	if schema == "" {
		schema = "public"
	}

	columns, err := store.GetObjectDetails(ctx, req.ObjectName, schema)
	if err != nil {
		return GetObjectDetailsOutput{}, fmt.Errorf("failed to describe object: %w", err)
	}

	return GetObjectDetailsOutput{
		ObjectName: req.ObjectName,
		SchemaName: schema,
		Columns:    columns,
	}, nil
}
