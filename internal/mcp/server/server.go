// Package server exposes the course database over MCP stdio. It serves the
// same three tools the chat service's catalog names, so either the bundled
// binary or an external postgres-mcp can sit behind the executor.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type Server struct {
	log *slog.Logger
	cfg Config
	mcp *mcp.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "Course Database MCP Server",
		Version: cfg.Version,
	}, nil)

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		mcp: mcpServer,
	}

	if err := RegisterListObjectsTool(s.log, mcpServer, cfg.Store); err != nil {
		return nil, fmt.Errorf("failed to create list_objects tool: %w", err)
	}
	if err := RegisterGetObjectDetailsTool(s.log, mcpServer, cfg.Store); err != nil {
		return nil, fmt.Errorf("failed to create get_object_details tool: %w", err)
	}
	if err := RegisterExecuteSQLTool(s.log, mcpServer, cfg.Store); err != nil {
		return nil, fmt.Errorf("failed to create execute_sql tool: %w", err)
	}

	return s, nil
}

// Run serves MCP over stdin/stdout until the client disconnects or the
// context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp/server: serving over stdio")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}
