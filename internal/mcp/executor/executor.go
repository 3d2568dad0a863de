// Package executor runs individual tool invocations against the data-access
// subprocess. Every invocation gets its own subprocess and session; nothing
// is shared or reused between calls, so one bad call can never poison the
// next.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshslysz/phyl-chatbot/internal/agent"
	"github.com/joshslysz/phyl-chatbot/internal/normalize"
)

const (
	defaultRequestTimeout = 60 * time.Second
)

var (
	mcpClientImplementation = &mcp.Implementation{
		Name:    "phyl-chatbot",
		Version: "1.0.0",
	}

	// requiredArgs maps each known tool to the argument names that must be
	// present and non-empty before a subprocess is ever spawned.
	requiredArgs = map[string][]string{
		agent.ToolListObjects:      {"schema_name"},
		agent.ToolGetObjectDetails: {"object_name"},
		agent.ToolExecuteSQL:       {"sql"},
	}
)

type Config struct {
	Logger *slog.Logger

	// Command and Args launch the data-access subprocess for each call.
	Command string
	Args    []string
	// Env is appended to the current environment for the subprocess,
	// typically DATABASE_URI.
	Env []string

	RequestTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Command == "" {
		return fmt.Errorf("command is required")
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}

	return nil
}

// toolSession is the slice of mcp.ClientSession the executor uses.
type toolSession interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Executor implements agent.ToolClient over short-lived stdio sessions.
type Executor struct {
	log *slog.Logger
	cfg *Config

	// dial is swapped in tests to avoid spawning real subprocesses.
	dial func(ctx context.Context) (toolSession, error)
}

func New(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Executor{
		log: cfg.Logger,
		cfg: &cfg,
	}
	e.dial = e.dialSubprocess
	return e, nil
}

// Execute runs one tool invocation end to end: validate, spawn, call,
// normalize, tear down. It never returns an error; every failure mode
// becomes a failed outcome the conversation can continue from.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) agent.ToolOutcome {
	required, known := requiredArgs[name]
	if !known {
		return failedOutcome(fmt.Sprintf("unknown tool %q", name))
	}
	for _, arg := range required {
		v, ok := args[arg]
		if !ok {
			return failedOutcome(fmt.Sprintf("missing required argument %q for tool %q", arg, name))
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return failedOutcome(fmt.Sprintf("argument %q for tool %q is empty", arg, name))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	session, err := e.dial(ctx)
	if err != nil {
		e.log.Warn("executor: failed to start tool session", "tool", name, "error", err)
		return failedOutcome(fmt.Sprintf("failed to start tool session: %v", err))
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			e.log.Debug("executor: session close failed", "tool", name, "error", closeErr)
		}
	}()

	e.log.Debug("executor: calling tool", "tool", name)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		e.log.Warn("executor: tool call failed", "tool", name, "error", err)
		return failedOutcome(fmt.Sprintf("tool call failed: %v", err))
	}

	raw := joinTextContent(result.Content)
	if result.IsError {
		e.log.Warn("executor: tool returned error result", "tool", name, "error", raw)
		if raw == "" {
			raw = fmt.Sprintf("tool %q reported an error with no detail", name)
		}
		return failedOutcome(raw)
	}
	if strings.TrimSpace(raw) == "" {
		return failedOutcome(fmt.Sprintf("tool %q returned no content", name))
	}

	data := normalize.Normalize(raw)
	e.log.Debug("executor: tool call complete",
		"tool", name,
		"chars", len(raw),
		"parseFailure", normalize.IsParseFailure(data),
	)

	return agent.ToolOutcome{
		Success: true,
		Data:    data,
		Raw:     raw,
	}
}

// dialSubprocess spawns the configured command and connects over stdio.
func (e *Executor) dialSubprocess(ctx context.Context) (toolSession, error) {
	cmd := exec.CommandContext(ctx, e.cfg.Command, e.cfg.Args...)
	cmd.Env = append(os.Environ(), e.cfg.Env...)
	cmd.Stderr = os.Stderr

	client := mcp.NewClient(mcpClientImplementation, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data-access subprocess: %w", err)
	}
	return session, nil
}

func joinTextContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if textContent, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, textContent.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func failedOutcome(raw string) agent.ToolOutcome {
	return agent.ToolOutcome{Success: false, Raw: raw}
}
