package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshslysz/phyl-chatbot/internal/agent"
	"github.com/joshslysz/phyl-chatbot/internal/normalize"
)

// fakeSession scripts one CallTool result and counts Close calls.
type fakeSession struct {
	result   *mcp.CallToolResult
	callErr  error
	closed   int
	lastName string
	lastArgs map[string]any
}

func (s *fakeSession) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	s.lastName = params.Name
	if b, err := json.Marshal(params.Arguments); err == nil {
		_ = json.Unmarshal(b, &s.lastArgs)
	}
	if s.callErr != nil {
		return nil, s.callErr
	}
	return s.result, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func newTestExecutor(t *testing.T, session *fakeSession, dialErr error) (*Executor, *int) {
	t.Helper()
	e, err := New(Config{
		Logger:         slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Command:        "postgres-mcp",
		Args:           []string{"--access-mode", "restricted", "--transport", "stdio"},
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	dials := 0
	e.dial = func(ctx context.Context) (toolSession, error) {
		dials++
		if dialErr != nil {
			return nil, dialErr
		}
		return session, nil
	}
	return e, &dials
}

func TestExecutor_Execute_Success(t *testing.T) {
	session := &fakeSession{result: textResult(`[{'name': 'policies', 'type': 'table'}]`, false)}
	e, dials := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), agent.ToolListObjects, map[string]any{"schema_name": "public"})

	require.True(t, outcome.Success)
	assert.Equal(t, 1, *dials)
	assert.Equal(t, 1, session.closed, "session must be closed after a successful call")
	assert.Equal(t, agent.ToolListObjects, session.lastName)
	assert.Equal(t, "public", session.lastArgs["schema_name"])

	rows, ok := outcome.Data.([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "policies", row["name"])
}

func TestExecutor_Execute_UnknownToolDoesNotDial(t *testing.T) {
	session := &fakeSession{}
	e, dials := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), "drop_tables", map[string]any{})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Raw, "unknown tool")
	assert.Equal(t, 0, *dials, "malformed invocations must be rejected before spawning")
}

func TestExecutor_Execute_MissingArgumentDoesNotDial(t *testing.T) {
	session := &fakeSession{}
	e, dials := newTestExecutor(t, session, nil)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{name: "list objects without schema", tool: agent.ToolListObjects, args: map[string]any{}},
		{name: "details without object name", tool: agent.ToolGetObjectDetails, args: map[string]any{"schema_name": "public"}},
		{name: "sql without query", tool: agent.ToolExecuteSQL, args: map[string]any{}},
		{name: "blank sql", tool: agent.ToolExecuteSQL, args: map[string]any{"sql": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := e.Execute(context.Background(), tt.tool, tt.args)
			assert.False(t, outcome.Success)
			assert.NotEmpty(t, outcome.Raw)
		})
	}
	assert.Equal(t, 0, *dials)
}

func TestExecutor_Execute_DialFailureIsOutcome(t *testing.T) {
	e, dials := newTestExecutor(t, nil, fmt.Errorf("exec: \"postgres-mcp\": executable file not found"))

	outcome := e.Execute(context.Background(), agent.ToolListObjects, map[string]any{"schema_name": "public"})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Raw, "failed to start tool session")
	assert.Equal(t, 1, *dials)
}

func TestExecutor_Execute_CallErrorClosesSession(t *testing.T) {
	session := &fakeSession{callErr: fmt.Errorf("broken pipe")}
	e, _ := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), agent.ToolExecuteSQL, map[string]any{"sql": "SELECT 1"})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Raw, "tool call failed")
	assert.Equal(t, 1, session.closed, "session must be closed even when the call fails")
}

func TestExecutor_Execute_ErrorResult(t *testing.T) {
	session := &fakeSession{result: textResult(`relation "missing" does not exist`, true)}
	e, _ := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), agent.ToolExecuteSQL, map[string]any{"sql": "SELECT * FROM missing"})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Raw, "does not exist")
	assert.Equal(t, 1, session.closed)
}

func TestExecutor_Execute_EmptyContentIsFailure(t *testing.T) {
	session := &fakeSession{result: &mcp.CallToolResult{}}
	e, _ := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), agent.ToolListObjects, map[string]any{"schema_name": "public"})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Raw, "returned no content")
}

func TestExecutor_Execute_UnparseableContentStillSucceeds(t *testing.T) {
	// Prose output parses as neither JSON nor a literal; the wrapper is a
	// valid structured value and the call is still a success.
	session := &fakeSession{result: textResult("no rows matched your filters", false)}
	e, _ := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), agent.ToolExecuteSQL, map[string]any{"sql": "SELECT 1"})

	require.True(t, outcome.Success)
	assert.True(t, normalize.IsParseFailure(outcome.Data))
	wrapper := outcome.Data.(map[string]any)
	assert.Equal(t, "no rows matched your filters", wrapper[normalize.RawTextKey])
}

func TestExecutor_Execute_MultipleTextBlocksJoined(t *testing.T) {
	session := &fakeSession{result: &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: `{"rows":`},
			&mcp.TextContent{Text: `[{"n": 1}]}`},
		},
	}}
	e, _ := newTestExecutor(t, session, nil)

	outcome := e.Execute(context.Background(), agent.ToolExecuteSQL, map[string]any{"sql": "SELECT 1"})

	require.True(t, outcome.Success)
	assert.Equal(t, "{\"rows\":\n[{\"n\": 1}]}", outcome.Raw)
}

func TestExecutor_ConfigValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := &Config{Command: "postgres-mcp"}
	require.ErrorContains(t, cfg.Validate(), "logger is required")

	cfg = &Config{Logger: log}
	require.ErrorContains(t, cfg.Validate(), "command is required")

	cfg = &Config{Logger: log, Command: "postgres-mcp"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
}
