package agent

import (
	"context"
)

// Message represents a message in the conversation.
type Message interface {
	// ToParam converts the message to a provider-specific parameter type.
	ToParam() any
}

// Response represents a response from the LLM.
type Response interface {
	// Content returns the content blocks from the response.
	Content() []ContentBlock
	// ToMessage converts the response to a Message for the conversation history.
	ToMessage() Message
}

// ContentBlock represents a content block in a response.
type ContentBlock interface {
	// AsText returns text content if this is a text block.
	AsText() (text string, ok bool)
	// AsToolUse returns tool use information if this is a tool use block.
	AsToolUse() (id, name string, input []byte, ok bool)
}

// ToolUse is a tool invocation requested by the LLM.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolOutcome is the executor's report for one tool invocation. Data holds
// the normalized value when Success is true; Raw holds the diagnostic or
// unparsed text otherwise. Executors must always return an outcome, never
// abort the conversation.
type ToolOutcome struct {
	Success bool
	Data    any
	Raw     string
}

// ToolClient executes a single tool invocation. Each call is independent;
// implementations must not share connections between calls.
type ToolClient interface {
	Execute(ctx context.Context, name string, args map[string]any) ToolOutcome
}

// Tool describes one entry of the tool catalog offered to the LLM.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolChoice steers the model's use of the offered catalog on one turn.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to invoke tools.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone forbids further invocations. The catalog must still
	// accompany the request so earlier tool_use and tool_result blocks in
	// the transcript stay valid.
	ToolChoiceNone ToolChoice = "none"
)

// LLMClient is an interface for interacting with an LLM.
type LLMClient interface {
	// Call sends messages to the LLM and returns a response.
	Call(ctx context.Context, messages []Message, tools []Tool, choice ToolChoice) (Response, error)
	// ConvertToolResults converts tool results to messages for the LLM.
	ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error)
	// CreateUserMessage creates a user message in the provider's format.
	CreateUserMessage(content string) Message
}

// ToolResult is the transcript-side record of an executed invocation. It
// answers exactly one ToolUse (by ID) and is immutable once produced.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// RunResult contains the result of running one conversation.
type RunResult struct {
	// FinalText is the user-facing answer.
	FinalText string
	// Sources lists the distinct tools that contributed data, in first-use order.
	Sources []string
	// CourseData carries the last structured row set a tool returned, so
	// callers can render raw data next to the answer.
	CourseData []map[string]any
	// FullConversation is the complete transcript including tool calls and results.
	FullConversation []Message
	// Rounds is the number of model turns consumed.
	Rounds int
}

// GenericMessage is a provider-agnostic message, used by tests and
// fallback paths.
type GenericMessage struct {
	Role    string
	Content string
}

func (m GenericMessage) ToParam() any {
	return m
}
