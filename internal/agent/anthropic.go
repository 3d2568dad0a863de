package agent

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// AnthropicClient implements LLMClient for Anthropic's Claude models.
type AnthropicClient struct {
	client          anthropic.Client
	model           anthropic.Model
	maxOutputTokens int64
	system          string
}

// NewAnthropicClient creates a new Anthropic LLM client.
func NewAnthropicClient(client anthropic.Client, model anthropic.Model, maxOutputTokens int64, system string) LLMClient {
	return &AnthropicClient{
		client:          client,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		system:          system,
	}
}

// Call sends messages to Anthropic and returns a response. The tool
// catalog is attached even when choice is ToolChoiceNone: the API rejects
// transcripts carrying tool_use or tool_result blocks without a tools
// definition, so disabling tools is expressed through tool_choice alone.
func (a *AnthropicClient) Call(ctx context.Context, messages []Message, tools []Tool, choice ToolChoice) (Response, error) {
	anthropicMsgs, err := toMessageParams(messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxOutputTokens,
		Messages:  anthropicMsgs,
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
		params.ToolChoice = toToolChoiceParam(choice)
	}
	if a.system != "" {
		// Cache the static system prompt; it is identical on every turn
		// of every conversation.
		params.System = []anthropic.TextBlockParam{
			{
				Text:         a.system,
				CacheControl: anthropic.NewCacheControlEphemeralParam(),
			},
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}

	return anthropicResponse{resp: resp}, nil
}

func toMessageParams(messages []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, len(messages))
	for i, msg := range messages {
		param, ok := msg.ToParam().(anthropic.MessageParam)
		if !ok {
			return nil, fmt.Errorf("expected anthropic.MessageParam, got %T", msg.ToParam())
		}
		out[i] = param
	}
	return out, nil
}

func toToolChoiceParam(choice ToolChoice) anthropic.ToolChoiceUnionParam {
	if choice == ToolChoiceNone {
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	}
	return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
}

// ConvertToolResults converts tool results to a single Anthropic user message.
func (a *AnthropicClient) ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, anthropic.NewToolResultBlock(result.ID, result.Content, result.IsError))
	}

	msg := anthropic.NewUserMessage(blocks...)
	return []Message{AnthropicMessage{Msg: msg}}, nil
}

// CreateUserMessage creates a user message in Anthropic format.
func (a *AnthropicClient) CreateUserMessage(content string) Message {
	return AnthropicMessage{Msg: anthropic.NewUserMessage(anthropic.NewTextBlock(content))}
}

// AnthropicMessage wraps Anthropic's MessageParam to implement Message.
type AnthropicMessage struct {
	Msg anthropic.MessageParam
}

func (m AnthropicMessage) ToParam() any {
	return m.Msg
}

// anthropicResponse wraps Anthropic's response to implement Response.
type anthropicResponse struct {
	resp *anthropic.Message
}

func (r anthropicResponse) Content() []ContentBlock {
	blocks := make([]ContentBlock, len(r.resp.Content))
	for i, blk := range r.resp.Content {
		blocks[i] = anthropicContentBlock{blk}
	}
	return blocks
}

func (r anthropicResponse) ToMessage() Message {
	return AnthropicMessage{Msg: r.resp.ToParam()}
}

// anthropicContentBlock wraps Anthropic's ContentBlockUnion to implement ContentBlock.
type anthropicContentBlock struct {
	blk anthropic.ContentBlockUnion
}

func (b anthropicContentBlock) AsText() (string, bool) {
	text := b.blk.AsText()
	if text.Text == "" {
		return "", false
	}
	return text.Text, true
}

func (b anthropicContentBlock) AsToolUse() (string, string, []byte, bool) {
	tu := b.blk.AsToolUse()
	if tu.ID == "" || tu.Name == "" {
		return "", "", nil, false
	}
	return tu.ID, tu.Name, tu.Input, true
}

// toAnthropicTools converts catalog tools to Anthropic tool parameters.
func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		required, _ := t.InputSchema["required"].([]string)
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.Opt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}
