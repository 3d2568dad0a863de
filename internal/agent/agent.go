// Package agent drives the bounded tool-use conversation between a student
// question and the LLM. One Agent handles one question at a time; the
// transcript lives only for the duration of a Run and is never persisted.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/joshslysz/phyl-chatbot/internal/normalize"
)

const (
	defaultMaxRounds = 8
)

// FallbackAnswer is returned when the model produced nothing usable and no
// structured data was gathered.
const FallbackAnswer = "I'm sorry, I wasn't able to find an answer to your question right now. Please try rephrasing it or ask again in a moment."

// Config is the configuration for the Agent.
type Config struct {
	Logger *slog.Logger
	LLM    LLMClient
	Tools  ToolClient
	// Catalog is the fixed tool catalog offered on every turn. It is
	// supplied identically each turn; the finalization turn keeps it
	// attached but forbids invocation.
	Catalog []Tool
	// MaxRounds bounds the number of model turns; the loop never recurses
	// and always terminates within this limit.
	MaxRounds int
}

func (cfg *Config) Validate() error {
	if cfg.LLM == nil {
		return errors.New("LLM is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool client is required")
	}
	if len(cfg.Catalog) == 0 {
		return errors.New("tool catalog is required")
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxRounds < 0 {
		return errors.New("max rounds must be greater than 0")
	}
	return nil
}

// Agent runs the tool-calling loop.
type Agent struct {
	log *slog.Logger
	cfg *Config
}

func New(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Respond runs one question through the conversation loop.
func (a *Agent) Respond(ctx context.Context, question string) (*RunResult, error) {
	initial := a.cfg.LLM.CreateUserMessage(BuildQuestionPrompt(question))
	return a.Run(ctx, []Message{initial})
}

// Run executes the tool-calling loop: submit the transcript, execute any
// requested tools, append results, resubmit. It returns when the model
// stops with plain text, or with a best-effort answer once MaxRounds is
// reached. LLM transport failures are the only error return.
func (a *Agent) Run(ctx context.Context, initialMessages []Message) (*RunResult, error) {
	msgs := make([]Message, len(initialMessages))
	copy(msgs, initialMessages)

	var (
		sources    []string
		sourceSeen = map[string]struct{}{}
		lastRows   []map[string]any
	)

	for round := 0; round < a.cfg.MaxRounds; round++ {
		roundNum := round + 1
		isLastRound := round == a.cfg.MaxRounds-1

		choice := ToolChoiceAuto
		if isLastRound {
			// Terminal turn: tool use is disabled and the transcript ends
			// with the instruction to summarize what was gathered. The
			// catalog stays attached so the earlier tool blocks validate.
			choice = ToolChoiceNone
			msgs = append(msgs, a.cfg.LLM.CreateUserMessage(FinalizationPrompt))
		}

		if a.log != nil {
			a.log.Info("agent: starting round", "round", roundNum, "max_rounds", a.cfg.MaxRounds)
		}

		response, err := a.cfg.LLM.Call(ctx, msgs, a.cfg.Catalog, choice)
		if err != nil {
			if isLastRound {
				// The answer owed to the user cannot depend on the
				// finalization call succeeding. Fall back to whatever
				// structured data the tools already produced.
				if a.log != nil {
					a.log.Warn("agent: finalization call failed, answering from gathered data", "round", roundNum, "error", err)
				}
				return &RunResult{
					FinalText:        bestEffortAnswer(lastRows),
					Sources:          sources,
					CourseData:       lastRows,
					FullConversation: msgs,
					Rounds:           roundNum,
				}, nil
			}
			return nil, fmt.Errorf("failed to get response: %w", err)
		}

		if a.log != nil {
			a.log.Debug("agent: received response", "round", roundNum, "contentBlocks", len(response.Content()))
		}

		msgs = append(msgs, response.ToMessage())

		toolUses := extractToolUses(response.Content())
		if len(toolUses) == 0 || isLastRound {
			if a.log != nil {
				a.log.Info("agent: returning final response", "round", roundNum, "pendingToolCalls", len(toolUses))
			}
			finalText := collectText(response.Content())
			if strings.TrimSpace(finalText) == "" {
				finalText = bestEffortAnswer(lastRows)
			}
			return &RunResult{
				FinalText:        strings.TrimSpace(finalText),
				Sources:          sources,
				CourseData:       lastRows,
				FullConversation: msgs,
				Rounds:           roundNum,
			}, nil
		}

		if a.log != nil {
			if len(toolUses) > 1 {
				a.log.Info("agent: executing tool calls in parallel", "round", roundNum, "count", len(toolUses))
			} else {
				a.log.Info("agent: executing tool call", "round", roundNum, "name", toolUses[0].Name)
			}
		}

		results, outcomes := a.executeTools(ctx, toolUses)

		for i, tu := range toolUses {
			if _, ok := sourceSeen[tu.Name]; !ok {
				sourceSeen[tu.Name] = struct{}{}
				sources = append(sources, tu.Name)
			}
			if rows := asRows(outcomes[i].Data); rows != nil {
				lastRows = rows
			}
		}

		resultMsgs, err := a.cfg.LLM.ConvertToolResults(toolUses, results)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool results: %w", err)
		}
		msgs = append(msgs, resultMsgs...)
	}

	// MaxRounds of 0 is rejected by Validate, so the loop body always runs
	// and returns; this is unreachable.
	return nil, fmt.Errorf("exceeded maximum rounds (%d)", a.cfg.MaxRounds)
}

// executeTools runs all sibling invocations of one turn concurrently and
// waits for every one before returning. Results come back in invocation
// order regardless of completion order.
func (a *Agent) executeTools(ctx context.Context, toolUses []ToolUse) ([]ToolResult, []ToolOutcome) {
	outcomes := make([]ToolOutcome, len(toolUses))
	var wg sync.WaitGroup

	for i, tu := range toolUses {
		wg.Add(1)
		go func(idx int, toolUse ToolUse) {
			defer wg.Done()
			outcomes[idx] = a.cfg.Tools.Execute(ctx, toolUse.Name, toolUse.Input)
		}(i, tu)
	}

	wg.Wait()

	results := make([]ToolResult, 0, len(toolUses))
	for i, outcome := range outcomes {
		tu := toolUses[i]
		var content string
		isError := !outcome.Success
		if outcome.Success {
			b, err := json.Marshal(outcome.Data)
			if err != nil {
				content = outcome.Raw
			} else {
				content = string(b)
			}
		} else {
			content = outcome.Raw
		}

		if a.log != nil {
			a.log.Info("agent: tool executed",
				"name", tu.Name,
				"id", tu.ID,
				"success", outcome.Success,
				"parseFailure", normalize.IsParseFailure(outcome.Data),
				"chars", len(content),
			)
		}

		results = append(results, ToolResult{
			ID:      tu.ID,
			Content: content,
			IsError: isError,
		})
	}
	return results, outcomes
}

// extractToolUses extracts tool use requests from response content blocks.
func extractToolUses(content []ContentBlock) []ToolUse {
	var toolUses []ToolUse
	for _, blk := range content {
		id, name, inputBytes, ok := blk.AsToolUse()
		if !ok || id == "" || name == "" {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal(inputBytes, &input); err != nil {
			continue
		}
		toolUses = append(toolUses, ToolUse{
			ID:    id,
			Name:  name,
			Input: input,
		})
	}
	return toolUses
}

func collectText(content []ContentBlock) string {
	var b strings.Builder
	for _, blk := range content {
		if text, ok := blk.AsText(); ok && text != "" {
			b.WriteString(text)
		}
	}
	return b.String()
}

// asRows reports a normalized value as a row set when it is a list of
// objects, or the rows field of a query-shaped object.
func asRows(v any) []map[string]any {
	switch x := v.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(x))
		for _, item := range x {
			row, ok := item.(map[string]any)
			if !ok {
				return nil
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return nil
		}
		return rows
	case map[string]any:
		if normalize.IsParseFailure(x) {
			return nil
		}
		if inner, ok := x["rows"]; ok {
			return asRows(inner)
		}
	}
	return nil
}

// bestEffortAnswer formats the last gathered rows directly when the model
// never produced a final text.
func bestEffortAnswer(rows []map[string]any) string {
	if len(rows) == 0 {
		return FallbackAnswer
	}
	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for _, row := range rows {
		b.WriteString("- ")
		first := true
		for _, k := range sortedKeys(row) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%s: %v", k, row[k])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
