// Package crew runs natural-language tasks through a tool-using agent.
//
// An Agent is configured with a role, goal, backstory, and a tool set. A
// Crew binds tasks to the agent and executes them sequentially: each task
// runs a bounded tool-calling loop against the LLM, feeding tool results
// back into the conversation until the model produces a final text
// answer.
package crew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const defaultMaxRounds = 10

// Agent is an entity that executes natural-language tasks by invoking
// tools and an underlying language model.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	Tools     []Tool
}

// SystemPrompt renders the agent's persona as the LLM system prompt.
func (a *Agent) SystemPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.\n", a.Role)
	if a.Goal != "" {
		fmt.Fprintf(&sb, "Your goal: %s\n", a.Goal)
	}
	if a.Backstory != "" {
		fmt.Fprintf(&sb, "Background: %s\n", a.Backstory)
	}
	sb.WriteString("Use the available tools to complete the task. When you have the answer, reply with it directly.")
	return sb.String()
}

// Task is a single natural-language operation bound to the crew's agent.
type Task struct {
	Description    string
	ExpectedOutput string
}

func (t Task) prompt() string {
	if t.ExpectedOutput == "" {
		return t.Description
	}
	return fmt.Sprintf("%s\n\nExpected output: %s", t.Description, t.ExpectedOutput)
}

// Config configures a Crew.
type Config struct {
	Agent     *Agent
	Tasks     []Task
	LLM       LLMClient
	Logger    zerolog.Logger
	MaxRounds int
}

// Crew is a run-time grouping of one agent and its tasks, executed to
// completion by Kickoff.
type Crew struct {
	agent     *Agent
	tasks     []Task
	llm       LLMClient
	logger    zerolog.Logger
	maxRounds int
}

// New creates a Crew. Returns an error when the agent, tasks, or LLM
// client are missing.
func New(cfg Config) (*Crew, error) {
	if cfg.Agent == nil {
		return nil, errors.New("crew: agent is required")
	}
	if len(cfg.Tasks) == 0 {
		return nil, errors.New("crew: at least one task is required")
	}
	if cfg.LLM == nil {
		return nil, errors.New("crew: LLM client is required")
	}
	maxRounds := cfg.MaxRounds
	if maxRounds == 0 {
		maxRounds = defaultMaxRounds
	}
	if maxRounds < 0 {
		return nil, errors.New("crew: max rounds must be greater than 0")
	}
	return &Crew{
		agent:     cfg.Agent,
		tasks:     cfg.Tasks,
		llm:       cfg.LLM,
		logger:    cfg.Logger,
		maxRounds: maxRounds,
	}, nil
}

// Kickoff executes all tasks sequentially and returns the final text of
// the last task. One blocking call per invocation; failures from the LLM
// layer propagate unwrapped to the caller.
func (c *Crew) Kickoff(ctx context.Context) (string, error) {
	var final string
	for i, task := range c.tasks {
		c.logger.Info().
			Int("task", i+1).
			Int("task_count", len(c.tasks)).
			Str("description", task.Description).
			Msg("crew: starting task")

		text, err := c.runTask(ctx, task)
		if err != nil {
			return "", fmt.Errorf("task %d: %w", i+1, err)
		}
		final = text
	}
	return final, nil
}

// runTask executes the tool-calling loop for a single task.
func (c *Crew) runTask(ctx context.Context, task Task) (string, error) {
	system := c.agent.SystemPrompt()
	specs := toolSpecs(c.agent.Tools)
	msgs := []Message{c.llm.CreateUserMessage(task.prompt())}

	for round := 1; round <= c.maxRounds; round++ {
		response, err := c.llm.Call(ctx, system, msgs, specs)
		if err != nil {
			return "", fmt.Errorf("failed to get response: %w", err)
		}
		msgs = append(msgs, response.ToMessage())

		toolUses := extractToolUses(response.Content())
		if len(toolUses) == 0 {
			text := finalText(response.Content())
			c.logger.Info().
				Int("round", round).
				Msg("crew: no tool calls, task complete")
			return text, nil
		}

		c.logger.Info().
			Int("round", round).
			Int("tool_calls", len(toolUses)).
			Msg("crew: executing tool calls")

		results := c.executeTools(ctx, toolUses)
		resultMsgs, err := c.llm.ConvertToolResults(toolUses, results)
		if err != nil {
			return "", fmt.Errorf("failed to convert tool results: %w", err)
		}
		msgs = append(msgs, resultMsgs...)
	}

	return "", fmt.Errorf("exceeded maximum rounds (%d)", c.maxRounds)
}

// executeTools runs the requested tool calls concurrently and returns
// results in request order. Tool errors become error results sent back to
// the model, never Go errors.
func (c *Crew) executeTools(ctx context.Context, toolUses []ToolUse) []ToolResult {
	results := make([]ToolResult, len(toolUses))
	var wg sync.WaitGroup

	for i, tu := range toolUses {
		wg.Add(1)
		go func(idx int, toolUse ToolUse) {
			defer wg.Done()
			results[idx] = c.executeTool(ctx, toolUse)
		}(i, tu)
	}
	wg.Wait()

	return results
}

func (c *Crew) executeTool(ctx context.Context, toolUse ToolUse) ToolResult {
	tool := c.findTool(toolUse.Name)
	if tool == nil {
		c.logger.Error().Str("tool", toolUse.Name).Msg("crew: unknown tool requested")
		return ToolResult{
			ID:      toolUse.ID,
			Content: fmt.Sprintf("Error: unknown tool %q", toolUse.Name),
			IsError: true,
		}
	}

	out, err := tool.Call(ctx, toolUse.Input)
	if err != nil {
		c.logger.Error().Err(err).Str("tool", toolUse.Name).Msg("crew: tool execution error")
		return ToolResult{
			ID:      toolUse.ID,
			Content: fmt.Sprintf("Error: %v", err),
			IsError: true,
		}
	}

	c.logger.Debug().
		Str("tool", toolUse.Name).
		Int("result_bytes", len(out)).
		Msg("crew: tool executed")
	return ToolResult{ID: toolUse.ID, Content: out}
}

func (c *Crew) findTool(name string) Tool {
	for _, t := range c.agent.Tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
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
		toolUses = append(toolUses, ToolUse{ID: id, Name: name, Input: input})
	}
	return toolUses
}

// finalText joins the text blocks of a response.
func finalText(content []ContentBlock) string {
	var sb strings.Builder
	for _, blk := range content {
		if text, ok := blk.AsText(); ok && text != "" {
			sb.WriteString(text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func toolSpecs(tools []Tool) []ToolSpec {
	specs := make([]ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return specs
}
