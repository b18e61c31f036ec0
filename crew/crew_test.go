package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// --- fakes ---

type fakeMessage struct {
	role string
	text string
}

func (m fakeMessage) ToParam() any { return m }

type fakeTextBlock struct {
	text string
}

func (b fakeTextBlock) AsText() (string, bool)                 { return b.text, b.text != "" }
func (b fakeTextBlock) AsToolUse() (string, string, []byte, bool) { return "", "", nil, false }

type fakeToolUseBlock struct {
	id    string
	name  string
	input string
}

func (b fakeToolUseBlock) AsText() (string, bool) { return "", false }
func (b fakeToolUseBlock) AsToolUse() (string, string, []byte, bool) {
	return b.id, b.name, []byte(b.input), true
}

type fakeResponse struct {
	blocks []ContentBlock
}

func (r fakeResponse) Content() []ContentBlock { return r.blocks }
func (r fakeResponse) ToMessage() Message      { return fakeMessage{role: "assistant"} }

// fakeLLM replays scripted responses and records what it was called with.
type fakeLLM struct {
	responses   []Response
	callCount   int
	lastSystem  string
	sawMessages [][]Message
	err         error
}

func (f *fakeLLM) Call(ctx context.Context, system string, messages []Message, tools []ToolSpec) (Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastSystem = system
	f.sawMessages = append(f.sawMessages, messages)
	if f.callCount >= len(f.responses) {
		return fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "out of script"}}}, nil
	}
	resp := f.responses[f.callCount]
	f.callCount++
	return resp, nil
}

func (f *fakeLLM) CreateUserMessage(content string) Message {
	return fakeMessage{role: "user", text: content}
}

func (f *fakeLLM) ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error) {
	msgs := make([]Message, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, fakeMessage{role: "user", text: r.Content})
	}
	return msgs, nil
}

type fakeTool struct {
	name    string
	result  string
	err     error
	lastArg map[string]any
	calls   int
}

func (t *fakeTool) Name() string                { return t.name }
func (t *fakeTool) Description() string         { return "fake tool" }
func (t *fakeTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (t *fakeTool) Call(ctx context.Context, args map[string]any) (string, error) {
	t.calls++
	t.lastArg = args
	return t.result, t.err
}

func testAgent(tools ...Tool) *Agent {
	return &Agent{
		Role:      "Senior PostgreSQL Database Engineer",
		Goal:      "Perform safe and efficient CRUD operations on PostgreSQL",
		Backstory: "Test backstory.",
		Tools:     tools,
	}
}

// --- New ---

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	llm := &fakeLLM{}
	tasks := []Task{{Description: "do something"}}

	if _, err := New(Config{Tasks: tasks, LLM: llm}); err == nil {
		t.Fatal("expected error for missing agent")
	}
	if _, err := New(Config{Agent: testAgent(), LLM: llm}); err == nil {
		t.Fatal("expected error for missing tasks")
	}
	if _, err := New(Config{Agent: testAgent(), Tasks: tasks}); err == nil {
		t.Fatal("expected error for missing LLM")
	}
	if _, err := New(Config{Agent: testAgent(), Tasks: tasks, LLM: llm, MaxRounds: -1}); err == nil {
		t.Fatal("expected error for negative max rounds")
	}
	if _, err := New(Config{Agent: testAgent(), Tasks: tasks, LLM: llm}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- SystemPrompt ---

func TestAgentSystemPrompt(t *testing.T) {
	t.Parallel()
	prompt := testAgent().SystemPrompt()
	if !strings.Contains(prompt, "You are Senior PostgreSQL Database Engineer.") {
		t.Fatalf("expected role in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "Perform safe and efficient CRUD operations on PostgreSQL") {
		t.Fatalf("expected goal in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "Test backstory.") {
		t.Fatalf("expected backstory in prompt, got %q", prompt)
	}
}

// --- Kickoff ---

func TestKickoff_FinalTextWithoutTools(t *testing.T) {
	t.Parallel()
	llm := &fakeLLM{
		responses: []Response{
			fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "the answer"}}},
		},
	}
	c, err := New(Config{
		Agent:  testAgent(),
		Tasks:  []Task{{Description: "say the answer", ExpectedOutput: "one line"}},
		LLM:    llm,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := c.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "the answer" {
		t.Fatalf("expected final text, got %q", result)
	}
	if llm.lastSystem == "" || !strings.Contains(llm.lastSystem, "Senior PostgreSQL Database Engineer") {
		t.Fatalf("expected system prompt to carry the agent persona, got %q", llm.lastSystem)
	}

	// Task prompt includes the expected output.
	first := llm.sawMessages[0][0].(fakeMessage)
	if !strings.Contains(first.text, "say the answer") || !strings.Contains(first.text, "Expected output: one line") {
		t.Fatalf("unexpected task prompt: %q", first.text)
	}
}

func TestKickoff_ToolCallRoundTrip(t *testing.T) {
	t.Parallel()
	tool := &fakeTool{name: "list_tables", result: `{"tables":[]}`}
	llm := &fakeLLM{
		responses: []Response{
			fakeResponse{blocks: []ContentBlock{
				fakeToolUseBlock{id: "tu_1", name: "list_tables", input: `{}`},
			}},
			fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "no tables found"}}},
		},
	}
	c, err := New(Config{
		Agent:  testAgent(tool),
		Tasks:  []Task{{Description: "list tables"}},
		LLM:    llm,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := c.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "no tables found" {
		t.Fatalf("expected final text after tool round, got %q", result)
	}
	if tool.calls != 1 {
		t.Fatalf("expected tool to be called once, got %d", tool.calls)
	}

	// Second call sees the tool result fed back into the conversation.
	second := llm.sawMessages[1]
	last := second[len(second)-1].(fakeMessage)
	if last.text != `{"tables":[]}` {
		t.Fatalf("expected tool result in conversation, got %q", last.text)
	}
}

func TestKickoff_ToolArgumentsDecoded(t *testing.T) {
	t.Parallel()
	tool := &fakeTool{name: "execute_sql", result: "ok"}
	llm := &fakeLLM{
		responses: []Response{
			fakeResponse{blocks: []ContentBlock{
				fakeToolUseBlock{id: "tu_1", name: "execute_sql", input: `{"sql":"SELECT 1"}`},
			}},
			fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "done"}}},
		},
	}
	c, err := New(Config{
		Agent:  testAgent(tool),
		Tasks:  []Task{{Description: "run a query"}},
		LLM:    llm,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Kickoff(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool.lastArg["sql"] != "SELECT 1" {
		t.Fatalf("expected decoded sql argument, got %v", tool.lastArg)
	}
}

func TestKickoff_ToolErrorBecomesErrorResult(t *testing.T) {
	t.Parallel()
	tool := &fakeTool{name: "execute_sql", err: errors.New("boom")}
	convertedResults := []ToolResult{}
	llm := &fakeLLM{
		responses: []Response{
			fakeResponse{blocks: []ContentBlock{
				fakeToolUseBlock{id: "tu_1", name: "execute_sql", input: `{}`},
			}},
			fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "recovered"}}},
		},
	}

	c, err := New(Config{
		Agent:  testAgent(tool),
		Tasks:  []Task{{Description: "run a query"}},
		LLM:    llm,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Intercept results through executeTools directly.
	convertedResults = c.executeTools(context.Background(), []ToolUse{
		{ID: "tu_1", Name: "execute_sql", Input: map[string]any{}},
	})
	if len(convertedResults) != 1 {
		t.Fatalf("expected one result, got %d", len(convertedResults))
	}
	if !convertedResults[0].IsError {
		t.Fatal("expected error result")
	}
	if convertedResults[0].Content != "Error: boom" {
		t.Fatalf("unexpected error content: %q", convertedResults[0].Content)
	}

	// The run itself still completes; the error goes to the model.
	result, err := c.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "recovered" {
		t.Fatalf("expected final text, got %q", result)
	}
}

func TestKickoff_UnknownToolBecomesErrorResult(t *testing.T) {
	t.Parallel()
	c, err := New(Config{
		Agent:  testAgent(),
		Tasks:  []Task{{Description: "x"}},
		LLM:    &fakeLLM{},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := c.executeTools(context.Background(), []ToolUse{
		{ID: "tu_1", Name: "no_such_tool", Input: map[string]any{}},
	})
	if !results[0].IsError {
		t.Fatal("expected error result for unknown tool")
	}
	if !strings.Contains(results[0].Content, `unknown tool "no_such_tool"`) {
		t.Fatalf("unexpected content: %q", results[0].Content)
	}
}

func TestKickoff_ParallelResultsKeepOrder(t *testing.T) {
	t.Parallel()
	a := &fakeTool{name: "tool_a", result: "A"}
	b := &fakeTool{name: "tool_b", result: "B"}
	c, err := New(Config{
		Agent:  testAgent(a, b),
		Tasks:  []Task{{Description: "x"}},
		LLM:    &fakeLLM{},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := c.executeTools(context.Background(), []ToolUse{
		{ID: "tu_1", Name: "tool_a"},
		{ID: "tu_2", Name: "tool_b"},
		{ID: "tu_3", Name: "tool_a"},
	})
	got := []string{results[0].Content, results[1].Content, results[2].Content}
	want := []string{"A", "B", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result order mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestKickoff_MaxRoundsExceeded(t *testing.T) {
	t.Parallel()
	tool := &fakeTool{name: "looper", result: "again"}
	// Every response requests another tool call, so the loop never ends.
	var responses []Response
	for i := 0; i < 10; i++ {
		responses = append(responses, fakeResponse{blocks: []ContentBlock{
			fakeToolUseBlock{id: fmt.Sprintf("tu_%d", i), name: "looper", input: `{}`},
		}})
	}
	c, err := New(Config{
		Agent:     testAgent(tool),
		Tasks:     []Task{{Description: "loop forever"}},
		LLM:       &fakeLLM{responses: responses},
		Logger:    zerolog.Nop(),
		MaxRounds: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Kickoff(context.Background())
	if err == nil {
		t.Fatal("expected max rounds error")
	}
	if !strings.Contains(err.Error(), "exceeded maximum rounds (3)") {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool.calls != 3 {
		t.Fatalf("expected 3 tool calls, got %d", tool.calls)
	}
}

func TestKickoff_LLMErrorPropagates(t *testing.T) {
	t.Parallel()
	c, err := New(Config{
		Agent:  testAgent(),
		Tasks:  []Task{{Description: "x"}},
		LLM:    &fakeLLM{err: errors.New("api down")},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Kickoff(context.Background())
	if err == nil {
		t.Fatal("expected error from LLM")
	}
	if !strings.Contains(err.Error(), "task 1:") || !strings.Contains(err.Error(), "api down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKickoff_SequentialTasksReturnLast(t *testing.T) {
	t.Parallel()
	llm := &fakeLLM{
		responses: []Response{
			fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "first"}}},
			fakeResponse{blocks: []ContentBlock{fakeTextBlock{text: "second"}}},
		},
	}
	c, err := New(Config{
		Agent:  testAgent(),
		Tasks:  []Task{{Description: "one"}, {Description: "two"}},
		LLM:    llm,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := c.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "second" {
		t.Fatalf("expected last task's text, got %q", result)
	}
	if llm.callCount != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", llm.callCount)
	}
}
