package crew

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	backoff "github.com/cenkalti/backoff/v5"
)

const defaultMaxAttempts = 3

// AnthropicClient implements LLMClient for Anthropic models.
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	maxAttempts uint
}

// NewAnthropicClient creates an LLM client backed by the Anthropic API.
// Transient API failures are retried with exponential backoff up to
// maxAttempts times; pass 0 to use the default of 3.
func NewAnthropicClient(client anthropic.Client, model anthropic.Model, maxTokens int64, maxAttempts uint) *AnthropicClient {
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &AnthropicClient{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		maxAttempts: maxAttempts,
	}
}

// Call sends the conversation to Anthropic and returns a response.
func (a *AnthropicClient) Call(ctx context.Context, system string, messages []Message, tools []ToolSpec) (Response, error) {
	anthropicMsgs := make([]anthropic.MessageParam, len(messages))
	for i, msg := range messages {
		param, ok := msg.ToParam().(anthropic.MessageParam)
		if !ok {
			return nil, fmt.Errorf("expected anthropic.MessageParam, got %T", msg.ToParam())
		}
		anthropicMsgs[i] = param
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  anthropicMsgs,
		Tools:     toAnthropicTools(tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	op := func() (*anthropic.Message, error) {
		return a.client.Messages.New(ctx, params)
	}
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(a.maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("anthropic call failed: %w", err)
	}

	return anthropicResponse{resp: resp}, nil
}

// CreateUserMessage creates a user message in Anthropic format.
func (a *AnthropicClient) CreateUserMessage(content string) Message {
	return AnthropicMessage{Msg: anthropic.NewUserMessage(anthropic.NewTextBlock(content))}
}

// ConvertToolResults converts tool results to Anthropic messages. All
// results are packed into a single user message, matching the order of
// the originating tool use requests.
func (a *AnthropicClient) ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error) {
	toolResults := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, result := range results {
		toolResults = append(toolResults, anthropic.NewToolResultBlock(result.ID, result.Content, result.IsError))
	}

	msg := anthropic.NewUserMessage(toolResults...)
	return []Message{AnthropicMessage{Msg: msg}}, nil
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

// anthropicContentBlock wraps Anthropic's ContentBlockUnion to implement
// ContentBlock.
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

// toAnthropicTools converts tool specs to Anthropic tool parameters.
func toAnthropicTools(tools []ToolSpec) []anthropic.ToolUnionParam {
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
