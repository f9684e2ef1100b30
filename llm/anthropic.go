package llm

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
)

const defaultAnthropicModel = "claude-3-7-sonnet-latest"

// AnthropicLLMClient is a client for the Anthropic API.
type AnthropicLLMClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicLLMClient creates a new AnthropicLLMClient.
// It requires the ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicLLMClient(ctx context.Context, cfg *config.Config) (*AnthropicLLMClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}

	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(options...)

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicLLMClient{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Chat sends a chat request to the Anthropic API.
func (a *AnthropicLLMClient) Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  convertTurnsToAnthropicMessages(turns),
		Tools:     convertDefinitionsToAnthropicTools(definitions),
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Transport(err, "failed to send message to Anthropic")
	}

	return processAnthropicResponse(resp), nil
}

// convertTurnsToAnthropicMessages converts the conversation to Anthropic messages.
// Consecutive tool turns are answered in a single user message, one
// tool_result block per call.
func convertTurnsToAnthropicMessages(turns []session.Turn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for i := 0; i < len(turns); i++ {
		turn := turns[i]
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case session.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if turn.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(turn.Content))
			}
			for _, tc := range turn.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, rawArguments(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				// The API rejects empty assistant content.
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case session.RoleTool:
			var results []anthropic.ContentBlockParamUnion
			for ; i < len(turns) && turns[i].Role == session.RoleTool; i++ {
				results = append(results, anthropic.NewToolResultBlock(turns[i].ToolCallID, turns[i].Content, isErrorResult(turns[i].Content)))
			}
			i--
			messages = append(messages, anthropic.NewUserMessage(results...))
		}
	}

	return messages
}

// convertDefinitionsToAnthropicTools converts tool definitions to Anthropic's tool format.
func convertDefinitionsToAnthropicTools(definitions []tools.Definition) []anthropic.ToolUnionParam {
	if len(definitions) == 0 {
		return nil
	}

	anthropicTools := make([]anthropic.ToolUnionParam, 0, len(definitions))
	for _, def := range definitions {
		schema := def.Parameters.Schema()
		toolParam := anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
			Required:   def.Parameters.Required,
		}, def.Name)
		toolParam.OfTool.Description = anthropic.String(def.Description)
		anthropicTools = append(anthropicTools, toolParam)
	}
	return anthropicTools
}

// processAnthropicResponse converts an Anthropic API response into a session.Turn.
func processAnthropicResponse(resp *anthropic.Message) *session.Turn {
	turn := &session.Turn{Role: session.RoleAssistant}

	for _, content := range resp.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Content += c.Text
		case anthropic.ToolUseBlock:
			turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
				ID:        c.ID,
				Name:      c.Name,
				Arguments: string(c.Input),
			})
		}
	}

	return turn
}

// rawArguments returns serialized arguments that are safe to embed in a
// request body. Undecodable arguments are replaced by an empty object; the
// matching tool result already tells the model what went wrong.
func rawArguments(args string) json.RawMessage {
	if args == "" || !json.Valid([]byte(args)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(args)
}

func isErrorResult(content string) bool {
	return strings.HasPrefix(content, tools.ErrorPrefix)
}
