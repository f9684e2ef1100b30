package llm

import (
	"context"
	"os"

	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = "gpt-4-turbo-preview"

// OpenAILLMClient is a client for the OpenAI Chat Completion API.
type OpenAILLMClient struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// NewOpenAILLMClient creates a new OpenAILLMClient. It requires the OPENAI_API_KEY environment variable to be set.
// It also supports OPENAI_BASE_URL (or base_url in the config) for custom API endpoints.
func NewOpenAILLMClient(ctx context.Context, cfg *config.Config) (*OpenAILLMClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	c := openai.NewClient(options...)
	return &OpenAILLMClient{client: &c, model: model, maxTokens: cfg.MaxTokens}, nil
}

// Chat sends the conversation to OpenAI and converts the reply into a session.Turn.
func (o *OpenAILLMClient) Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: convertTurnsToOpenAIMessages(turns),
		Tools:    convertDefinitionsToOpenAITools(definitions),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Transport(err, "failed to send message to OpenAI")
	}

	return processOpenAIResponse(resp), nil
}

// processOpenAIResponse converts an OpenAI API response into a session.Turn.
// Tool call arguments are kept serialized; they are decoded per call later.
func processOpenAIResponse(resp *openai.ChatCompletion) *session.Turn {
	turn := &session.Turn{Role: session.RoleAssistant}
	if len(resp.Choices) == 0 {
		return turn
	}

	choice := resp.Choices[0].Message
	turn.Content = choice.Content
	for _, tc := range choice.ToolCalls {
		if tc.Type != "" && tc.Type != "function" {
			continue
		}
		turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return turn
}

// convertTurnsToOpenAIMessages converts the conversation to OpenAI chat messages.
func convertTurnsToOpenAIMessages(turns []session.Turn) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	for _, turn := range turns {
		switch turn.Role {
		case session.RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if turn.Content != "" {
				assistant.Content.OfString = openai.String(turn.Content)
			}
			for _, tc := range turn.ToolCalls {
				args := tc.Arguments
				if args == "" {
					args = "{}"
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: args,
						},
					},
				})
			}
			chatMessages = append(chatMessages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case session.RoleTool:
			chatMessages = append(chatMessages, openai.ToolMessage(turn.Content, turn.ToolCallID))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(turn.Content))
		}
	}
	return chatMessages
}

// convertDefinitionsToOpenAITools converts tool definitions to OpenAI function tools.
func convertDefinitionsToOpenAITools(definitions []tools.Definition) []openai.ChatCompletionToolUnionParam {
	if len(definitions) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, def := range definitions {
		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  openai.FunctionParameters(def.Parameters.Schema()),
		}))
	}
	return openAITools
}
