package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
	"github.com/ollama/ollama/api"
)

const defaultOllamaModel = "llama3.1:latest"

// OllamaLLMClient is a client for a local Ollama server.
type OllamaLLMClient struct {
	client    *api.Client
	model     string
	maxTokens int64
}

// NewOllamaLLMClient creates a new OllamaLLMClient. The server address is
// taken from base_url in the config, falling back to OLLAMA_HOST.
func NewOllamaLLMClient(ctx context.Context, cfg *config.Config) (*OllamaLLMClient, error) {
	var client *api.Client
	if cfg.BaseURL != "" {
		parsedURL, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid Ollama URL '%s'", cfg.BaseURL)
		}
		client = api.NewClient(parsedURL, http.DefaultClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create Ollama client")
		}
	}

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaLLMClient{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

// Chat sends the conversation to Ollama and waits for the complete reply.
func (o *OllamaLLMClient) Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: convertTurnsToOllamaMessages(turns),
		Tools:    convertDefinitionsToOllamaTools(definitions),
		Stream:   &stream,
	}
	if o.maxTokens > 0 {
		req.Options = map[string]any{"num_predict": o.maxTokens}
	}

	var content strings.Builder
	var calls []api.ToolCall
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		calls = append(calls, resp.Message.ToolCalls...)
		return nil
	})
	if err != nil {
		return nil, errors.Transport(err, "failed to send message to Ollama")
	}

	return processOllamaResponse(content.String(), calls), nil
}

// convertTurnsToOllamaMessages converts the conversation to Ollama messages.
// Ollama identifies tool results by tool name, which is recovered from the
// assistant turn that issued the call.
func convertTurnsToOllamaMessages(turns []session.Turn) []api.Message {
	names := map[string]string{}
	messages := make([]api.Message, 0, len(turns))
	for _, turn := range turns {
		msg := api.Message{Role: string(turn.Role), Content: turn.Content}
		switch turn.Role {
		case session.RoleAssistant:
			for _, tc := range turn.ToolCalls {
				names[tc.ID] = tc.Name
				args, err := tc.DecodeArguments()
				if err != nil {
					args = map[string]any{}
				}
				msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
		case session.RoleTool:
			msg.ToolName = names[turn.ToolCallID]
		}
		messages = append(messages, msg)
	}
	return messages
}

// convertDefinitionsToOllamaTools converts tool definitions to Ollama's tool format.
func convertDefinitionsToOllamaTools(definitions []tools.Definition) []api.Tool {
	if len(definitions) == 0 {
		return nil
	}
	ollamaTools := make([]api.Tool, 0, len(definitions))
	for _, def := range definitions {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Required:   def.Parameters.Required,
			Properties: make(map[string]api.ToolProperty, len(def.Parameters.Properties)),
		}
		for name, prop := range def.Parameters.Properties {
			typ := prop.Type
			if typ == "" {
				typ = "string"
			}
			params.Properties[name] = api.ToolProperty{
				Type:        api.PropertyType{typ},
				Description: prop.Description,
				Enum:        prop.Enum,
				Items:       prop.Items,
			}
		}
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return ollamaTools
}

// processOllamaResponse converts the collected reply into a session.Turn.
// Ollama does not assign call ids, so one is synthesized per call.
func processOllamaResponse(content string, calls []api.ToolCall) *session.Turn {
	turn := &session.Turn{Role: session.RoleAssistant, Content: content}
	for _, call := range calls {
		turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
			ID:        newCallID(),
			Name:      call.Function.Name,
			Arguments: session.EncodeArguments(map[string]any(call.Function.Arguments)),
		})
	}
	return turn
}
