package llm

import (
	"context"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-pro"

// GeminiLLMClient is a client for the Google Gemini API.
type GeminiLLMClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiLLMClient creates a new GeminiLLMClient.
// It requires the GEMINI_API_KEY environment variable to be set.
func NewGeminiLLMClient(ctx context.Context, cfg *config.Config) (*GeminiLLMClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}

	options := []option.ClientOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	if cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}

	return &GeminiLLMClient{
		client: client,
		model:  model,
	}, nil
}

// Close releases the underlying connection.
func (g *GeminiLLMClient) Close() error {
	return g.client.Close()
}

// Chat sends a chat request to the Gemini API.
func (g *GeminiLLMClient) Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error) {
	history := convertTurnsToGeminiContent(turns)
	if len(history) == 0 {
		return nil, errors.New("cannot send an empty conversation to Gemini")
	}
	g.model.Tools = convertDefinitionsToGeminiTools(definitions)

	// The last content is the new prompt.
	lastMessage := history[len(history)-1]

	chatSession := g.model.StartChat()
	chatSession.History = history[:len(history)-1]
	resp, err := chatSession.SendMessage(ctx, lastMessage.Parts...)
	if err != nil {
		return nil, errors.Transport(err, "failed to send message to Gemini")
	}

	return processGeminiResponse(resp)
}

// convertTurnsToGeminiContent converts the conversation to Gemini contents.
// Gemini matches function responses by name, so the name of each call is
// recovered from the assistant turn that issued it. Consecutive tool turns
// share a single content.
func convertTurnsToGeminiContent(turns []session.Turn) []*genai.Content {
	names := map[string]string{}
	var contents []*genai.Content

	for i := 0; i < len(turns); i++ {
		turn := turns[i]
		switch turn.Role {
		case session.RoleAssistant:
			var parts []genai.Part
			if turn.Content != "" {
				parts = append(parts, genai.Text(turn.Content))
			}
			for _, tc := range turn.ToolCalls {
				names[tc.ID] = tc.Name
				args, err := tc.DecodeArguments()
				if err != nil {
					args = map[string]any{}
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case session.RoleTool:
			var parts []genai.Part
			for ; i < len(turns) && turns[i].Role == session.RoleTool; i++ {
				parts = append(parts, genai.FunctionResponse{
					Name:     names[turns[i].ToolCallID],
					Response: map[string]any{"content": turns[i].Content},
				})
			}
			i--
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(turn.Content)},
			})
		}
	}
	return contents
}

// convertDefinitionsToGeminiTools converts tool definitions to Gemini's FunctionDeclaration format.
func convertDefinitionsToGeminiTools(definitions []tools.Definition) []*genai.Tool {
	if len(definitions) == 0 {
		return nil
	}

	var funcDecls []*genai.FunctionDeclaration
	for _, def := range definitions {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
			Required:   def.Parameters.Required,
		}
		for name, prop := range def.Parameters.Properties {
			schema.Properties[name] = geminiSchema(prop.Type, prop.Description, prop.Enum, prop.Items)
		}
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

func geminiSchema(typ, description string, enum []any, items any) *genai.Schema {
	s := &genai.Schema{Type: geminiType(typ), Description: description}
	for _, e := range enum {
		if v, ok := e.(string); ok {
			s.Enum = append(s.Enum, v)
		}
	}
	if s.Type == genai.TypeArray {
		itemType := "string"
		if m, ok := items.(map[string]any); ok {
			if t, ok := m["type"].(string); ok {
				itemType = t
			}
		}
		s.Items = &genai.Schema{Type: geminiType(itemType)}
	}
	return s
}

func geminiType(typ string) genai.Type {
	switch typ {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// processGeminiResponse converts a Gemini API response into a session.Turn.
// Gemini does not assign call ids, so one is synthesized per call.
func processGeminiResponse(resp *genai.GenerateContentResponse) (*session.Turn, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.Newk(errors.KindTransport, "received an empty response from Gemini")
	}

	turn := &session.Turn{Role: session.RoleAssistant}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			turn.Content += string(v)
		case genai.FunctionCall:
			turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
				ID:        newCallID(),
				Name:      v.Name,
				Arguments: session.EncodeArguments(v.Args),
			})
		}
	}
	return turn, nil
}
