package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
)

const (
	defaultBedrockModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	bedrockAPIVersion   = "bedrock-2023-05-31"
)

// BedrockLLMClient is a client for the Anthropic models on AWS Bedrock.
type BedrockLLMClient struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int64
}

// NewBedrockLLMClient creates a new BedrockLLMClient.
// It requires AWS credentials to be configured in the environment.
func NewBedrockLLMClient(ctx context.Context, cfg *config.Config) (*BedrockLLMClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}

	if awsCfg.Region == "" {
		awsCfg.Region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	// A custom endpoint is mostly useful against local emulators.
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = os.Getenv("BEDROCK_ENDPOINT_URL")
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	modelID := cfg.Model
	if modelID == "" {
		modelID = defaultBedrockModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &BedrockLLMClient{
		client:    client,
		modelID:   modelID,
		maxTokens: maxTokens,
	}, nil
}

// Chat sends a chat request to the Anthropic model via AWS Bedrock.
func (b *BedrockLLMClient) Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error) {
	requestBody, err := createBedrockRequest(convertTurnsToBedrockFormat(turns), definitions, b.maxTokens)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, errors.Transport(err, "failed to invoke Bedrock model")
	}

	return processBedrockResponse(resp.Body)
}

// convertTurnsToBedrockFormat converts the conversation to the Anthropic
// messages format understood by Bedrock. Consecutive tool turns share a
// single user message.
func convertTurnsToBedrockFormat(turns []session.Turn) []map[string]interface{} {
	var messages []map[string]interface{}

	for i := 0; i < len(turns); i++ {
		turn := turns[i]
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": turn.Content},
				},
			})
		case session.RoleAssistant:
			var content []map[string]interface{}
			if turn.Content != "" {
				content = append(content, map[string]interface{}{"type": "text", "text": turn.Content})
			}
			for _, tc := range turn.ToolCalls {
				content = append(content, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": rawArguments(tc.Arguments),
				})
			}
			if len(content) == 0 {
				continue
			}
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": content,
			})
		case session.RoleTool:
			var results []map[string]interface{}
			for ; i < len(turns) && turns[i].Role == session.RoleTool; i++ {
				result := map[string]interface{}{
					"type":        "tool_result",
					"tool_use_id": turns[i].ToolCallID,
					"content":     turns[i].Content,
				}
				if isErrorResult(turns[i].Content) {
					result["is_error"] = true
				}
				results = append(results, result)
			}
			i--
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": results,
			})
		}
	}

	return messages
}

// createBedrockRequest creates the request body for Anthropic models on Bedrock.
func createBedrockRequest(messages []map[string]interface{}, definitions []tools.Definition, maxTokens int64) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": bedrockAPIVersion,
		"max_tokens":        maxTokens,
		"messages":          messages,
	}

	if len(definitions) > 0 {
		var bedrockTools []map[string]interface{}
		for _, def := range definitions {
			bedrockTools = append(bedrockTools, map[string]interface{}{
				"name":         def.Name,
				"description":  def.Description,
				"input_schema": def.Parameters.Schema(),
			})
		}
		request["tools"] = bedrockTools
	}

	return json.Marshal(request)
}

type bedrockResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Error any `json:"error"`
}

// processBedrockResponse converts a Bedrock response body into a session.Turn.
func processBedrockResponse(body []byte) (*session.Turn, error) {
	var response bedrockResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Transport(err, "failed to unmarshal Bedrock response")
	}
	if response.Error != nil {
		return nil, errors.Newk(errors.KindTransport, "Bedrock API error: %v", response.Error)
	}

	turn := &session.Turn{Role: session.RoleAssistant}
	for _, item := range response.Content {
		switch item.Type {
		case "text":
			turn.Content += item.Text
		case "tool_use":
			id := item.ID
			if id == "" {
				id = newCallID()
			}
			turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
				ID:        id,
				Name:      item.Name,
				Arguments: string(item.Input),
			})
		}
	}
	return turn, nil
}
