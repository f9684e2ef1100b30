package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
)

// LLMClient is the interface for interacting with a Large Language Model.
// Chat performs one synchronous round trip and returns a single assistant
// turn. Transport failures are reported with errors.KindTransport.
type LLMClient interface {
	Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error)
}

// Request records one call made to a MockLLMClient.
type Request struct {
	Turns       []session.Turn
	Definitions []tools.Definition
}

// MockLLMClient replays scripted responses in order. Once the script is
// exhausted it parrots the last user message back.
type MockLLMClient struct {
	Responses []session.Turn
	// Err, if set, is returned by every call.
	Err error

	mu       sync.Mutex
	requests []Request
}

func (m *MockLLMClient) Chat(ctx context.Context, turns []session.Turn, definitions []tools.Definition) (*session.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, Request{
		Turns:       append([]session.Turn(nil), turns...),
		Definitions: append([]tools.Definition(nil), definitions...),
	})
	if m.Err != nil {
		return nil, m.Err
	}

	if len(m.Responses) > 0 {
		next := m.Responses[0]
		m.Responses = m.Responses[1:]
		next.Role = session.RoleAssistant
		return &next, nil
	}

	var lastUserMessage string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == session.RoleUser {
			lastUserMessage = turns[i].Content
			break
		}
	}
	return &session.Turn{
		Role:    session.RoleAssistant,
		Content: fmt.Sprintf("I am a mock LLM. You said: '%s'.", lastUserMessage),
	}, nil
}

// Requests returns every request received so far.
func (m *MockLLMClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// newCallID synthesizes an id for gateways that do not assign one.
func newCallID() string {
	return "call_" + uuid.NewString()
}
