package session

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run one named tool. Arguments hold the
// serialized JSON object exactly as the gateway returned it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// DecodeArguments parses the serialized arguments into a map. Empty input
// decodes to an empty map.
func (tc ToolCall) DecodeArguments() (map[string]any, error) {
	args := map[string]any{}
	if tc.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// EncodeArguments serializes an argument map for a ToolCall.
func EncodeArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// UserTurn, AssistantTurn and ToolTurn build turns of each role.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

func AssistantTurn(content string, calls ...ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolTurn(toolCallID, content string) Turn {
	return Turn{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

func (t Turn) clone() Turn {
	t.ToolCalls = slices.Clone(t.ToolCalls)
	return t
}

// Conversation is the append-only history of one run. Turns cannot be edited
// or removed once appended; accessors hand out copies.
type Conversation struct {
	turns   []Turn
	pending []ToolCall
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a turn to the end of the history. Tool turns must answer the
// next unanswered call of the latest assistant turn, and user or assistant
// turns are refused while calls are still unanswered.
func (c *Conversation) Append(t Turn) error {
	switch t.Role {
	case RoleUser, RoleAssistant:
		if len(c.pending) > 0 {
			return fmt.Errorf("cannot append %s turn: tool call %q is unanswered", t.Role, c.pending[0].ID)
		}
		if t.Role == RoleUser && len(t.ToolCalls) > 0 {
			return fmt.Errorf("user turn cannot carry tool calls")
		}
		if t.ToolCallID != "" {
			return fmt.Errorf("%s turn cannot carry a tool call id", t.Role)
		}
	case RoleTool:
		if len(c.pending) == 0 {
			return fmt.Errorf("tool turn %q does not answer any pending tool call", t.ToolCallID)
		}
		if c.pending[0].ID != t.ToolCallID {
			return fmt.Errorf("tool turn %q out of order: expected answer to %q", t.ToolCallID, c.pending[0].ID)
		}
	default:
		return fmt.Errorf("unknown role %q", t.Role)
	}

	t = t.clone()
	c.turns = append(c.turns, t)
	if t.Role == RoleTool {
		c.pending = c.pending[1:]
	} else if t.Role == RoleAssistant {
		c.pending = slices.Clone(t.ToolCalls)
	}
	return nil
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = t.clone()
	}
	return out
}

// Len returns the number of turns appended so far.
func (c *Conversation) Len() int { return len(c.turns) }

// Last returns the most recent turn.
func (c *Conversation) Last() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1].clone(), true
}

// Pending returns the tool calls of the latest assistant turn that have not
// been answered yet, in call order.
func (c *Conversation) Pending() []ToolCall {
	return slices.Clone(c.pending)
}
