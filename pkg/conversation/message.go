package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

// ParseRole accepts the four conversation roles, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSystem:
		return RoleSystem, nil
	case RoleAssistant:
		return RoleAssistant, nil
	case RoleUser:
		return RoleUser, nil
	case RoleTool:
		return RoleTool, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Invocation records the capability an assistant turn asked for.
type Invocation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is one entry of a conversation. Content is nil for assistant turns that
// only carry an invocation request.
type Turn struct {
	Role    Role    `json:"role"`
	Content *string `json:"content"`

	// set on assistant turns that requested a capability
	Invocation *Invocation `json:"invocation,omitempty"`

	// set on tool turns, pointing back at the invocation they answer
	InvocationID string `json:"invocation_id,omitempty"`
	Name         string `json:"name,omitempty"`
}

func textTurn(role Role, text string) Turn {
	return Turn{Role: role, Content: &text}
}

func NewSystemTurn(text string) Turn    { return textTurn(RoleSystem, text) }
func NewUserTurn(text string) Turn      { return textTurn(RoleUser, text) }
func NewAssistantTurn(text string) Turn { return textTurn(RoleAssistant, text) }

// NewInvocationTurn creates the assistant turn that records a capability request.
func NewInvocationTurn(inv Invocation) Turn {
	return Turn{Role: RoleAssistant, Invocation: &inv}
}

// NewToolTurn creates the turn carrying a serialized capability result.
func NewToolTurn(invocationID, name, content string) Turn {
	return Turn{
		Role:         RoleTool,
		Content:      &content,
		InvocationID: invocationID,
		Name:         name,
	}
}

// Text returns the content, or the empty string for null content.
func (t Turn) Text() string {
	if t.Content == nil {
		return ""
	}
	return *t.Content
}

func (t Turn) String() string {
	if t.Invocation != nil {
		return fmt.Sprintf("[%s]: invoke %s(%s)", t.Role, t.Invocation.Name, t.Invocation.Arguments)
	}
	return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(t.Text(), "\n"))
}

// Conversation is an ordered, chronological sequence of turns.
type Conversation []Turn

// Clone copies the slice and the per-turn pointers so appends and edits on the
// copy never leak into the original.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, t := range c {
		if t.Content != nil {
			s := *t.Content
			t.Content = &s
		}
		if t.Invocation != nil {
			inv := *t.Invocation
			inv.Arguments = append(json.RawMessage(nil), t.Invocation.Arguments...)
			t.Invocation = &inv
		}
		out[i] = t
	}
	return out
}

// Roles lists the role of every turn, mostly for logging.
func (c Conversation) Roles() []string {
	ret := make([]string, 0, len(c))
	for _, t := range c {
		ret = append(ret, string(t.Role))
	}
	return ret
}
