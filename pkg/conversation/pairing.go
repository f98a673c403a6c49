package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRole          = errors.New("unknown role")
	ErrUnpairedToolTurn     = errors.New("tool turn does not follow its invocation")
	ErrUnansweredInvocation = errors.New("invocation is not followed by its tool result")
)

// ValidatePairing checks that every tool turn immediately follows the assistant
// turn that issued the matching invocation, and that every invocation is
// answered right away. Providers reject conversations that break this.
func ValidatePairing(c Conversation) error {
	for i, t := range c {
		switch t.Role {
		case RoleSystem, RoleUser:
		case RoleAssistant:
			if t.Invocation == nil {
				continue
			}
			if i+1 >= len(c) {
				return fmt.Errorf("%w: turn %d (%s)", ErrUnansweredInvocation, i, t.Invocation.Name)
			}
			next := c[i+1]
			if next.Role != RoleTool || next.InvocationID != t.Invocation.ID {
				return fmt.Errorf("%w: turn %d (%s)", ErrUnansweredInvocation, i, t.Invocation.Name)
			}
		case RoleTool:
			if i == 0 {
				return fmt.Errorf("%w: turn %d", ErrUnpairedToolTurn, i)
			}
			prev := c[i-1]
			if prev.Role != RoleAssistant || prev.Invocation == nil {
				return fmt.Errorf("%w: turn %d", ErrUnpairedToolTurn, i)
			}
			if prev.Invocation.ID != t.InvocationID || prev.Invocation.Name != t.Name {
				return fmt.Errorf("%w: turn %d answers %q/%q, expected %q/%q",
					ErrUnpairedToolTurn, i, t.InvocationID, t.Name, prev.Invocation.ID, prev.Invocation.Name)
			}
		default:
			return fmt.Errorf("%w: %q at turn %d", ErrUnknownRole, t.Role, i)
		}
	}
	return nil
}
