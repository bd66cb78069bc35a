package domain

import "strings"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered message sequence. The last message is the
// one being asked.
type Conversation []Message

// ParseRole maps the role spellings clients send to a Role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem, true
	case "user", "human":
		return RoleUser, true
	case "assistant", "ai", "model":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Last returns the final message of the conversation.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// Normalize returns a copy with every role canonicalized. ok is false if
// any message carries a role that cannot be mapped.
func (c Conversation) Normalize() (Conversation, bool) {
	out := make(Conversation, 0, len(c))
	for _, m := range c {
		role, ok := ParseRole(string(m.Role))
		if !ok {
			return nil, false
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out, true
}
