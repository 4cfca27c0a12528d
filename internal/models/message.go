package models

// Role tags a conversation turn with its speaker.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single role-tagged turn in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system-prompt turn.
func System(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// User builds a user turn.
func User(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}
