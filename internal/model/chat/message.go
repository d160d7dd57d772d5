package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known kinds.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one persisted conversation turn. Messages are immutable once
// written; the store assigns the ID on append.
type Message struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Turn is the completion-window projection of a message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Window converts a transcript slice into completion turns, preserving order.
func Window(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
