package chat

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// HistoryLimit is the maximum number of prior messages sent to the model.
// Older turns are dropped to bound request size.
const HistoryLimit = 24

// Message is one turn of a conversation. Messages are append-only:
// created once per turn and never mutated.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Truncate returns the most recent limit messages, preserving order.
// The input slice is not modified.
func Truncate(msgs []Message, limit int) []Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}
