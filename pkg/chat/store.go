package chat

import "context"

// Store persists conversation logs. Implementations only need append and
// read semantics; messages are never mutated or deleted.
type Store interface {
	// AppendMessages appends messages to a conversation log.
	AppendMessages(ctx context.Context, userID, conversationID string, msgs ...Message) error

	// Messages returns the full conversation log in order.
	Messages(ctx context.Context, userID, conversationID string) ([]Message, error)
}
