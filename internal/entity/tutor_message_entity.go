package entity

import "time"

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one transcript turn. It is never mutated after creation.
type Message struct {
	Role      MessageRole
	Content   string
	Timestamp *time.Time
}

func NewSystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content, Timestamp: now()}
}

func NewUserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content, Timestamp: now()}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content, Timestamp: now()}
}

func now() *time.Time {
	t := time.Now()
	return &t
}
