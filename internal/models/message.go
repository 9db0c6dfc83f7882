package models

import "time"

// MessageRole identifies the speaker of a conversation turn.
type MessageRole string

const (
	MessageUser      MessageRole = "USER"
	MessageAssistant MessageRole = "ASSISTANT"
	MessageTool      MessageRole = "TOOL"
)

// Message is one append-only entry in an agent's conversation log.
type Message struct {
	ID        string
	AgentID   string
	Role      MessageRole
	Content   string
	Timestamp time.Time
	Turn      int // monotonic per-agent, assigned at append time if zero
}
