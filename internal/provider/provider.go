// Package provider implements the Agent Provider contract: a blocking
// run() and a streaming runStreaming() that both drive the same
// text-based tool-call loop (spec.md §4.7) against a pluggable model
// backend (Anthropic API or a CLI subprocess).
package provider

import (
	"context"

	"github.com/harrison/orchestra/internal/models"
)

// Capabilities is the descriptor Providers advertise (spec.md §4.7).
type Capabilities struct {
	Streaming          bool
	Interrupt          bool
	HealthCheck        bool
	FileEditing        bool
	Terminal           bool
	ToolCalling        bool
	MaxConcurrentAgents int
	Priority           int
}

// EventKind names one streamed loop event.
type EventKind string

const (
	EventText          EventKind = "Text"
	EventToolCallStart EventKind = "ToolCallStarted"
	EventToolCallOK    EventKind = "ToolCallCompleted"
	EventToolCallFail  EventKind = "ToolCallFailed"
	EventCompleted     EventKind = "Completed"
	EventError         EventKind = "Error"
)

// CompletionReason explains why a Completed event was emitted.
type CompletionReason string

const (
	ReasonEnd           CompletionReason = "end"
	ReasonMaxIterations CompletionReason = "max_iterations"
	ReasonCancelled     CompletionReason = "cancelled"
)

// Event is one normalized loop event delivered to runStreaming's callback.
type Event struct {
	Kind          EventKind
	Text          string
	ToolName      string
	ToolArgs      map[string]interface{}
	ToolResult    string // truncated for the event payload; full result goes into the conversation
	Reason        CompletionReason
	Recoverable   bool
	Err           error
}

// OnEvent receives loop events as runStreaming makes progress.
type OnEvent func(Event)

// Model is the minimal interface a backend (Anthropic API, CLI subprocess,
// ...) must satisfy: given a system prompt and a conversation, produce the
// model's full text response, feeding it incrementally through onChunk as
// it streams.
type Model interface {
	Complete(ctx context.Context, systemPrompt string, conversation []models.Message, onChunk func(string)) (string, error)
}

// Provider is the contract spec.md §4.7 names: run (blocking) and
// runStreaming (producing normalized events).
type Provider interface {
	Run(ctx context.Context, role models.Role, agentID, prompt string) (string, error)
	RunStreaming(ctx context.Context, role models.Role, agentID, prompt string, onEvent OnEvent) (string, error)
	Interrupt(agentID string)
	Capabilities() Capabilities
}
