package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/store"
	"github.com/harrison/orchestra/internal/toolcall"
	"github.com/harrison/orchestra/internal/toolexec"
)

// resultTruncateCap bounds the tool result text carried in streamed events;
// the full result still goes into the conversation (spec.md §4.7 step f).
const resultTruncateCap = 500

// SystemPrompts supplies the per-role preamble used to build each request.
type SystemPrompts map[models.Role]string

// LoopProvider drives the text-based tool-call loop (spec.md §4.7) over a
// Model backend, shared by every concrete Provider.
type LoopProvider struct {
	Model         Model
	Registry      *toolexec.Registry
	Conversations store.ConversationStore
	Prompts       SystemPrompts
	MaxIterations int
	Caps          Capabilities

	mu          sync.Mutex
	interrupted map[string]bool
}

// NewLoopProvider constructs a LoopProvider with the given collaborators.
// maxIterations defaults to 10 when <= 0.
func NewLoopProvider(model Model, registry *toolexec.Registry, conversations store.ConversationStore, prompts SystemPrompts, maxIterations int, caps Capabilities) *LoopProvider {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &LoopProvider{
		Model:         model,
		Registry:      registry,
		Conversations: conversations,
		Prompts:       prompts,
		MaxIterations: maxIterations,
		Caps:          caps,
		interrupted:   make(map[string]bool),
	}
}

// Capabilities returns the configured descriptor.
func (p *LoopProvider) Capabilities() Capabilities { return p.Caps }

// Interrupt sets the cancellation flag checked at loop head and between
// tool executions (spec.md §4.7).
func (p *LoopProvider) Interrupt(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupted[agentID] = true
}

func (p *LoopProvider) isInterrupted(agentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupted[agentID]
}

func (p *LoopProvider) clearInterrupt(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interrupted, agentID)
}

// Run is the blocking entry point: run the loop and discard intermediate events.
func (p *LoopProvider) Run(ctx context.Context, role models.Role, agentID, prompt string) (string, error) {
	return p.RunStreaming(ctx, role, agentID, prompt, nil)
}

// RunStreaming implements the loop algorithm of spec.md §4.7.
func (p *LoopProvider) RunStreaming(ctx context.Context, role models.Role, agentID, prompt string, onEvent OnEvent) (string, error) {
	defer p.clearInterrupt(agentID)

	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	if _, err := p.Conversations.Append(ctx, models.Message{AgentID: agentID, Role: models.MessageUser, Content: prompt}); err != nil {
		return "", fmt.Errorf("seed conversation: %w", err)
	}

	systemPrompt := p.Prompts[role]
	var cleanAccum string

	for iter := 1; iter <= p.MaxIterations; iter++ {
		if p.isInterrupted(agentID) {
			emit(Event{Kind: EventCompleted, Reason: ReasonCancelled})
			return cleanAccum, nil
		}

		conversation, err := p.Conversations.GetConversation(ctx, agentID)
		if err != nil {
			return cleanAccum, fmt.Errorf("load conversation: %w", err)
		}

		filter := toolcall.NewStreamFilter(
			func(chunk string) {
				cleanAccum += chunk
				emit(Event{Kind: EventText, Text: chunk})
			},
			nil,
		)

		fullResponse, err := p.Model.Complete(ctx, systemPrompt, conversation, filter.Feed)
		filter.Flush()
		if err != nil {
			emit(Event{Kind: EventError, Err: err, Recoverable: iter < p.MaxIterations})
			return cleanAccum, fmt.Errorf("model call: %w", err)
		}

		calls := toolcall.Extract(fullResponse)
		if len(calls) == 0 {
			emit(Event{Kind: EventCompleted, Reason: ReasonEnd})
			return cleanAccum, nil
		}

		if _, err := p.Conversations.Append(ctx, models.Message{AgentID: agentID, Role: models.MessageAssistant, Content: fullResponse}); err != nil {
			return cleanAccum, fmt.Errorf("append assistant turn: %w", err)
		}

		results := make([]models.ToolResult, 0, len(calls))
		for _, call := range calls {
			if p.isInterrupted(agentID) {
				emit(Event{Kind: EventCompleted, Reason: ReasonCancelled})
				return cleanAccum, nil
			}
			emit(Event{Kind: EventToolCallStart, ToolName: call.Name, ToolArgs: call.Arguments})
			result := p.Registry.ExecuteAll([]models.ToolCall{call})[0]
			results = append(results, result)

			truncated := result.Output
			if len(truncated) > resultTruncateCap {
				truncated = truncated[:resultTruncateCap]
			}
			if result.Success {
				emit(Event{Kind: EventToolCallOK, ToolName: call.Name, ToolResult: truncated})
			} else {
				emit(Event{Kind: EventToolCallFail, ToolName: call.Name, ToolResult: truncated})
			}
		}

		feedback := toolexec.FormatResults(results)
		if _, err := p.Conversations.Append(ctx, models.Message{AgentID: agentID, Role: models.MessageUser, Content: feedback}); err != nil {
			return cleanAccum, fmt.Errorf("append tool results: %w", err)
		}
	}

	emit(Event{Kind: EventCompleted, Reason: ReasonMaxIterations})
	return cleanAccum, nil
}
