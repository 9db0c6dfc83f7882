// Package toolexec executes parsed tool calls against a registered set of
// handlers and formats results for the next conversation turn (spec.md §4.5).
package toolexec

import (
	"fmt"

	"github.com/harrison/orchestra/internal/models"
)

// Handler executes one tool call's arguments and returns its output. An
// error here is captured and reported as a failed ToolResult — it never
// propagates to the caller of ExecuteAll.
type Handler func(args map[string]interface{}) (string, error)

// Registry maps a tool name to its Handler.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// ExecuteAll runs calls in input order, sequentially — ordering matters for
// the conversation log (spec.md §4.5). Failures (including an unregistered
// tool name) never propagate; they are captured as a failed ToolResult.
func (r *Registry) ExecuteAll(calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.execute(call))
	}
	return results
}

func (r *Registry) execute(call models.ToolCall) models.ToolResult {
	h, ok := r.handlers[call.Name]
	if !ok {
		return models.ToolResult{ToolName: call.Name, Success: false, Output: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	out, err := h(call.Arguments)
	if err != nil {
		return models.ToolResult{ToolName: call.Name, Success: false, Output: err.Error()}
	}
	return models.ToolResult{ToolName: call.Name, Success: true, Output: out}
}

// FormatResults renders results as concatenated <tool_result> blocks for
// the next user-role conversation message (spec.md §4.5).
func FormatResults(results []models.ToolResult) string {
	out := ""
	for _, r := range results {
		status := "success"
		if !r.Success {
			status = "error"
		}
		out += fmt.Sprintf("<tool_result>\n<tool_name>%s</tool_name>\n<status>%s</status>\n<output>%s</output>\n</tool_result>\n", r.ToolName, status, r.Output)
	}
	return out
}
