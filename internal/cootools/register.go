package cootools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/toolexec"
)

// RegisterTools adds the six coordination tools (spec.md §4.6) to r as
// toolexec.Handlers, so the provider's text-based tool-call loop can invoke
// them the same way it invokes the workspace file tools. r is shared across
// every agent's loop run, so each tool takes its actor's ID as an explicit
// argument (agentId / from) the way spec.md's tool signatures already
// require — the model supplies its own ID from its system prompt, the same
// as it does for every other coordination tool call. workspaceID is the
// fallback when a call omits workspaceId.
func (t *Tools) RegisterTools(r *toolexec.Registry, workspaceID string) {
	ctx := context.Background()

	r.Register("list_agents", func(args map[string]interface{}) (string, error) {
		ws := argString(args, "workspaceId", workspaceID)
		return envelopeJSON(t.ListAgents(ctx, ws))
	})

	r.Register("read_agent_conversation", func(args map[string]interface{}) (string, error) {
		return envelopeJSON(t.ReadAgentConversation(ctx, ReadAgentConversationArgs{
			AgentID:          argString(args, "agentId", ""),
			LastN:            argInt(args, "lastN"),
			StartTurn:        argInt(args, "startTurn"),
			EndTurn:          argInt(args, "endTurn"),
			IncludeToolCalls: argBool(args, "includeToolCalls", true),
		}))
	})

	r.Register("create_agent", func(args map[string]interface{}) (string, error) {
		return envelopeJSON(t.CreateAgent(ctx, CreateAgentArgs{
			Name:        argString(args, "name", ""),
			Role:        models.Role(argString(args, "role", "")),
			WorkspaceID: argString(args, "workspaceId", workspaceID),
			ParentID:    argString(args, "parentId", ""),
			ModelTier:   models.ModelTier(argString(args, "modelTier", "")),
		}))
	})

	r.Register("delegate", func(args map[string]interface{}) (string, error) {
		return envelopeJSON(t.Delegate(ctx,
			argString(args, "agentId", ""),
			argString(args, "taskId", ""),
			argString(args, "callerAgentId", ""),
		))
	})

	r.Register("message_agent", func(args map[string]interface{}) (string, error) {
		return envelopeJSON(t.MessageAgent(ctx,
			argString(args, "from", ""),
			argString(args, "to", ""),
			argString(args, "message", ""),
		))
	})

	r.Register("report_to_parent", func(args map[string]interface{}) (string, error) {
		agentID := argString(args, "agentId", "")
		report := models.CompletionReport{
			AgentID:       agentID,
			TaskID:        argString(args, "taskId", ""),
			Summary:       argString(args, "summary", ""),
			FilesModified: argStringSlice(args, "filesModified"),
			Success:       argBool(args, "success", true),
		}
		return envelopeJSON(t.ReportToParent(ctx, agentID, report))
	})
}

// envelopeJSON renders an Envelope as its JSON tool-result text. A failed
// envelope (Success false) is returned as that text together with an error
// carrying env.Error; a marshal failure returns "" and the marshal error.
func envelopeJSON(env Envelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal tool envelope: %w", err)
	}
	if !env.Success {
		return string(data), fmt.Errorf("%s", env.Error)
	}
	return string(data), nil
}

func argString(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func argBool(args map[string]interface{}, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

func argStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
