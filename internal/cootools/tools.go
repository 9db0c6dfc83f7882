// Package cootools implements the six coordination tools agents call
// (directly via the Provider loop, or over the A2A protocol adapter)
// to inspect and mutate the Agent/Task/Conversation stores (spec.md §4.6).
package cootools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/orchestra/internal/eventbus"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/store"
)

// Envelope is the `{success, data|error}` shape every coordination tool
// returns; callers never see a Go error cross this boundary.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(data interface{}) Envelope { return Envelope{Success: true, Data: data} }
func fail(err error) Envelope      { return Envelope{Success: false, Error: err.Error()} }
func failMsg(msg string) Envelope  { return Envelope{Success: false, Error: msg} }

// Tools bundles the stores and event bus the coordination tool handlers
// operate on.
type Tools struct {
	Agents        store.AgentStore
	Tasks         store.TaskStore
	Conversations store.ConversationStore
	Bus           *eventbus.Bus
}

// AgentSummary is the shape ListAgents returns for each agent.
type AgentSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	ParentID string `json:"parentId"`
}

// ListAgents returns {id, name, role, status, parentId} for every agent
// in the workspace.
func (t *Tools) ListAgents(ctx context.Context, workspaceID string) Envelope {
	agents, err := t.Agents.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return fail(err)
	}
	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentSummary{ID: a.ID, Name: a.Name, Role: string(a.Role), Status: string(a.Status), ParentID: a.ParentID})
	}
	return ok(out)
}

// ReadAgentConversationArgs selects the conversation window to return.
type ReadAgentConversationArgs struct {
	AgentID          string `json:"agentId"`
	LastN            int    `json:"lastN,omitempty"`
	StartTurn        int    `json:"startTurn,omitempty"`
	EndTurn          int    `json:"endTurn,omitempty"`
	IncludeToolCalls bool   `json:"includeToolCalls"`
}

// ReadAgentConversation returns a filtered view of an agent's conversation.
// Fails if the agent is unknown.
func (t *Tools) ReadAgentConversation(ctx context.Context, args ReadAgentConversationArgs) Envelope {
	if _, found, err := t.Agents.Get(ctx, args.AgentID); err != nil {
		return fail(err)
	} else if !found {
		return failMsg(fmt.Sprintf("agent %s not found", args.AgentID))
	}

	var msgs []models.Message
	var err error
	switch {
	case args.StartTurn != 0 || args.EndTurn != 0:
		msgs, err = t.Conversations.GetByTurnRange(ctx, args.AgentID, args.StartTurn, args.EndTurn)
	case args.LastN > 0:
		msgs, err = t.Conversations.GetLastN(ctx, args.AgentID, args.LastN)
	default:
		msgs, err = t.Conversations.GetConversation(ctx, args.AgentID)
	}
	if err != nil {
		return fail(err)
	}
	return ok(msgs)
}

// CreateAgentArgs are the inputs for CreateAgent.
type CreateAgentArgs struct {
	Name        string           `json:"name"`
	Role        models.Role      `json:"role"`
	WorkspaceID string           `json:"workspaceId"`
	ParentID    string           `json:"parentId,omitempty"`
	ModelTier   models.ModelTier `json:"modelTier,omitempty"`
}

// CreateAgent creates a PENDING agent, emits AgentCreated, and returns it.
func (t *Tools) CreateAgent(ctx context.Context, args CreateAgentArgs) Envelope {
	now := time.Now()
	agent := models.Agent{
		ID:          uuid.NewString(),
		WorkspaceID: args.WorkspaceID,
		Role:        args.Role,
		Status:      models.AgentPending,
		ParentID:    args.ParentID,
		Name:        args.Name,
		ModelTier:   args.ModelTier,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := agent.Validate(); err != nil {
		return fail(err)
	}
	if err := t.Agents.Save(ctx, agent); err != nil {
		return fail(err)
	}
	t.emit(models.Event{Type: models.EventAgentCreated, At: now, AgentID: agent.ID})
	return ok(agent)
}

// Delegate assigns taskID to agentID: task→IN_PROGRESS, agent→ACTIVE.
// Fails if the agent or task is missing.
func (t *Tools) Delegate(ctx context.Context, agentID, taskID, callerAgentID string) Envelope {
	task, found, err := t.Tasks.Get(ctx, taskID)
	if err != nil {
		return fail(err)
	}
	if !found {
		return failMsg(fmt.Sprintf("task %s not found", taskID))
	}
	if _, found, err := t.Agents.Get(ctx, agentID); err != nil {
		return fail(err)
	} else if !found {
		return failMsg(fmt.Sprintf("agent %s not found", agentID))
	}

	now := time.Now()
	task.Status = models.TaskInProgress
	task.AssignedTo = agentID
	task.UpdatedAt = now
	if err := t.Tasks.Save(ctx, task); err != nil {
		return fail(err)
	}

	if err := t.Agents.UpdateStatus(ctx, agentID, models.AgentActive); err != nil {
		return fail(err)
	}

	t.emit(models.Event{Type: models.EventTaskDelegated, At: now, AgentID: agentID, TaskID: taskID, Data: map[string]string{"caller": callerAgentID}})
	t.emit(models.Event{Type: models.EventAgentStatusChanged, At: now, AgentID: agentID, To: string(models.AgentActive)})
	return ok(task)
}

// MessageAgent appends a USER-role message to the recipient's conversation
// with a "[From <sender> (<role>)]: ..." prefix, and emits an event.
func (t *Tools) MessageAgent(ctx context.Context, from, to, message string) Envelope {
	senderRole := "external"
	if sender, found, err := t.Agents.Get(ctx, from); err == nil && found {
		senderRole = string(sender.Role)
	}
	if _, found, err := t.Agents.Get(ctx, to); err != nil {
		return fail(err)
	} else if !found {
		return failMsg(fmt.Sprintf("agent %s not found", to))
	}

	content := fmt.Sprintf("[From %s (%s)]: %s", from, senderRole, message)
	msg, err := t.Conversations.Append(ctx, models.Message{AgentID: to, Role: models.MessageUser, Content: content, Timestamp: time.Now()})
	if err != nil {
		return fail(err)
	}
	t.emit(models.Event{Type: models.EventMessageReceived, At: msg.Timestamp, AgentID: to, Data: map[string]string{"from": from}})
	return ok(msg)
}

// ReportToParent implements the reporter-role-driven status reconciliation
// of spec.md §4.8: CRAFTER reports move their task to REVIEW_REQUIRED (on
// success) and mark the crafter COMPLETED; GATE reports resolve every
// REVIEW_REQUIRED task it reviewed to COMPLETED or NEEDS_FIX per the
// verdict and mark the gate COMPLETED. Fails if the agent has no parent.
func (t *Tools) ReportToParent(ctx context.Context, agentID string, report models.CompletionReport) Envelope {
	agent, found, err := t.Agents.Get(ctx, agentID)
	if err != nil {
		return fail(err)
	}
	if !found {
		return failMsg(fmt.Sprintf("agent %s not found", agentID))
	}
	if agent.ParentID == "" {
		return failMsg(fmt.Sprintf("agent %s has no parent", agentID))
	}

	now := time.Now()
	switch agent.Role {
	case models.RoleCrafter:
		if err := t.resolveCrafterReport(ctx, agentID, report, now); err != nil {
			return fail(err)
		}
	case models.RoleGate:
		if err := t.resolveGateReport(ctx, agentID, agent.WorkspaceID, report, now); err != nil {
			return fail(err)
		}
	default:
		return failMsg(fmt.Sprintf("role %s does not report to a parent", agent.Role))
	}

	payload, _ := json.Marshal(report)
	content := fmt.Sprintf("[Report from %s (%s)]: %s", agentID, agent.Role, string(payload))
	if _, err := t.Conversations.Append(ctx, models.Message{AgentID: agent.ParentID, Role: models.MessageUser, Content: content, Timestamp: now}); err != nil {
		return fail(err)
	}

	if err := t.Agents.UpdateStatus(ctx, agentID, models.AgentCompleted); err != nil {
		return fail(err)
	}
	t.emit(models.Event{Type: models.EventAgentStatusChanged, At: now, AgentID: agentID, To: string(models.AgentCompleted)})
	return ok(map[string]string{"status": "reported"})
}

func (t *Tools) resolveCrafterReport(ctx context.Context, agentID string, report models.CompletionReport, at time.Time) error {
	if report.TaskID == "" {
		return fmt.Errorf("report_to_parent: crafter report missing taskId")
	}
	task, found, err := t.Tasks.Get(ctx, report.TaskID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("task %s not found", report.TaskID)
	}
	if report.Success {
		task.Status = models.TaskReviewRequired
	}
	task.CompletionSummary = report.Summary
	task.UpdatedAt = at
	if err := t.Tasks.Save(ctx, task); err != nil {
		return err
	}
	t.emit(models.Event{Type: models.EventTaskStatusChanged, At: at, AgentID: agentID, TaskID: task.ID, To: string(task.Status)})
	return nil
}

func (t *Tools) resolveGateReport(ctx context.Context, agentID, workspaceID string, report models.CompletionReport, at time.Time) error {
	tasks, err := t.Tasks.ListByStatus(ctx, workspaceID, models.TaskReviewRequired)
	if err != nil {
		return err
	}
	verdict := models.VerdictApproved
	if !report.Success {
		verdict = models.VerdictNotApproved
	}
	for _, task := range tasks {
		task.VerificationVerdict = &verdict
		task.VerificationReport = report.Summary
		task.UpdatedAt = at
		if report.Success {
			task.Status = models.TaskCompleted
		} else {
			task.Status = models.TaskNeedsFix
		}
		if err := t.Tasks.Save(ctx, task); err != nil {
			return err
		}
		t.emit(models.Event{Type: models.EventTaskStatusChanged, At: at, AgentID: agentID, TaskID: task.ID, To: string(task.Status)})
	}
	return nil
}

func (t *Tools) emit(ev models.Event) {
	if t.Bus != nil {
		t.Bus.Emit(ev)
	}
}
