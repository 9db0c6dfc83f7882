// Package coordinator implements the Coordinator State Machine (spec.md
// §4.8): phase transitions, task registration, wave scheduling and the
// store-based verdict reconciliation that replaces NEEDS_FIX tasks into a
// future wave. Ready-task computation is recomputed on every call rather
// than partitioned once up front (the teacher's internal/executor/graph.go
// topological sort runs once per plan; here NEEDS_FIX resets put tasks
// back to PENDING mid-run, so the graph must be re-walked each wave).
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/orchestra/internal/cootools"
	"github.com/harrison/orchestra/internal/eventbus"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/planparser"
	"github.com/harrison/orchestra/internal/store"
)

// Coordinator drives one workspace's CoordinationState through the phases
// of spec.md §4.8.
type Coordinator struct {
	Agents        store.AgentStore
	Tasks         store.TaskStore
	Conversations store.ConversationStore
	Bus           *eventbus.Bus
	Tools         *cootools.Tools

	MaxParallelism int // clamped to [1,5] by models.ClampMaxParallelism

	state *models.CoordinationState
}

// New constructs a Coordinator for workspaceID with the given collaborators.
func New(workspaceID string, agents store.AgentStore, tasks store.TaskStore, conversations store.ConversationStore, bus *eventbus.Bus) *Coordinator {
	return &Coordinator{
		Agents:        agents,
		Tasks:         tasks,
		Conversations: conversations,
		Bus:           bus,
		Tools:         &cootools.Tools{Agents: agents, Tasks: tasks, Conversations: conversations, Bus: bus},
		state:         models.NewCoordinationState(workspaceID),
	}
}

// State returns the current CoordinationState snapshot.
func (c *Coordinator) State() models.CoordinationState { return *c.state }

// Initialize creates the ROUTA agent if absent and sets phase PLANNING.
func (c *Coordinator) Initialize(ctx context.Context) (string, error) {
	agents, err := c.Agents.ListByWorkspace(ctx, c.state.WorkspaceID)
	if err != nil {
		return "", fmt.Errorf("initialize: %w", err)
	}
	for _, a := range agents {
		if a.Role == models.RoleRouta {
			c.state.RoutaAgentID = a.ID
			c.state.Phase = models.PhasePlanning
			return a.ID, nil
		}
	}

	env := c.Tools.CreateAgent(ctx, cootools.CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: c.state.WorkspaceID})
	if !env.Success {
		return "", fmt.Errorf("initialize: %s", env.Error)
	}
	routa := env.Data.(models.Agent)
	c.state.RoutaAgentID = routa.ID
	c.state.Phase = models.PhasePlanning
	return routa.ID, nil
}

// RegisterTasks parses planText (spec.md §4.3), persists each as a PENDING
// task and sets phase READY. Returns task IDs in parse order. A plan with
// zero tasks returns an empty list and still moves to READY.
func (c *Coordinator) RegisterTasks(ctx context.Context, planText string) ([]string, error) {
	specs, _, err := planparser.Parse(planText)
	if err != nil {
		return nil, fmt.Errorf("register tasks: %w", err)
	}

	ids := make([]string, 0, len(specs))
	now := time.Now()
	for _, spec := range specs {
		task := models.Task{
			ID:                   uuid.NewString(),
			WorkspaceID:          c.state.WorkspaceID,
			Title:                spec.Title,
			Objective:            spec.Objective,
			Scope:                spec.Scope,
			AcceptanceCriteria:   spec.AcceptanceCriteria,
			VerificationCommands: spec.VerificationCommands,
			Status:               models.TaskPending,
			Dependencies:         spec.Dependencies,
			ParallelGroup:        spec.ParallelGroup,
			UpdatedAt:            now,
		}
		if err := c.Tasks.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("register task %s: %w", task.Title, err)
		}
		ids = append(ids, task.ID)
	}

	c.state.Phase = models.PhaseReady
	return ids, nil
}

// Delegation pairs a freshly-created CRAFTER with the task it was assigned.
type Delegation struct {
	CrafterID string
	TaskID    string
}

// ExecuteNextWave computes ready tasks, picks the lowest parallelGroup with
// ready work, creates a CRAFTER per picked task (up to MaxParallelism) and
// delegates. Returns the created pairs in assignment order (spec.md §4.8).
func (c *Coordinator) ExecuteNextWave(ctx context.Context) ([]Delegation, error) {
	tasks, err := c.Tasks.ListByWorkspace(ctx, c.state.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("execute next wave: %w", err)
	}

	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	ready := readyTasksByLowestGroup(tasks, byID)
	limit := models.ClampMaxParallelism(c.MaxParallelism)
	if limit > len(ready) {
		limit = len(ready)
	}
	picked := ready[:limit]

	var delegations []Delegation
	activeIDs := make([]string, 0, len(picked))
	for _, task := range picked {
		env := c.Tools.CreateAgent(ctx, cootools.CreateAgentArgs{
			Name:        "crafter-" + task.Title,
			Role:        models.RoleCrafter,
			WorkspaceID: c.state.WorkspaceID,
			ParentID:    c.state.RoutaAgentID,
		})
		if !env.Success {
			return delegations, fmt.Errorf("execute next wave: create crafter: %s", env.Error)
		}
		crafter := env.Data.(models.Agent)

		delegateEnv := c.Tools.Delegate(ctx, crafter.ID, task.ID, c.state.RoutaAgentID)
		if !delegateEnv.Success {
			return delegations, fmt.Errorf("execute next wave: delegate: %s", delegateEnv.Error)
		}

		delegations = append(delegations, Delegation{CrafterID: crafter.ID, TaskID: task.ID})
		activeIDs = append(activeIDs, crafter.ID)
	}

	c.state.Phase = models.PhaseExecuting
	c.state.CurrentWave++
	c.state.ActiveTaskIDs = activeIDs
	return delegations, nil
}

// readyTasksByLowestGroup computes ready tasks (PENDING, all deps
// COMPLETED) and returns those in the lowest parallelGroup that has any.
// Within that group tasks keep the order the TaskStore listed them in; the
// in-memory store lists them in no fixed order.
func readyTasksByLowestGroup(tasks []models.Task, byID map[string]models.Task) []models.Task {
	byGroup := make(map[int][]models.Task)
	for _, t := range tasks {
		if models.IsReady(t, byID) {
			byGroup[t.ParallelGroup] = append(byGroup[t.ParallelGroup], t)
		}
	}
	if len(byGroup) == 0 {
		return nil
	}
	groups := make([]int, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	return byGroup[groups[0]]
}

// StartVerification creates a GATE agent if any task is REVIEW_REQUIRED
// and sets phase VERIFYING. Returns "" if there is nothing to verify.
func (c *Coordinator) StartVerification(ctx context.Context) (string, error) {
	reviewTasks, err := c.Tasks.ListByStatus(ctx, c.state.WorkspaceID, models.TaskReviewRequired)
	if err != nil {
		return "", fmt.Errorf("start verification: %w", err)
	}
	if len(reviewTasks) == 0 {
		return "", nil
	}

	env := c.Tools.CreateAgent(ctx, cootools.CreateAgentArgs{Name: "gate", Role: models.RoleGate, WorkspaceID: c.state.WorkspaceID, ParentID: c.state.RoutaAgentID})
	if !env.Success {
		return "", fmt.Errorf("start verification: %s", env.Error)
	}
	gate := env.Data.(models.Agent)
	c.state.GateAgentID = gate.ID
	c.state.Phase = models.PhaseVerifying
	return gate.ID, nil
}

// crafterContextMessages bounds how many prior conversation turns are
// included in a GATE's review context per crafter.
const crafterContextMessages = 5

// BuildAgentContext assembles the agent-facing prompt: a role-specific
// preamble, task details, and for GATE, per REVIEW_REQUIRED task: title,
// objective, acceptance criteria, crafter report, the crafter's last-N
// conversation turns, and verification commands.
func (c *Coordinator) BuildAgentContext(ctx context.Context, agentID string) (string, error) {
	agent, found, err := c.Agents.Get(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("build agent context: %w", err)
	}
	if !found {
		return "", fmt.Errorf("build agent context: agent %s not found", agentID)
	}

	switch agent.Role {
	case models.RoleRouta:
		return "You are ROUTA, the planning coordinator. Produce an @@@task plan for the user's request.", nil
	case models.RoleCrafter:
		return c.buildCrafterContext(ctx, agentID)
	case models.RoleGate:
		return c.buildGateContext(ctx)
	default:
		return "", fmt.Errorf("build agent context: unknown role %s", agent.Role)
	}
}

func (c *Coordinator) buildCrafterContext(ctx context.Context, agentID string) (string, error) {
	tasks, err := c.Tasks.ListByWorkspace(ctx, c.state.WorkspaceID)
	if err != nil {
		return "", err
	}
	for _, t := range tasks {
		if t.AssignedTo == agentID {
			return fmt.Sprintf("You are CRAFTER, assigned task %q.\nObjective: %s\nScope: %s\nAcceptance criteria:\n- %s",
				t.Title, t.Objective, t.Scope, joinLines(t.AcceptanceCriteria)), nil
		}
	}
	return "", fmt.Errorf("build crafter context: no task assigned to %s", agentID)
}

func (c *Coordinator) buildGateContext(ctx context.Context) (string, error) {
	reviewTasks, err := c.Tasks.ListByStatus(ctx, c.state.WorkspaceID, models.TaskReviewRequired)
	if err != nil {
		return "", err
	}
	out := "You are GATE, the verifier. Review each task below and report APPROVED or NOT APPROVED.\n\n"
	for _, t := range reviewTasks {
		var recent []models.Message
		if t.AssignedTo != "" {
			recent, _ = c.Conversations.GetLastN(ctx, t.AssignedTo, crafterContextMessages)
		}
		out += fmt.Sprintf("Task %q\nObjective: %s\nAcceptance criteria:\n- %s\nCrafter report: %s\nRecent conversation:\n%s\nVerification commands:\n- %s\n\n",
			t.Title, t.Objective, joinLines(t.AcceptanceCriteria), t.CompletionSummary, renderMessages(recent), joinLines(t.VerificationCommands))
	}
	return out, nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n- "
		}
		out += l
	}
	return out
}

func renderMessages(msgs []models.Message) string {
	out := ""
	for _, m := range msgs {
		out += fmt.Sprintf("[%s] %s\n", m.Role, m.Content)
	}
	return out
}

// TaskSummary is one entry of GetTaskSummary's snapshot.
type TaskSummary struct {
	ID      string
	Title   string
	Status  models.TaskStatus
	Verdict *models.Verdict
}

// GetTaskSummary returns a snapshot of task IDs, titles, statuses and verdicts.
func (c *Coordinator) GetTaskSummary(ctx context.Context) ([]TaskSummary, error) {
	tasks, err := c.Tasks.ListByWorkspace(ctx, c.state.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("get task summary: %w", err)
	}
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskSummary{ID: t.ID, Title: t.Title, Status: t.Status, Verdict: t.VerificationVerdict})
	}
	return out, nil
}

// Reconciliation is Reconcile's outcome.
type Reconciliation int

const (
	// ReconcileCompleted: every task in the workspace is COMPLETED.
	ReconcileCompleted Reconciliation = iota
	// ReconcileContinue: more tasks may become ready; keep looping.
	ReconcileContinue
	// ReconcileFixWave: NEEDS_FIX tasks were reset to PENDING; run another wave.
	ReconcileFixWave
)

// Reconcile implements the store-based, authoritative verdict reconciliation
// of spec.md §4.8: trusting the store (not events, which race with the
// orchestrator) to decide whether the workspace is done, needs a fix wave,
// or should simply continue.
func (c *Coordinator) Reconcile(ctx context.Context) (Reconciliation, error) {
	tasks, err := c.Tasks.ListByWorkspace(ctx, c.state.WorkspaceID)
	if err != nil {
		return ReconcileContinue, fmt.Errorf("reconcile: %w", err)
	}
	if len(tasks) == 0 {
		return ReconcileContinue, nil
	}

	allCompleted := true
	var needsFix []models.Task
	for _, t := range tasks {
		if t.Status != models.TaskCompleted {
			allCompleted = false
		}
		if t.Status == models.TaskNeedsFix {
			needsFix = append(needsFix, t)
		}
	}

	if allCompleted {
		c.state.Phase = models.PhaseCompleted
		return ReconcileCompleted, nil
	}

	if len(needsFix) > 0 {
		now := time.Now()
		for _, t := range needsFix {
			t.Status = models.TaskPending
			t.AssignedTo = ""
			t.UpdatedAt = now
			if err := c.Tasks.Save(ctx, t); err != nil {
				return ReconcileContinue, fmt.Errorf("reconcile: reset %s: %w", t.ID, err)
			}
		}
		c.state.Phase = models.PhaseExecuting
		return ReconcileFixWave, nil
	}

	return ReconcileContinue, nil
}
