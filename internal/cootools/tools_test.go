package cootools

import (
	"context"
	"testing"

	"github.com/harrison/orchestra/internal/eventbus"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/store"
)

func newTestTools() *Tools {
	return &Tools{
		Agents:        store.NewMemoryAgentStore(),
		Tasks:         store.NewMemoryTaskStore(),
		Conversations: store.NewMemoryConversationStore(),
		Bus:           eventbus.New(),
	}
}

func TestCreateAgentAndListAgents(t *testing.T) {
	tools := newTestTools()
	ctx := context.Background()

	env := tools.CreateAgent(ctx, CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: "w1"})
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
	agent := env.Data.(models.Agent)

	listEnv := tools.ListAgents(ctx, "w1")
	if !listEnv.Success {
		t.Fatalf("expected success, got %+v", listEnv)
	}
	summaries := listEnv.Data.([]AgentSummary)
	if len(summaries) != 1 || summaries[0].ID != agent.ID {
		t.Fatalf("unexpected list: %+v", summaries)
	}
}

func TestCreateAgentRejectsCrafterWithoutParent(t *testing.T) {
	tools := newTestTools()
	env := tools.CreateAgent(context.Background(), CreateAgentArgs{Name: "crafter", Role: models.RoleCrafter, WorkspaceID: "w1"})
	if env.Success {
		t.Fatalf("expected failure for parentless crafter, got %+v", env)
	}
}

func TestDelegateMovesTaskAndAgent(t *testing.T) {
	tools := newTestTools()
	ctx := context.Background()

	routaEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: "w1"})
	routa := routaEnv.Data.(models.Agent)
	crafterEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "crafter", Role: models.RoleCrafter, WorkspaceID: "w1", ParentID: routa.ID})
	crafter := crafterEnv.Data.(models.Agent)

	tools.Tasks.Save(ctx, models.Task{ID: "t1", WorkspaceID: "w1", Status: models.TaskPending})

	env := tools.Delegate(ctx, crafter.ID, "t1", routa.ID)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}

	task, _, _ := tools.Tasks.Get(ctx, "t1")
	if task.Status != models.TaskInProgress || task.AssignedTo != crafter.ID {
		t.Fatalf("unexpected task state: %+v", task)
	}
	agent, _, _ := tools.Agents.Get(ctx, crafter.ID)
	if agent.Status != models.AgentActive {
		t.Fatalf("unexpected agent state: %+v", agent)
	}
}

func TestMessageAgentPrependsFromPrefix(t *testing.T) {
	tools := newTestTools()
	ctx := context.Background()
	routaEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: "w1"})
	routa := routaEnv.Data.(models.Agent)

	env := tools.MessageAgent(ctx, "external", routa.ID, "please plan this")
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
	msg := env.Data.(models.Message)
	if msg.Content != "[From external (external)]: please plan this" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
}

func TestReportToParentCrafterSuccess(t *testing.T) {
	tools := newTestTools()
	ctx := context.Background()

	routaEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: "w1"})
	routa := routaEnv.Data.(models.Agent)
	crafterEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "crafter", Role: models.RoleCrafter, WorkspaceID: "w1", ParentID: routa.ID})
	crafter := crafterEnv.Data.(models.Agent)
	tools.Tasks.Save(ctx, models.Task{ID: "t1", WorkspaceID: "w1", Status: models.TaskInProgress, AssignedTo: crafter.ID})

	env := tools.ReportToParent(ctx, crafter.ID, models.CompletionReport{AgentID: crafter.ID, TaskID: "t1", Summary: "done", Success: true})
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}

	task, _, _ := tools.Tasks.Get(ctx, "t1")
	if task.Status != models.TaskReviewRequired {
		t.Fatalf("expected REVIEW_REQUIRED, got %s", task.Status)
	}
	agent, _, _ := tools.Agents.Get(ctx, crafter.ID)
	if agent.Status != models.AgentCompleted {
		t.Fatalf("expected crafter COMPLETED, got %s", agent.Status)
	}

	msgs, _ := tools.Conversations.GetConversation(ctx, routa.ID)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message appended to parent, got %d", len(msgs))
	}
}

func TestReportToParentGateApprovedAndNotApproved(t *testing.T) {
	tools := newTestTools()
	ctx := context.Background()

	routaEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: "w1"})
	routa := routaEnv.Data.(models.Agent)
	gateEnv := tools.CreateAgent(ctx, CreateAgentArgs{Name: "gate", Role: models.RoleGate, WorkspaceID: "w1", ParentID: routa.ID})
	gate := gateEnv.Data.(models.Agent)

	tools.Tasks.Save(ctx, models.Task{ID: "t1", WorkspaceID: "w1", Status: models.TaskReviewRequired})
	tools.Tasks.Save(ctx, models.Task{ID: "t2", WorkspaceID: "w1", Status: models.TaskReviewRequired})

	env := tools.ReportToParent(ctx, gate.ID, models.CompletionReport{AgentID: gate.ID, Summary: "NOT APPROVED", Success: false})
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}

	t1, _, _ := tools.Tasks.Get(ctx, "t1")
	t2, _, _ := tools.Tasks.Get(ctx, "t2")
	if t1.Status != models.TaskNeedsFix || t2.Status != models.TaskNeedsFix {
		t.Fatalf("expected both tasks NEEDS_FIX, got t1=%s t2=%s", t1.Status, t2.Status)
	}
	if t1.VerificationVerdict == nil || *t1.VerificationVerdict != models.VerdictNotApproved {
		t.Fatalf("expected NOT_APPROVED verdict, got %+v", t1.VerificationVerdict)
	}
}

func TestReportToParentFailsWithoutParent(t *testing.T) {
	tools := newTestTools()
	ctx := context.Background()
	env := tools.CreateAgent(ctx, CreateAgentArgs{Name: "routa", Role: models.RoleRouta, WorkspaceID: "w1"})
	routa := env.Data.(models.Agent)

	reportEnv := tools.ReportToParent(ctx, routa.ID, models.CompletionReport{Success: true})
	if reportEnv.Success {
		t.Fatalf("expected failure for parentless agent, got %+v", reportEnv)
	}
}
