package orchestrator

import (
	"context"
	"testing"

	"github.com/harrison/orchestra/internal/coordinator"
	"github.com/harrison/orchestra/internal/eventbus"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/provider"
	"github.com/harrison/orchestra/internal/store"
)

func newCoord() *coordinator.Coordinator {
	coord := coordinator.New("w1", store.NewMemoryAgentStore(), store.NewMemoryTaskStore(), store.NewMemoryConversationStore(), eventbus.New())
	coord.MaxParallelism = 2
	return coord
}

func TestExecuteNoTasksPlan(t *testing.T) {
	coord := newCoord()
	prov := &planOnlyProvider{plan: "no tasks in this plan at all"}
	o := New(coord, prov, 3)

	result := o.Execute(context.Background(), "do nothing useful")
	if result.Kind != models.OutcomeNoTasks {
		t.Fatalf("expected NO_TASKS outcome, got %v (err=%v)", result.Kind, result.Err)
	}
}

func TestExecuteSingleTaskHappyPath(t *testing.T) {
	coord := newCoord()
	prov := &roleAwareProvider{
		routa:   "@@@task\n# Write the README\nObjective: document the project\n@@@",
		crafter: "I wrote the file.",
		gate:    "Looks correct. APPROVED",
	}
	o := New(coord, prov, 3)

	var events []models.PhaseEventKind
	o.PhaseEvents = func(e models.PhaseEvent) { events = append(events, e.Kind) }

	result := o.Execute(context.Background(), "build a readme")
	if result.Kind != models.OutcomeSuccess {
		t.Fatalf("expected SUCCESS outcome, got %v (err=%v)", result.Kind, result.Err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Status != models.TaskCompleted {
		t.Fatalf("expected one completed task, got %+v", result.Tasks)
	}
	foundCompleted := false
	for _, k := range events {
		if k == models.PhaseEventCompleted {
			foundCompleted = true
		}
	}
	if !foundCompleted {
		t.Fatalf("expected a Completed phase event, got %v", events)
	}
}

func TestExecuteGateRejectsAndLoopsToFixWave(t *testing.T) {
	coord := newCoord()
	prov := &rejectThenApproveProvider{
		routa:   "@@@task\n# Fix the bug\nObjective: make it work\n@@@",
		crafter: "Patched it.",
		gates:   []string{"NOT APPROVED, missing tests", "APPROVED"},
	}
	o := New(coord, prov, 3)

	result := o.Execute(context.Background(), "fix the bug")
	if result.Kind != models.OutcomeSuccess {
		t.Fatalf("expected eventual SUCCESS outcome, got %v (err=%v)", result.Kind, result.Err)
	}
	if prov.crafterCalls < 2 {
		t.Fatalf("expected crafter to run again after a fix wave, got %d calls", prov.crafterCalls)
	}
}

func TestExecuteMaxWavesReachedWhenNeverApproved(t *testing.T) {
	coord := newCoord()
	prov := &roleAwareProvider{
		routa:   "@@@task\n# Fix the bug\nObjective: make it work\n@@@",
		crafter: "Patched it.",
		gate:    "NOT APPROVED, still broken",
	}
	o := New(coord, prov, 2)

	result := o.Execute(context.Background(), "fix the bug")
	if result.Kind != models.OutcomeMaxWavesReached {
		t.Fatalf("expected MAX_WAVES_REACHED outcome, got %v (err=%v)", result.Kind, result.Err)
	}
	if result.WavesRun != 2 {
		t.Fatalf("expected 2 waves run, got %d", result.WavesRun)
	}
}

func TestStopExecutionCancelsBeforeNextWave(t *testing.T) {
	coord := newCoord()
	prov := &stopOnFirstCrafterProvider{
		routa:   "@@@task\n# Fix the bug\nObjective: make it work\n@@@",
		crafter: "Patched it.",
		gate:    "NOT APPROVED, try again",
	}
	o := New(coord, prov, 5)
	prov.orch = o

	result := o.Execute(context.Background(), "fix the bug")
	if result.Kind != models.OutcomeCancelled {
		t.Fatalf("expected CANCELLED outcome, got %v (err=%v)", result.Kind, result.Err)
	}
	if result.WavesRun != 1 {
		t.Fatalf("expected exactly 1 wave run before cancellation, got %d", result.WavesRun)
	}
}

func TestStopExecutionInterruptsActiveAgents(t *testing.T) {
	coord := newCoord()
	prov := &roleAwareProvider{
		routa:   "@@@task\n# Write the README\nObjective: document the project\n@@@",
		crafter: "I wrote the file.",
		gate:    "APPROVED",
	}
	o := New(coord, prov, 3)

	o.beginAgent("agent-under-test")
	o.StopExecution()

	if !prov.interrupted["agent-under-test"] {
		t.Fatalf("expected StopExecution to interrupt the active agent, interrupted=%v", prov.interrupted)
	}
	if !o.isStopped() {
		t.Fatal("expected the orchestrator to be marked stopped")
	}
}

// roleAwareProvider returns a fixed response per role, for a single pass.
type roleAwareProvider struct {
	routa, crafter, gate string
	interrupted          map[string]bool
}

func (p *roleAwareProvider) Run(ctx context.Context, role models.Role, agentID, prompt string) (string, error) {
	switch role {
	case models.RoleRouta:
		return p.routa, nil
	case models.RoleCrafter:
		return p.crafter, nil
	case models.RoleGate:
		return p.gate, nil
	}
	return "", nil
}
func (p *roleAwareProvider) RunStreaming(ctx context.Context, role models.Role, agentID, prompt string, onEvent provider.OnEvent) (string, error) {
	return p.Run(ctx, role, agentID, prompt)
}
func (p *roleAwareProvider) Interrupt(agentID string) {
	if p.interrupted == nil {
		p.interrupted = make(map[string]bool)
	}
	p.interrupted[agentID] = true
}
func (p *roleAwareProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }

// stopOnFirstCrafterProvider calls StopExecution on its orchestrator right
// after the first CRAFTER response, exercising the wave-loop's stop check.
type stopOnFirstCrafterProvider struct {
	routa, crafter, gate string
	orch                 *Orchestrator
}

func (p *stopOnFirstCrafterProvider) Run(ctx context.Context, role models.Role, agentID, prompt string) (string, error) {
	switch role {
	case models.RoleRouta:
		return p.routa, nil
	case models.RoleCrafter:
		p.orch.StopExecution()
		return p.crafter, nil
	case models.RoleGate:
		return p.gate, nil
	}
	return "", nil
}
func (p *stopOnFirstCrafterProvider) RunStreaming(ctx context.Context, role models.Role, agentID, prompt string, onEvent provider.OnEvent) (string, error) {
	return p.Run(ctx, role, agentID, prompt)
}
func (p *stopOnFirstCrafterProvider) Interrupt(agentID string)            {}
func (p *stopOnFirstCrafterProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }

// planOnlyProvider always returns the given plan text for ROUTA.
type planOnlyProvider struct{ plan string }

func (p *planOnlyProvider) Run(ctx context.Context, role models.Role, agentID, prompt string) (string, error) {
	return p.plan, nil
}
func (p *planOnlyProvider) RunStreaming(ctx context.Context, role models.Role, agentID, prompt string, onEvent provider.OnEvent) (string, error) {
	return p.plan, nil
}
func (p *planOnlyProvider) Interrupt(agentID string)            {}
func (p *planOnlyProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }

// rejectThenApproveProvider returns successive GATE verdicts from a queue.
type rejectThenApproveProvider struct {
	routa, crafter string
	gates          []string
	gateCalls      int
	crafterCalls   int
}

func (p *rejectThenApproveProvider) Run(ctx context.Context, role models.Role, agentID, prompt string) (string, error) {
	switch role {
	case models.RoleRouta:
		return p.routa, nil
	case models.RoleCrafter:
		p.crafterCalls++
		return p.crafter, nil
	case models.RoleGate:
		out := p.gates[p.gateCalls]
		p.gateCalls++
		return out, nil
	}
	return "", nil
}
func (p *rejectThenApproveProvider) RunStreaming(ctx context.Context, role models.Role, agentID, prompt string, onEvent provider.OnEvent) (string, error) {
	return p.Run(ctx, role, agentID, prompt)
}
func (p *rejectThenApproveProvider) Interrupt(agentID string)            {}
func (p *rejectThenApproveProvider) Capabilities() provider.Capabilities { return provider.Capabilities{} }
