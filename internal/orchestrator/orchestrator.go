// Package orchestrator implements the top-level driver (spec.md §4.9):
// Plan → Waves → Verify → (Fix | Done), with safety-net report synthesis
// for agents whose provider loop didn't call report_to_parent itself.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/harrison/orchestra/internal/coordinator"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/provider"
)

// Orchestrator drives one workspace's execution end to end.
type Orchestrator struct {
	Coordinator *coordinator.Coordinator
	Provider    provider.Provider
	MaxWaves    int

	PhaseEvents func(models.PhaseEvent)

	mu      sync.Mutex
	active  map[string]bool
	stopped bool
}

// New constructs an Orchestrator. maxWaves defaults to 3 when <= 0.
func New(coord *coordinator.Coordinator, prov provider.Provider, maxWaves int) *Orchestrator {
	if maxWaves <= 0 {
		maxWaves = 3
	}
	return &Orchestrator{Coordinator: coord, Provider: prov, MaxWaves: maxWaves, active: make(map[string]bool)}
}

// beginAgent records agentID as currently running a provider loop, so
// StopExecution knows which agents to interrupt.
func (o *Orchestrator) beginAgent(agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[agentID] = true
}

func (o *Orchestrator) endAgent(agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, agentID)
}

func (o *Orchestrator) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// StopExecution implements spec.md §6.4's stopExecution(): it sets a cancel
// flag on every agent currently running a provider loop, and marks the
// orchestrator itself stopped so Execute's wave loop exits at its next
// check instead of starting another wave.
func (o *Orchestrator) StopExecution() {
	o.mu.Lock()
	o.stopped = true
	agentIDs := make([]string, 0, len(o.active))
	for id := range o.active {
		agentIDs = append(agentIDs, id)
	}
	o.mu.Unlock()

	for _, id := range agentIDs {
		o.Provider.Interrupt(id)
	}
}

// runAgent wraps a Provider.Run call with active-agent bookkeeping so
// StopExecution can find and interrupt it while it's in flight.
func (o *Orchestrator) runAgent(ctx context.Context, role models.Role, agentID, prompt string) (string, error) {
	o.beginAgent(agentID)
	defer o.endAgent(agentID)
	return o.Provider.Run(ctx, role, agentID, prompt)
}

func (o *Orchestrator) emit(kind models.PhaseEventKind, fields func(*models.PhaseEvent)) {
	if o.PhaseEvents == nil {
		return
	}
	ev := models.PhaseEvent{Kind: kind}
	if fields != nil {
		fields(&ev)
	}
	o.PhaseEvents(ev)
}

// Execute implements the driver loop of spec.md §4.9 and returns the
// tagged-union Result: Success, NoTasks, MaxWavesReached, Failed or
// Cancelled (after StopExecution).
func (o *Orchestrator) Execute(ctx context.Context, userRequest string) models.Result {
	o.emit(models.PhaseEventInitializing, nil)
	routaID, err := o.Coordinator.Initialize(ctx)
	if err != nil {
		return models.Failed(err, 0)
	}

	o.emit(models.PhaseEventPlanning, nil)
	planText, err := o.runAgent(ctx, models.RoleRouta, routaID, userRequest)
	if err != nil {
		return models.Failed(fmt.Errorf("routa planning: %w", err), 0)
	}
	o.emit(models.PhaseEventPlanReady, func(e *models.PhaseEvent) { e.Text = planText })

	taskIDs, err := o.Coordinator.RegisterTasks(ctx, planText)
	if err != nil {
		return models.Failed(fmt.Errorf("register tasks: %w", err), 0)
	}
	o.emit(models.PhaseEventTasksRegistered, func(e *models.PhaseEvent) { e.Count = len(taskIDs) })
	if len(taskIDs) == 0 {
		return models.NoTasks()
	}

	for wave := 1; wave <= o.MaxWaves; wave++ {
		if o.isStopped() {
			summary, err := o.Coordinator.GetTaskSummary(ctx)
			if err != nil {
				return models.Failed(err, wave-1)
			}
			return models.Cancelled(toResultTasks(summary), wave-1)
		}
		o.emit(models.PhaseEventWaveStarting, func(e *models.PhaseEvent) { e.Wave = wave })

		delegations, err := o.Coordinator.ExecuteNextWave(ctx)
		if err != nil {
			return models.Failed(fmt.Errorf("execute wave %d: %w", wave, err), wave)
		}

		for _, d := range delegations {
			o.emit(models.PhaseEventCrafterRunning, func(e *models.PhaseEvent) { e.AgentID = d.CrafterID; e.TaskID = d.TaskID })

			agentContext, err := o.Coordinator.BuildAgentContext(ctx, d.CrafterID)
			if err != nil {
				return models.Failed(fmt.Errorf("build crafter context: %w", err), wave)
			}
			output, err := o.runAgent(ctx, models.RoleCrafter, d.CrafterID, agentContext)
			if err != nil {
				return models.Failed(fmt.Errorf("crafter %s: %w", d.CrafterID, err), wave)
			}
			if err := o.ensureCrafterReport(ctx, d.CrafterID, d.TaskID, output); err != nil {
				return models.Failed(fmt.Errorf("ensure crafter report: %w", err), wave)
			}
			o.emit(models.PhaseEventCrafterCompleted, func(e *models.PhaseEvent) { e.AgentID = d.CrafterID; e.TaskID = d.TaskID })
		}

		gateID, err := o.Coordinator.StartVerification(ctx)
		if err != nil {
			return models.Failed(fmt.Errorf("start verification: %w", err), wave)
		}
		if gateID != "" {
			o.emit(models.PhaseEventVerificationStarting, func(e *models.PhaseEvent) { e.Wave = wave })

			gateContext, err := o.Coordinator.BuildAgentContext(ctx, gateID)
			if err != nil {
				return models.Failed(fmt.Errorf("build gate context: %w", err), wave)
			}
			gateOutput, err := o.runAgent(ctx, models.RoleGate, gateID, gateContext)
			if err != nil {
				return models.Failed(fmt.Errorf("gate %s: %w", gateID, err), wave)
			}
			if err := o.ensureGateReport(ctx, gateID, gateOutput); err != nil {
				return models.Failed(fmt.Errorf("ensure gate report: %w", err), wave)
			}
			o.emit(models.PhaseEventVerificationCompleted, func(e *models.PhaseEvent) { e.AgentID = gateID; e.Text = gateOutput })
		}

		reconciliation, err := o.Coordinator.Reconcile(ctx)
		if err != nil {
			return models.Failed(fmt.Errorf("reconcile: %w", err), wave)
		}
		switch reconciliation {
		case coordinator.ReconcileCompleted:
			o.emit(models.PhaseEventCompleted, nil)
			summary, err := o.Coordinator.GetTaskSummary(ctx)
			if err != nil {
				return models.Failed(err, wave)
			}
			return models.Success(toResultTasks(summary), wave)
		case coordinator.ReconcileFixWave:
			o.emit(models.PhaseEventNeedsFix, func(e *models.PhaseEvent) { e.Wave = wave })
		}
	}

	o.emit(models.PhaseEventMaxWavesReached, func(e *models.PhaseEvent) { e.Wave = o.MaxWaves })
	summary, err := o.Coordinator.GetTaskSummary(ctx)
	if err != nil {
		return models.Failed(err, o.MaxWaves)
	}
	return models.MaxWavesReached(toResultTasks(summary), o.MaxWaves)
}

func toResultTasks(summary []coordinator.TaskSummary) []models.Task {
	out := make([]models.Task, 0, len(summary))
	for _, s := range summary {
		out = append(out, models.Task{ID: s.ID, Title: s.Title, Status: s.Status, VerificationVerdict: s.Verdict})
	}
	return out
}

var filePathPattern = regexp.MustCompile(`(?:internal|cmd|pkg|src)/[\w./-]+\.\w+`)

// ensureCrafterReport is the safety net of spec.md §4.9: if the provider's
// tool-calling loop already invoked report_to_parent (agent is COMPLETED),
// this is a no-op. Otherwise it synthesizes a CompletionReport from the
// text output.
func (o *Orchestrator) ensureCrafterReport(ctx context.Context, crafterID, taskID, output string) error {
	agent, found, err := o.Coordinator.Agents.Get(ctx, crafterID)
	if err != nil {
		return err
	}
	if found && agent.Status.IsTerminal() {
		return nil
	}

	report := models.CompletionReport{
		AgentID:       crafterID,
		TaskID:        taskID,
		Summary:       firstLines(output, 3),
		FilesModified: filePathPattern.FindAllString(output, -1),
		Success:       !containsFailureKeyword(output),
	}
	env := o.Coordinator.Tools.ReportToParent(ctx, crafterID, report)
	if !env.Success {
		return fmt.Errorf("ensure crafter report: %s", env.Error)
	}
	return nil
}

// ensureGateReport mirrors ensureCrafterReport for GATE: parses the verdict
// as APPROVED iff the text contains "APPROVED" and not "NOT APPROVED"/"NOT_APPROVED".
func (o *Orchestrator) ensureGateReport(ctx context.Context, gateID, output string) error {
	agent, found, err := o.Coordinator.Agents.Get(ctx, gateID)
	if err != nil {
		return err
	}
	if found && agent.Status.IsTerminal() {
		return nil
	}

	approved := isGateApproved(output)
	report := models.CompletionReport{
		AgentID: gateID,
		Summary: firstLines(output, 3),
		Success: approved,
	}
	env := o.Coordinator.Tools.ReportToParent(ctx, gateID, report)
	if !env.Success {
		return fmt.Errorf("ensure gate report: %s", env.Error)
	}
	return nil
}

func isGateApproved(text string) bool {
	upper := strings.ToUpper(text)
	notApproved := strings.Contains(upper, "NOT APPROVED") || strings.Contains(upper, "NOT_APPROVED")
	approved := strings.Contains(upper, "APPROVED")
	return approved && !notApproved
}

func containsFailureKeyword(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "FAILED") || strings.Contains(upper, "ERROR")
}

func firstLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
