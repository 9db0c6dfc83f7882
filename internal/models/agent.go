// Package models defines the core entities shared across the orchestrator:
// agents, tasks, messages, completion reports and coordination state.
package models

import (
	"fmt"
	"time"
)

// Role identifies what an Agent is for within one orchestration.
type Role string

const (
	// RoleRouta is the planning/coordinator agent. Exactly one per workspace orchestration.
	RoleRouta Role = "ROUTA"
	// RoleCrafter is a worker agent assigned to exactly one task per run.
	RoleCrafter Role = "CRAFTER"
	// RoleGate is the verification agent judging REVIEW_REQUIRED tasks.
	RoleGate Role = "GATE"
)

// AgentStatus tracks the lifecycle of an Agent.
type AgentStatus string

const (
	AgentPending   AgentStatus = "PENDING"
	AgentActive    AgentStatus = "ACTIVE"
	AgentCompleted AgentStatus = "COMPLETED"
	AgentError     AgentStatus = "ERROR"
	AgentCancelled AgentStatus = "CANCELLED"
)

// IsTerminal reports whether the status may not transition further.
func (s AgentStatus) IsTerminal() bool {
	return s == AgentCompleted || s == AgentError || s == AgentCancelled
}

// ModelTier selects which model class backs an Agent's Provider calls.
type ModelTier string

const (
	TierSmart ModelTier = "SMART"
	TierFast  ModelTier = "FAST"
)

// Agent is a single participant in an orchestration: the planner (ROUTA),
// a worker (CRAFTER) or the verifier (GATE).
type Agent struct {
	ID          string
	WorkspaceID string
	Role        Role
	Status      AgentStatus
	ParentID    string // empty for ROUTA; required for CRAFTER/GATE
	Name        string
	ModelTier   ModelTier
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// agentTransitions enumerates the legal AgentStatus transitions.
var agentTransitions = map[AgentStatus]map[AgentStatus]bool{
	AgentPending: {AgentActive: true, AgentError: true, AgentCancelled: true},
	AgentActive:  {AgentCompleted: true, AgentError: true, AgentCancelled: true},
}

// CanTransitionTo reports whether moving from the current status to next is legal.
// Terminal statuses never transition further.
func (a *Agent) CanTransitionTo(next AgentStatus) bool {
	if a.Status.IsTerminal() {
		return false
	}
	return agentTransitions[a.Status][next]
}

// Validate checks role/parent invariants: ROUTA must not have a parent,
// CRAFTER/GATE must have one.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	switch a.Role {
	case RoleRouta:
		if a.ParentID != "" {
			return fmt.Errorf("agent %s: ROUTA must not have a parentId", a.ID)
		}
	case RoleCrafter, RoleGate:
		if a.ParentID == "" {
			return fmt.Errorf("agent %s: %s requires a parentId", a.ID, a.Role)
		}
	default:
		return fmt.Errorf("agent %s: unknown role %q", a.ID, a.Role)
	}
	return nil
}
