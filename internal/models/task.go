package models

import (
	"fmt"
	"time"
)

// TaskStatus tracks a Task through planning, assignment, review and completion.
type TaskStatus string

const (
	TaskPending         TaskStatus = "PENDING"
	TaskInProgress      TaskStatus = "IN_PROGRESS"
	TaskReviewRequired  TaskStatus = "REVIEW_REQUIRED"
	TaskNeedsFix        TaskStatus = "NEEDS_FIX"
	TaskCompleted       TaskStatus = "COMPLETED"
	TaskBlocked         TaskStatus = "BLOCKED"
	TaskCancelled       TaskStatus = "CANCELLED"
)

// Verdict is the GATE agent's judgement on a REVIEW_REQUIRED task.
type Verdict string

const (
	VerdictApproved    Verdict = "APPROVED"
	VerdictNotApproved Verdict = "NOT_APPROVED"
	VerdictBlocked     Verdict = "BLOCKED"
)

// Task is a single unit of work in an implementation plan.
type Task struct {
	ID                    string
	WorkspaceID           string
	Title                 string
	Objective             string
	Scope                 string
	AcceptanceCriteria    []string
	VerificationCommands  []string
	Status                TaskStatus
	AssignedTo            string // agent ID, set iff status requires assignment
	CompletionSummary     string
	VerificationReport    string
	VerificationVerdict   *Verdict
	Dependencies          []string
	ParallelGroup         int
	UpdatedAt             time.Time
}

// taskTransitions enumerates legal TaskStatus transitions (spec.md §3).
var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending:        {TaskInProgress: true, TaskCancelled: true},
	TaskInProgress:     {TaskReviewRequired: true, TaskCancelled: true},
	TaskReviewRequired: {TaskCompleted: true, TaskNeedsFix: true, TaskCancelled: true},
	TaskNeedsFix:       {TaskPending: true, TaskCancelled: true},
	TaskBlocked:        {TaskCancelled: true},
}

// CanTransitionTo reports whether moving to next is a legal transition.
func (t *Task) CanTransitionTo(next TaskStatus) bool {
	if t.Status == TaskCompleted || t.Status == TaskCancelled {
		return false
	}
	return taskTransitions[t.Status][next]
}

// RequiresAssignment reports whether this status requires a non-empty AssignedTo.
func RequiresAssignment(s TaskStatus) bool {
	switch s {
	case TaskInProgress, TaskReviewRequired, TaskNeedsFix, TaskCompleted:
		return true
	default:
		return false
	}
}

// Validate checks the assignedTo/status invariant from spec.md §3.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if RequiresAssignment(t.Status) && t.AssignedTo == "" && t.Status != TaskNeedsFix {
		return fmt.Errorf("task %s: status %s requires assignedTo", t.ID, t.Status)
	}
	return nil
}

// IsReady reports whether t may be delegated: PENDING and every dependency COMPLETED.
func IsReady(t Task, byID map[string]Task) bool {
	if t.Status != TaskPending {
		return false
	}
	for _, dep := range t.Dependencies {
		d, ok := byID[dep]
		if !ok || d.Status != TaskCompleted {
			return false
		}
	}
	return true
}
