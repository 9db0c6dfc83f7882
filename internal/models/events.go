package models

import "time"

// EventType names a coordination event delivered through the Event Bus (C1).
type EventType string

const (
	EventAgentCreated       EventType = "AgentCreated"
	EventAgentStatusChanged EventType = "AgentStatusChanged"
	EventTaskDelegated      EventType = "TaskDelegated"
	EventTaskStatusChanged  EventType = "TaskStatusChanged"
	EventMessageReceived    EventType = "MessageReceived"
	EventAgentCompleted     EventType = "AgentCompleted"
)

// Event is one coordination event fanned out by the Event Bus. From/To hold
// whichever status transitioned (agent or task); callers that don't need
// them leave both empty.
type Event struct {
	Type    EventType
	At      time.Time
	AgentID string
	TaskID  string
	From    string
	To      string
	Data    interface{}
}

// PhaseEventKind names one of the orchestrator's streamed phase events (spec.md §6.4).
type PhaseEventKind string

const (
	PhaseEventInitializing          PhaseEventKind = "Initializing"
	PhaseEventPlanning              PhaseEventKind = "Planning"
	PhaseEventPlanReady             PhaseEventKind = "PlanReady"
	PhaseEventTasksRegistered       PhaseEventKind = "TasksRegistered"
	PhaseEventWaveStarting          PhaseEventKind = "WaveStarting"
	PhaseEventCrafterRunning        PhaseEventKind = "CrafterRunning"
	PhaseEventCrafterCompleted      PhaseEventKind = "CrafterCompleted"
	PhaseEventVerificationStarting  PhaseEventKind = "VerificationStarting"
	PhaseEventVerificationCompleted PhaseEventKind = "VerificationCompleted"
	PhaseEventNeedsFix              PhaseEventKind = "NeedsFix"
	PhaseEventCompleted             PhaseEventKind = "Completed"
	PhaseEventMaxWavesReached       PhaseEventKind = "MaxWavesReached"
)

// PhaseEvent is one entry in the orchestrator's control-surface phase stream.
type PhaseEvent struct {
	Kind    PhaseEventKind
	At      time.Time
	Wave    int
	AgentID string
	TaskID  string
	Text    string
	Count   int
}
