// Package store defines the in-memory entity storage interfaces (Agent,
// Task, Conversation) used by the coordinator and coordination tools, plus
// pluggable durable backends (spec.md §4.2, SPEC_FULL.md §4.2).
package store

import (
	"context"

	"github.com/harrison/orchestra/internal/models"
)

// AgentStore owns Agent records. Writes are last-writer-wins per ID and
// are serialized per entity; Get/List return snapshots.
type AgentStore interface {
	Save(ctx context.Context, agent models.Agent) error
	Get(ctx context.Context, id string) (models.Agent, bool, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Agent, error)
	UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error
}

// TaskStore owns Task records.
type TaskStore interface {
	Save(ctx context.Context, task models.Task) error
	Get(ctx context.Context, id string) (models.Task, bool, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Task, error)
	ListByStatus(ctx context.Context, workspaceID string, status models.TaskStatus) ([]models.Task, error)
}

// ConversationStore owns per-agent, append-only Message logs.
type ConversationStore interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	GetConversation(ctx context.Context, agentID string) ([]models.Message, error)
	GetLastN(ctx context.Context, agentID string, n int) ([]models.Message, error)
	GetByTurnRange(ctx context.Context, agentID string, start, end int) ([]models.Message, error)
}
