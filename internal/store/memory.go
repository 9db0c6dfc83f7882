package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrison/orchestra/internal/models"
)

// MemoryAgentStore is the default in-memory AgentStore. One RWMutex guards
// the whole map, so writes are serialized across all agents.
type MemoryAgentStore struct {
	mu     sync.RWMutex
	agents map[string]models.Agent
}

// NewMemoryAgentStore constructs an empty MemoryAgentStore.
func NewMemoryAgentStore() *MemoryAgentStore {
	return &MemoryAgentStore{agents: make(map[string]models.Agent)}
}

func (s *MemoryAgentStore) Save(ctx context.Context, agent models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
	return nil
}

func (s *MemoryAgentStore) Get(ctx context.Context, id string) (models.Agent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	return a, ok, nil
}

func (s *MemoryAgentStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Agent
	for _, a := range s.agents {
		if a.WorkspaceID == workspaceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryAgentStore) UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: not found", id)
	}
	a.Status = status
	s.agents[id] = a
	return nil
}

// MemoryTaskStore is the default in-memory TaskStore.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

// NewMemoryTaskStore constructs an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]models.Task)}
}

func (s *MemoryTaskStore) Save(ctx context.Context, task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *MemoryTaskStore) Get(ctx context.Context, id string) (models.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok, nil
}

func (s *MemoryTaskStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.WorkspaceID == workspaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryTaskStore) ListByStatus(ctx context.Context, workspaceID string, status models.TaskStatus) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.WorkspaceID == workspaceID && t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

// MemoryConversationStore is the default in-memory ConversationStore.
// Messages are appended in insertion order per agent; Turn is assigned
// monotonically at append time when the caller leaves it zero.
type MemoryConversationStore struct {
	mu       sync.Mutex
	messages map[string][]models.Message
	nextTurn map[string]int
}

// NewMemoryConversationStore constructs an empty MemoryConversationStore.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		messages: make(map[string][]models.Message),
		nextTurn: make(map[string]int),
	}
}

func (s *MemoryConversationStore) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Turn == 0 {
		s.nextTurn[msg.AgentID]++
		msg.Turn = s.nextTurn[msg.AgentID]
	} else if msg.Turn > s.nextTurn[msg.AgentID] {
		s.nextTurn[msg.AgentID] = msg.Turn
	}
	s.messages[msg.AgentID] = append(s.messages[msg.AgentID], msg)
	return msg, nil
}

func (s *MemoryConversationStore) GetConversation(ctx context.Context, agentID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages[agentID]))
	copy(out, s.messages[agentID])
	return out, nil
}

func (s *MemoryConversationStore) GetLastN(ctx context.Context, agentID string, n int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[agentID]
	if n <= 0 || n >= len(all) {
		out := make([]models.Message, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]models.Message, n)
	copy(out, all[len(all)-n:])
	return out, nil
}

func (s *MemoryConversationStore) GetByTurnRange(ctx context.Context, agentID string, start, end int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages[agentID] {
		if m.Turn >= start && m.Turn <= end {
			out = append(out, m)
		}
	}
	return out, nil
}
