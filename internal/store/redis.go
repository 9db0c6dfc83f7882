package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/harrison/orchestra/internal/models"
)

// RedisConversationStore is a durable ConversationStore backend. Each
// agent's conversation maps onto a Redis list (RPUSH/LRANGE preserve
// insertion order for free) and per-agent Turn numbers are assigned with
// INCR on a dedicated counter key, giving an atomic monotonic sequence
// even across multiple orchestrator processes.
type RedisConversationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisConversationStore wraps an existing redis.Client. prefix
// namespaces keys (e.g. "orchestra:") to allow sharing one Redis instance
// across workspaces.
func NewRedisConversationStore(client *redis.Client, prefix string) *RedisConversationStore {
	return &RedisConversationStore{client: client, prefix: prefix}
}

func (s *RedisConversationStore) listKey(agentID string) string {
	return fmt.Sprintf("%sconv:%s", s.prefix, agentID)
}

func (s *RedisConversationStore) turnKey(agentID string) string {
	return fmt.Sprintf("%sturn:%s", s.prefix, agentID)
}

func (s *RedisConversationStore) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.Turn == 0 {
		turn, err := s.client.Incr(ctx, s.turnKey(msg.AgentID)).Result()
		if err != nil {
			return models.Message{}, fmt.Errorf("assign turn: %w", err)
		}
		msg.Turn = int(turn)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	if err := s.client.RPush(ctx, s.listKey(msg.AgentID), payload).Err(); err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (s *RedisConversationStore) GetConversation(ctx context.Context, agentID string) ([]models.Message, error) {
	return s.getRange(ctx, agentID, 0, -1)
}

func (s *RedisConversationStore) GetLastN(ctx context.Context, agentID string, n int) ([]models.Message, error) {
	if n <= 0 {
		return s.getRange(ctx, agentID, 0, -1)
	}
	return s.getRange(ctx, agentID, int64(-n), -1)
}

func (s *RedisConversationStore) GetByTurnRange(ctx context.Context, agentID string, start, end int) ([]models.Message, error) {
	all, err := s.getRange(ctx, agentID, 0, -1)
	if err != nil {
		return nil, err
	}
	var out []models.Message
	for _, m := range all {
		if m.Turn >= start && m.Turn <= end {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *RedisConversationStore) getRange(ctx context.Context, agentID string, start, stop int64) ([]models.Message, error) {
	raw, err := s.client.LRange(ctx, s.listKey(agentID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	out := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
