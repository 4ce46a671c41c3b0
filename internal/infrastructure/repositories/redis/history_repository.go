package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"
	"peerchat/pkg/retry"

	"github.com/redis/go-redis/v9"
)

// HistoryRepository keeps one Redis list per peer. RPUSH gives the per-peer
// write serialization the port requires.
type HistoryRepository struct {
	client   *redis.Client
	retryCfg retry.Config
}

func NewHistoryRepository(client *redis.Client, retryCfg retry.Config) ports.HistoryRepository {
	return &HistoryRepository{client: client, retryCfg: retryCfg}
}

func (r *HistoryRepository) historyKey(peerID domain.UserID) string {
	return keyPrefix + "history:" + string(peerID)
}

func (r *HistoryRepository) Append(ctx context.Context, peerID domain.UserID, message domain.ChatMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return retry.Retry(ctx, r.retryCfg, func() error {
		if err := r.client.RPush(ctx, r.historyKey(peerID), data).Err(); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
		return nil
	})
}

func (r *HistoryRepository) Load(ctx context.Context, peerID domain.UserID) ([]domain.ChatMessage, error) {
	entries, err := r.client.LRange(ctx, r.historyKey(peerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var message domain.ChatMessage
		if err := json.Unmarshal([]byte(entry), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (r *HistoryRepository) Clear(ctx context.Context, peerID domain.UserID) error {
	if err := r.client.Del(ctx, r.historyKey(peerID)).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
