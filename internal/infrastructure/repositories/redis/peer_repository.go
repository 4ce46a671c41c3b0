package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"
	"peerchat/pkg/retry"

	"github.com/redis/go-redis/v9"
)

type PeerRepository struct {
	client   *redis.Client
	retryCfg retry.Config
}

func NewPeerRepository(client *redis.Client, retryCfg retry.Config) ports.PeerRepository {
	return &PeerRepository{client: client, retryCfg: retryCfg}
}

func (r *PeerRepository) peerKey(id domain.UserID) string {
	return keyPrefix + "peer:" + string(id)
}

func (r *PeerRepository) indexKey() string {
	return keyPrefix + "peers"
}

func (r *PeerRepository) Save(ctx context.Context, identity *domain.PeerIdentity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal peer identity: %w", err)
	}

	return retry.Retry(ctx, r.retryCfg, func() error {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, r.peerKey(identity.PeerID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), string(identity.PeerID))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to save peer identity: %w", err)
		}
		return nil
	})
}

func (r *PeerRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.PeerIdentity, error) {
	data, err := r.client.Get(ctx, r.peerKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrPeerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get peer identity: %w", err)
	}

	var identity domain.PeerIdentity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal peer identity: %w", err)
	}
	return &identity, nil
}

func (r *PeerRepository) List(ctx context.Context) ([]*domain.PeerIdentity, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	sort.Strings(ids)

	out := make([]*domain.PeerIdentity, 0, len(ids))
	for _, id := range ids {
		identity, err := r.GetByID(ctx, domain.UserID(id))
		if err == domain.ErrPeerNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, nil
}
