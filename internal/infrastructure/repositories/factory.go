// Package repositories wires concrete repositories to configuration, with
// fallback from Redis to local files when Redis is unreachable.
package repositories

import (
	"context"
	"fmt"

	"peerchat/internal/core/ports"
	"peerchat/internal/infrastructure/repositories/file"
	redisrepo "peerchat/internal/infrastructure/repositories/redis"
	"peerchat/pkg/config"
	"peerchat/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory creates repositories per configuration. The profile is always
// file-backed: the identity belongs to the installation, not to a shared
// store.
type Factory struct {
	storageDir  string
	useRedis    bool
	redisClient *redis.Client
	retryCfg    retry.Config
	logger      *zap.SugaredLogger
}

func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	factory := &Factory{
		storageDir: cfg.Storage.Dir,
		useRedis:   cfg.Storage.Redis.Enabled,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger,
	}

	if cfg.Storage.Redis.Enabled {
		client, err := redisrepo.NewClient(
			cfg.Storage.Redis.Address,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Storage.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to file repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Infow("using file repositories", "dir", cfg.Storage.Dir)
	}
	return factory, nil
}

func (f *Factory) CreateProfileRepository() (ports.ProfileRepository, error) {
	repo, err := file.NewProfileRepository(f.storageDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile repository: %w", err)
	}
	return repo, nil
}

func (f *Factory) CreatePeerRepository() (ports.PeerRepository, error) {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewPeerRepository(f.redisClient, f.retryCfg), nil
	}
	repo, err := file.NewPeerRepository(f.storageDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer repository: %w", err)
	}
	return repo, nil
}

func (f *Factory) CreateHistoryRepository() (ports.HistoryRepository, error) {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewHistoryRepository(f.redisClient, f.retryCfg), nil
	}
	repo, err := file.NewHistoryRepository(f.storageDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create history repository: %w", err)
	}
	return repo, nil
}

// Close closes the Redis connection if one is in use.
func (f *Factory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseClient(f.redisClient)
	}
	return nil
}

// HealthCheck verifies the backing store is reachable.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
