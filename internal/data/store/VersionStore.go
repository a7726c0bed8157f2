package store

import (
	"context"
	"sync"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/data/redisStore"
	"github.com/mfales/ragengine/pkg/logx"
)

const embeddingVersionKey = "embedding_version"

// RedisVersionStore shares the active embedding provider+model token
// across processes. Last writer wins, readers re-check before use.
type RedisVersionStore struct {
	store  *redisStore.Store
	logger *logx.Logger
}

func GetRedisVersionStore(ctx context.Context) *RedisVersionStore {
	return &RedisVersionStore{
		store:  redisStore.GetRedisStore(ctx, config.RedisVersionStore),
		logger: logx.NewLogger("VersionStore"),
	}
}

func (s *RedisVersionStore) GetVersion(ctx context.Context) (string, error) {
	val, err := s.store.Get(ctx, embeddingVersionKey)
	if s.store.IsNil(err) {
		return "", nil
	}
	return val, err
}

func (s *RedisVersionStore) SetVersion(ctx context.Context, token string) error {
	s.logger.Info("Setting embedding version", "token", token)
	return s.store.Set(ctx, embeddingVersionKey, token, 0)
}

func TestVersionStore(store *redisStore.Store) *RedisVersionStore {
	return &RedisVersionStore{
		store:  store,
		logger: logx.NewLogger("test redis"),
	}
}

type InMemoryVersionStore struct {
	mu    sync.RWMutex
	token string
}

func InitInMemoryVersionStore() *InMemoryVersionStore {
	return &InMemoryVersionStore{}
}

func (s *InMemoryVersionStore) GetVersion(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *InMemoryVersionStore) SetVersion(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}
