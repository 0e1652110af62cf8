package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/config"
)

// Storage is a key to string blob store backing the Cache
type Storage interface {
	// GetItem returns the stored value and whether it exists
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any prior value
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key; removing a missing key is not an error
	RemoveItem(ctx context.Context, key string) error

	// Clear deletes every key owned by the storage
	Clear(ctx context.Context) error
}

// HealthChecker is implemented by storages backed by a remote service
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Storage backends
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"
)

// NewStorage creates the storage selected by cfg.Backend
func NewStorage(cfg config.CacheConfig, redisCfg config.RedisConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendLevelDB:
		return NewLevelDBStorage(cfg.LevelDBPath, logger)
	case BackendRedis:
		return NewRedisStorage(redisCfg, cfg.KeyPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// MemoryStorage keeps entries in a process-local map
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

// GetItem returns the value stored under key
func (s *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

// SetItem stores value under key
func (s *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// RemoveItem deletes key
func (s *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Clear deletes every key
func (s *MemoryStorage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ Storage = (*MemoryStorage)(nil)
