package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"
)

// LevelDBStorage persists cache entries in a LevelDB database on disk
type LevelDBStorage struct {
	db     *leveldb.DB
	logger *zap.Logger
}

// NewLevelDBStorage opens (or creates) the database at path
func NewLevelDBStorage(path string, logger *zap.Logger) (*LevelDBStorage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}

	logger.Info("Opened LevelDB cache", zap.String("path", path))

	return NewLevelDBStorageFromDB(db, logger), nil
}

// NewLevelDBStorageFromDB wraps an already opened database
func NewLevelDBStorageFromDB(db *leveldb.DB, logger *zap.Logger) *LevelDBStorage {
	return &LevelDBStorage{db: db, logger: logger}
}

// Close closes the database
func (s *LevelDBStorage) Close() error {
	return s.db.Close()
}

// GetItem retrieves a value from the database
func (s *LevelDBStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	val, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get from leveldb: %w", err)
	}
	return string(val), true, nil
}

// SetItem stores a value in the database
func (s *LevelDBStorage) SetItem(_ context.Context, key, value string) error {
	if err := s.db.Put([]byte(key), []byte(value), nil); err != nil {
		return fmt.Errorf("failed to put into leveldb: %w", err)
	}
	return nil
}

// RemoveItem deletes a key from the database
func (s *LevelDBStorage) RemoveItem(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("failed to delete from leveldb: %w", err)
	}
	return nil
}

// Clear deletes every key in a single batch
func (s *LevelDBStorage) Clear(_ context.Context) error {
	iter := s.db.NewIterator(nil, nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to iterate leveldb: %w", err)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to clear leveldb: %w", err)
	}
	s.logger.Debug("Cleared LevelDB cache", zap.Int("keys", batch.Len()))
	return nil
}

var _ Storage = (*LevelDBStorage)(nil)
