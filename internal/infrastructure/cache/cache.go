package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrTypeMismatch is returned when a shared refresh produced a value of another type
var ErrTypeMismatch = errors.New("cache: refreshed value has unexpected type")

// RefreshFunc produces a fresh value for a key
type RefreshFunc[T any] func(ctx context.Context) (T, error)

// Options control a single Get
type Options[T any] struct {
	// Version expected of the stored entry; zero accepts any version and
	// refreshes are written back under the cache's current version
	Version int
	// TTL after which the entry is stale; zero means it never goes stale
	TTL time.Duration
	// GracePeriod after TTL during which stale data is served while refreshing
	GracePeriod time.Duration
	// Refresh is called on a miss or to revalidate a stale entry
	Refresh RefreshFunc[T]
}

// Cache is a versioned stale-while-revalidate cache with single-flight refresh
type Cache struct {
	storage        Storage
	logger         *zap.Logger
	clock          clockwork.Clock
	version        atomic.Int64
	refreshTimeout time.Duration

	mu    sync.Mutex
	group *singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithClock sets the clock used for entry timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithDefaultVersion sets the initial current version
func WithDefaultVersion(v int) Option {
	return func(c *Cache) {
		c.version.Store(int64(v))
	}
}

// WithRefreshTimeout bounds every refresh call; zero disables the bound
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.refreshTimeout = d
	}
}

// New creates a Cache on top of storage
func New(storage Storage, logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		storage: storage,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		group:   new(singleflight.Group),
	}
	c.version.Store(1)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Version returns the current default version
func (c *Cache) Version() int {
	return int(c.version.Load())
}

// SetVersion changes the version used by writes that do not specify one
func (c *Cache) SetVersion(v int) {
	c.version.Store(int64(v))
}

// Set stores data under key with the current version. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, data any) {
	c.SetWithVersion(ctx, key, data, c.Version())
}

// SetWithVersion stores data under key tagged with version
func (c *Cache) SetWithVersion(ctx context.Context, key string, data any, version int) {
	raw, err := marshalData(data)
	if err != nil {
		c.writeFailed(key, err)
		return
	}

	encoded, err := encodeEntry(Entry{
		Data:      raw,
		Version:   version,
		Timestamp: c.clock.Now().UnixMilli(),
	})
	if err != nil {
		c.writeFailed(key, err)
		return
	}

	if err := c.storage.SetItem(ctx, key, encoded); err != nil {
		c.writeFailed(key, err)
	}
}

func (c *Cache) writeFailed(key string, err error) {
	writeErrorsTotal.Inc()
	c.logger.Warn("Failed to write cache entry",
		zap.String("key", key),
		zap.Error(err),
	)
}

// Remove deletes key; removing a missing key is a no-op
func (c *Cache) Remove(ctx context.Context, key string) {
	if err := c.storage.RemoveItem(ctx, key); err != nil {
		c.logger.Warn("Failed to remove cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Clear deletes every entry and forgets all in-flight refreshes.
// A refresh started before Clear still writes its result when it settles.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.group = new(singleflight.Group)
	c.mu.Unlock()

	if err := c.storage.Clear(ctx); err != nil {
		c.logger.Warn("Failed to clear cache", zap.Error(err))
		return err
	}
	return nil
}

// HealthCheck pings the storage when it is backed by a remote service
func (c *Cache) HealthCheck(ctx context.Context) error {
	if hc, ok := c.storage.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Close releases the storage
func (c *Cache) Close() error {
	if closer, ok := c.storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cache) flight() *singleflight.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.group
}

// load reads and decodes the entry under key. Undecodable entries are evicted.
func (c *Cache) load(ctx context.Context, key string) (Entry, bool) {
	s, ok, err := c.storage.GetItem(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	entry, err := decodeEntry(s)
	if err != nil {
		c.evict(ctx, key, resultInvalid, err)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) evict(ctx context.Context, key, reason string, err error) {
	lookupsTotal.WithLabelValues(reason).Inc()
	fields := []zap.Field{zap.String("key", key), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.logger.Debug("Evicting cache entry", fields...)
	c.Remove(ctx, key)
}

// startRefresh joins or starts the single in-flight refresh of key
func startRefresh[T any](ctx context.Context, c *Cache, key string, version int, refresh RefreshFunc[T]) <-chan singleflight.Result {
	group := c.flight()
	base := context.WithoutCancel(ctx)

	return group.DoChan(key, func() (any, error) {
		rctx := base
		if c.refreshTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(base, c.refreshTimeout)
			defer cancel()
		}

		v, err := refresh(rctx)
		if err != nil {
			refreshesTotal.WithLabelValues("error").Inc()
			c.logger.Warn("Cache refresh failed",
				zap.String("key", key),
				zap.Error(err),
			)
			return nil, err
		}

		refreshesTotal.WithLabelValues("success").Inc()
		c.SetWithVersion(base, key, v, version)
		return v, nil
	})
}

// Get returns the value cached under key. The boolean is false when no data
// is available, which is not an error.
//
// Fresh entries are returned as is. Entries past TTL but within GracePeriod
// are returned immediately while a background refresh replaces them. Missing,
// expired, undecodable and other-version entries are refreshed synchronously
// when opts.Refresh is set. Concurrent refreshes of one key are shared.
func Get[T any](ctx context.Context, c *Cache, key string, opts Options[T]) (T, bool, error) {
	var zero T

	version := opts.Version
	if version == 0 {
		version = c.Version()
	}

	if entry, ok := c.load(ctx, key); ok {
		if data, ok := lookup[T](ctx, c, key, entry, version, opts); ok {
			return data, true, nil
		}
	}

	lookupsTotal.WithLabelValues(resultMiss).Inc()
	if opts.Refresh == nil {
		return zero, false, nil
	}

	select {
	case res := <-startRefresh(ctx, c, key, version, opts.Refresh):
		if res.Err != nil {
			return zero, false, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, false, ErrTypeMismatch
		}
		return v, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// lookup applies the version and staleness policy to a decoded entry
func lookup[T any](ctx context.Context, c *Cache, key string, entry Entry, version int, opts Options[T]) (T, bool) {
	if opts.Version != 0 && entry.Version != opts.Version {
		c.evict(ctx, key, resultInvalid, nil)
		var zero T
		return zero, false
	}
	data, err := unmarshalData[T](entry.Data)
	if err != nil {
		c.evict(ctx, key, resultInvalid, err)
		var zero T
		return zero, false
	}

	age := c.clock.Now().Sub(time.UnixMilli(entry.Timestamp))
	switch {
	case opts.TTL <= 0 || age <= opts.TTL:
		lookupsTotal.WithLabelValues(resultHit).Inc()
		return data, true
	case opts.GracePeriod > 0 && age <= opts.TTL+opts.GracePeriod:
		lookupsTotal.WithLabelValues(resultStale).Inc()
		if opts.Refresh != nil {
			startRefresh(ctx, c, key, version, opts.Refresh)
		}
		return data, true
	default:
		c.evict(ctx, key, resultExpired, nil)
		var zero T
		return zero, false
	}
}
