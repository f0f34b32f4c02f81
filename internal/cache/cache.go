package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"golang.org/x/sync/singleflight"

	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/store"
)

// DefaultBlockingTimeout is the bound GetBlocking waits for an in-flight
// read before giving up.
const DefaultBlockingTimeout = 5 * time.Second

// Cache wraps a Storage with a memoized, single-flight read and a
// serialized write path:
//
//   - Get returns the memoized container. If none exists, or the previous
//     read failed, exactly one Storage.Read is issued; concurrent callers
//     collapse onto that one read via singleflight.
//   - Put writes through to Storage and, unless told otherwise, replaces
//     the memoized value with the new container.
//   - Clear empties both the memoized value and the backing storage.
//
// A Cache is safe for concurrent use.
type Cache struct {
	storage store.Storage
	log     zerolog.Logger

	mu     sync.RWMutex
	memo   mo.Option[*container.Container]
	failed bool

	flight singleflight.Group
	closed atomic.Bool
}

// New wraps storage in a memoized, single-flight Cache.
func New(storage store.Storage, log zerolog.Logger) *Cache {
	return &Cache{
		storage: storage,
		log:     log,
		memo:    mo.None[*container.Container](),
	}
}

// Get returns the current cached container, issuing a single Storage.Read
// if nothing is memoized yet or the previous read failed. Concurrent
// callers observing the same missing/failed state join the same read.
func (c *Cache) Get(ctx context.Context) (*container.Container, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	memoized, hasValue := c.memo.Get()
	needsRead := !hasValue || c.failed
	c.mu.RUnlock()

	if !needsRead {
		return memoized, nil
	}

	v, err, _ := c.flight.Do("read", func() (interface{}, error) {
		cont, readErr := c.storage.Read()
		c.mu.Lock()
		defer c.mu.Unlock()
		if readErr != nil {
			c.failed = true
			return nil, readErr
		}
		c.failed = false
		c.memo = mo.Some(cont)
		return cont, nil
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("cache: storage read failed")
		return nil, err
	}

	cont, _ := v.(*container.Container)
	return cont, nil
}

// GetBlocking behaves like Get but bounds the wait by timeout, returning
// nil (and logging) on timeout or failure rather than propagating the
// error. A zero timeout uses DefaultBlockingTimeout.
func (c *Cache) GetBlocking(ctx context.Context, timeout time.Duration) *container.Container {
	if timeout <= 0 {
		timeout = DefaultBlockingTimeout
	}

	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		c   *container.Container
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.Get(boundedCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.log.Warn().Err(r.err).Msg("cache: getBlocking failed")
			return nil
		}
		return r.c
	case <-boundedCtx.Done():
		c.log.Warn().Dur("timeout", timeout).Msg("cache: getBlocking timed out")
		return nil
	}
}

// Put writes c to storage and, when updateMemory is true, replaces the
// memoized value with it. The write happens before the memoized value is
// updated, so any value subsequently observed by Get has already been
// durably persisted.
func (c *Cache) Put(ctx context.Context, cont *container.Container, updateMemory bool) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if err := c.storage.Write(cont); err != nil {
		return err
	}

	if updateMemory {
		c.mu.Lock()
		c.memo = mo.Some(cont)
		c.failed = false
		c.mu.Unlock()
	}
	return nil
}

// Clear empties the memoized value (to an explicit "no container" state)
// and clears the backing storage.
func (c *Cache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if err := c.storage.Clear(); err != nil {
		return err
	}

	c.mu.Lock()
	c.memo = mo.Some[*container.Container](nil)
	c.failed = false
	c.mu.Unlock()
	return nil
}

// Close marks the cache closed. Subsequent operations return ErrClosed.
// Close is idempotent.
func (c *Cache) Close() error {
	c.closed.Store(true)
	return nil
}
