// Package query caches asynchronous fetch results by key and exposes them as
// pending, error or success states.
package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusError   Status = "error"
	StatusSuccess Status = "success"
)

// Result is a snapshot of one cache entry. Data always holds a usable value:
// the placeholder while pending or failed, the last fetched value otherwise.
type Result[T any] struct {
	Key        string
	Status     Status
	Data       T
	Err        error
	Generation uint64
	UpdatedAt  time.Time
}

// Loaded reports whether Data comes from a successful fetch.
func (r Result[T]) Loaded() bool {
	return r.Status == StatusSuccess
}

// FetchFunc retrieves the value for one key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer is told about every settled fetch.
type Observer func(cache string, status Status, elapsed time.Duration)

type entry[T any] struct {
	result   Result[T]
	inflight bool
	waiters  []func(Result[T])
}

// Cache holds results for one kind of data. Fetches for the same key are
// shared; a fetch is never cancelled because a newer key was requested.
// Consumers pick the result for the key they currently care about.
type Cache[T any] struct {
	name        string
	placeholder func() T
	ttl         time.Duration
	timeout     time.Duration
	now         func() time.Time
	observer    Observer
	logr        *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry[T]
	gen     uint64
}

type settings struct {
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	observer Observer
	logr     *zap.Logger
}

// Option configures a Cache.
type Option func(*settings)

// WithTTL sets how long a success stays fresh. Zero keeps it for the life of the cache.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) { s.ttl = ttl }
}

// WithTimeout bounds every fetch.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logr = l }
}

// NewCache creates a cache. placeholder supplies the value seen by consumers
// before data has arrived.
func NewCache[T any](name string, placeholder func() T, opts ...Option) *Cache[T] {
	s := settings{
		timeout: 10 * time.Second,
		now:     time.Now,
		logr:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Cache[T]{
		name:        name,
		placeholder: placeholder,
		ttl:         s.ttl,
		timeout:     s.timeout,
		now:         s.now,
		observer:    s.observer,
		logr:        s.logr,
		entries:     make(map[string]*entry[T]),
	}
}

// Name identifies the cache in logs and metrics.
func (c *Cache[T]) Name() string {
	return c.name
}

// Peek returns the current result for key without fetching.
func (c *Cache[T]) Peek(key string) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.result
	}
	return c.pending(key)
}

// Load returns the current result for key and starts a fetch when there is no
// fresh success and nothing in flight. Errors are kept until the key is
// invalidated; there is no automatic retry. notify, if not nil, is called
// once when the in-flight fetch settles. It is not called when the returned
// result is already fresh or a settled error.
func (c *Cache[T]) Load(key string, fetch FetchFunc[T], notify func(Result[T])) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{result: c.pending(key)}
		c.entries[key] = e
	}

	switch {
	case e.inflight:
	case e.result.Status == StatusError:
		return e.result
	case e.result.Status == StatusSuccess && c.fresh(e.result):
		return e.result
	default:
		e.inflight = true
		go c.run(key, fetch)
	}

	if notify != nil {
		e.waiters = append(e.waiters, notify)
	}
	return e.result
}

// Invalidate forgets the result for key. An in-flight fetch still settles.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidate(key)
}

// InvalidatePrefix forgets every key starting with prefix.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.invalidate(key)
		}
	}
}

// ClearErrors forgets every failed result so the next Load fetches again.
func (c *Cache[T]) ClearErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if !e.inflight && e.result.Status == StatusError {
			delete(c.entries, key)
		}
	}
}

func (c *Cache[T]) invalidate(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.inflight {
		return
	}
	delete(c.entries, key)
}

func (c *Cache[T]) run(key string, fetch FetchFunc[T]) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := c.now()
	data, err := fetch(ctx)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	c.gen++
	res := Result[T]{
		Key:        key,
		Generation: c.gen,
		UpdatedAt:  c.now(),
	}
	if err != nil {
		res.Status = StatusError
		res.Err = err
		res.Data = c.placeholder()
	} else {
		res.Status = StatusSuccess
		res.Data = data
	}
	e.result = res
	e.inflight = false
	waiters := e.waiters
	e.waiters = nil
	c.mu.Unlock()

	if err != nil {
		c.logr.Warn("fetch failed", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
	} else {
		c.logr.Debug("fetch succeeded", zap.String("cache", c.name), zap.String("key", key), zap.Duration("elapsed", elapsed))
	}
	if c.observer != nil {
		c.observer(c.name, res.Status, elapsed)
	}
	for _, fn := range waiters {
		fn(res)
	}
}

func (c *Cache[T]) fresh(r Result[T]) bool {
	if r.UpdatedAt.IsZero() {
		return false
	}
	if c.ttl == 0 {
		return true
	}
	return c.now().Sub(r.UpdatedAt) < c.ttl
}

func (c *Cache[T]) pending(key string) Result[T] {
	return Result[T]{
		Key:    key,
		Status: StatusPending,
		Data:   c.placeholder(),
	}
}
