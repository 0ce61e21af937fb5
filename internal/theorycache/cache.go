// Package theorycache memoizes background solutions by their exact
// parameter vector.
//
// The cache is an explicit, bounded object owned by its caller. Concurrent
// requests for the same parameters share one computation, and an optional
// persistent Store survives process restarts.
package theorycache

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/san-kum/chronodyn/internal/cosmo"
)

const DefaultMaxEntries = 256

// Result is a solved background for one parameter vector.
type Result struct {
	Params      cosmo.Params `json:"params"`
	Tau         []float64    `json:"tau"`
	A           []float64    `json:"a"`
	APrime      []float64    `json:"a_prime"`
	HConf       []float64    `json:"h_conf"`
	Success     bool         `json:"success"`
	Status      string       `json:"status"`
	Evaluations int          `json:"nfev"`
}

// Final is the last scale factor of the run, or 0 for an empty one.
func (r Result) Final() float64 {
	if len(r.A) == 0 {
		return 0
	}
	return r.A[len(r.A)-1]
}

// ComputeFunc produces the result for p on a cache miss.
type ComputeFunc func(ctx context.Context, p cosmo.Params) (Result, error)

// Store is a persistent second level behind the in-memory LRU.
type Store interface {
	Get(ctx context.Context, key cosmo.Key) (Result, bool, error)
	Put(ctx context.Context, key cosmo.Key, r Result) error
}

type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Computes  int64 `json:"computes"`
	Entries   int   `json:"entries"`
}

type entry struct {
	key    cosmo.Key
	result Result
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[cosmo.Key]*list.Element
	lru     *list.List
	flight  singleflight.Group

	maxEntries int
	store      Store
	log        *slog.Logger

	hits, misses, evictions, computes atomic.Int64
}

type Option func(*Cache)

func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a cache holding at most maxEntries results. Non-positive
// sizes fall back to DefaultMaxEntries.
func New(maxEntries int, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		entries:    make(map[cosmo.Key]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get looks only at memory.
func (c *Cache) Get(p cosmo.Params) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[p.Key()]
	if !ok {
		return Result{}, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*entry).result, true
}

// GetOrCompute returns the cached result for p, consulting memory, then the
// store, then compute. Failed computations are not cached.
//
// Concurrent callers for the same p share one computation. It runs without
// the callers' cancellation, so one caller giving up does not fail the
// others; a cancelled caller returns ctx.Err() at once and the shared
// computation still completes and fills the cache.
func (c *Cache) GetOrCompute(ctx context.Context, p cosmo.Params, compute ComputeFunc) (Result, error) {
	if r, ok := c.Get(p); ok {
		c.hits.Add(1)
		return r, nil
	}
	c.misses.Add(1)

	key := p.Key()
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key.String(), func() (any, error) {
		// a flight that finished since our miss has already stored it
		if r, ok := c.Get(p); ok {
			return r, nil
		}
		if c.store != nil {
			r, ok, err := c.store.Get(flightCtx, key)
			if err != nil {
				c.log.Warn("theory store read failed", slog.String("key", key.String()), slog.String("error", err.Error()))
			} else if ok {
				c.add(key, r)
				return r, nil
			}
		}

		c.computes.Add(1)
		r, err := compute(flightCtx, p)
		if err != nil {
			return Result{}, err
		}
		c.add(key, r)

		if c.store != nil {
			if err := c.store.Put(flightCtx, key, r); err != nil {
				c.log.Warn("theory store write failed", slog.String("key", key.String()), slog.String("error", err.Error()))
			}
		}
		return r, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return Result{}, fmt.Errorf("compute %s: %w", key, res.Err)
	}
	if res.Shared {
		c.log.Debug("shared theory computation", slog.String("key", key.String()))
	}
	return res.Val.(Result), nil
}

func (c *Cache) add(key cosmo.Key, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).result = r
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&entry{key: key, result: r})

	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
		c.evictions.Add(1)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Computes:  c.computes.Load(),
		Entries:   c.Len(),
	}
}

// Purge drops every in-memory entry. The store is left alone.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cosmo.Key]*list.Element)
	c.lru.Init()
}
