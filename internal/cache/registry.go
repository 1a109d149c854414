package cache

import (
	"errors"
	"io"
	"sync"
)

// Invalidator is anything holding cached state that can be dropped.
type Invalidator interface {
	Invalidate()
}

// Registry tracks every cache in the process so they can be reset together
// and torn down at shutdown.
type Registry struct {
	mu      sync.Mutex
	caches  []Invalidator
	closers []io.Closer
	closed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a cache. Closers registered this way are also closed by Close.
func (r *Registry) Register(c Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches = append(r.caches, c)
	if cl, ok := c.(io.Closer); ok {
		r.closers = append(r.closers, cl)
	}
}

// InvalidateAll drops the contents of every registered cache.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	caches := append([]Invalidator(nil), r.caches...)
	r.mu.Unlock()

	for _, c := range caches {
		c.Invalidate()
	}
}

// Close invalidates every cache, closes those that implement io.Closer and
// empties the registry. Calling Close more than once is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	caches, closers := r.caches, r.closers
	r.caches, r.closers = nil, nil
	r.mu.Unlock()

	for _, c := range caches {
		c.Invalidate()
	}
	var errs []error
	for _, cl := range closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate purges the LRU, letting it sit in a Registry.
func (c *LRU[K, V]) Invalidate() { c.Purge() }
