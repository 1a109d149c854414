package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	invalidated int
	closed      int
	closeErr    error
}

func (f *fakeCache) Invalidate() { f.invalidated++ }

func (f *fakeCache) Close() error {
	f.closed++
	return f.closeErr
}

type plainCache struct{ invalidated int }

func (p *plainCache) Invalidate() { p.invalidated++ }

func TestRegistry_InvalidateAll(t *testing.T) {
	r := NewRegistry()
	a, b := &plainCache{}, &fakeCache{}
	r.Register(a)
	r.Register(b)

	r.InvalidateAll()

	assert.Equal(t, 1, a.invalidated)
	assert.Equal(t, 1, b.invalidated)
	assert.Zero(t, b.closed)
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	lru := NewLRU[string, int](4)
	lru.Put("a", 1)
	closer := &fakeCache{closeErr: errors.New("flush failed")}
	r.Register(lru)
	r.Register(closer)

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
	assert.Zero(t, lru.Len())
	assert.Equal(t, 1, closer.invalidated)
	assert.Equal(t, 1, closer.closed)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, closer.closed)
}
