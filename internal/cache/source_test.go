package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	data     map[string][]byte
	versions map[string]string
	fetches  int
	statErr  error
	fetchErr error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, versions: map[string]string{}}
}

func (m *memBackend) set(key, content, version string) {
	m.data[key] = []byte(content)
	m.versions[key] = version
}

func (m *memBackend) Version(_ context.Context, key string) (string, error) {
	if m.statErr != nil {
		return "", m.statErr
	}
	v, ok := m.versions[key]
	if !ok {
		return "", os.ErrNotExist
	}
	return v, nil
}

func (m *memBackend) Fetch(_ context.Context, key string) ([]byte, string, error) {
	m.fetches++
	if m.fetchErr != nil {
		return nil, "", m.fetchErr
	}
	return m.data[key], m.versions[key], nil
}

type countingParser struct{ calls int }

func (p *countingParser) parse(b []byte) (string, error) {
	p.calls++
	s := string(b)
	if strings.HasPrefix(s, "bad") {
		return "", errors.New("malformed")
	}
	return strings.ToUpper(s), nil
}

func TestSource_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.set("k", "abc", "v1")
	p := &countingParser{}
	src := NewSource("test", "k", backend, p.parse)

	first, err := src.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", first.Value)
	assert.False(t, first.Hit)
	assert.True(t, first.Changed)

	second, err := src.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", second.Value)
	assert.True(t, second.Hit)
	assert.False(t, second.Changed)
	assert.Equal(t, xxhash.Sum64String("abc"), first.Sum)
	assert.Equal(t, first.Sum, second.Sum, "a cache hit reports the checksum it was parsed from")

	assert.Equal(t, 1, backend.fetches)
	assert.Equal(t, 1, p.calls)
}

func TestSource_VersionBumpSameBytesSkipsParse(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.set("k", "abc", "v1")
	p := &countingParser{}
	src := NewSource("test", "k", backend, p.parse)

	_, err := src.Get(ctx)
	require.NoError(t, err)

	backend.set("k", "abc", "v2")
	res, err := src.Get(ctx)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.False(t, res.Changed)
	assert.Equal(t, 2, backend.fetches)
	assert.Equal(t, 1, p.calls)

	// The new version is remembered, so the next lookup does not refetch.
	_, err = src.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.fetches)
}

func TestSource_ChangedContentReparses(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.set("k", "abc", "v1")
	p := &countingParser{}
	src := NewSource("test", "k", backend, p.parse)

	first, err := src.Get(ctx)
	require.NoError(t, err)

	backend.set("k", "xyz", "v2")
	res, err := src.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", res.Value)
	assert.True(t, res.Changed)
	assert.NotEqual(t, first.Sum, res.Sum)
	assert.Equal(t, 2, p.calls)
}

func TestSource_ParseErrorKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.set("k", "abc", "v1")
	p := &countingParser{}
	src := NewSource("test", "k", backend, p.parse)

	_, err := src.Get(ctx)
	require.NoError(t, err)

	backend.set("k", "bad data", "v2")
	_, err = src.Get(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test: parse k")

	// Restoring the original bytes matches the cached checksum.
	backend.set("k", "abc", "v3")
	res, err := src.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", res.Value)
	assert.True(t, res.Hit)
}

func TestSource_BackendErrors(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	p := &countingParser{}
	src := NewSource("test", "missing", backend, p.parse)

	_, err := src.Get(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)

	backend.set("missing", "abc", "v1")
	backend.fetchErr = errors.New("connection reset")
	_, err = src.Get(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, p.calls)
}

func TestSource_Invalidate(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.set("k", "abc", "v1")
	p := &countingParser{}
	src := NewSource("test", "k", backend, p.parse)

	_, err := src.Get(ctx)
	require.NoError(t, err)
	src.Invalidate()

	res, err := src.Get(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, p.calls)
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o600))

	var fb FileBackend
	v1, err := fb.Version(ctx, path)
	require.NoError(t, err)

	data, v, err := fb.Fetch(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
	assert.Equal(t, v1, v)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n"), 0o600))
	require.NoError(t, os.Chtimes(path, later, later))
	v2, err := fb.Version(ctx, path)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = fb.Version(ctx, filepath.Dir(path))
	require.Error(t, err)
	_, err = fb.Version(ctx, filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
