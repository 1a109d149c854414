package cache

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Backend reads raw source bytes. Version returns a cheap token that changes
// whenever the content may have changed (mtime and size, or an ETag).
type Backend interface {
	Version(ctx context.Context, key string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, string, error)
}

// ParseFunc decodes raw bytes into a value.
type ParseFunc[T any] func([]byte) (T, error)

// Result describes one Source lookup.
type Result[T any] struct {
	Value T
	// Hit is true when the cached value was served without parsing.
	Hit bool
	// Changed is true when the value differs from the previous lookup.
	Changed bool
	// Sum is the xxhash checksum of the bytes Value was parsed from.
	Sum uint64
}

// Source is a read-through cache for one key on a Backend. The version token
// gates refetching and an xxhash checksum of the bytes gates re-parsing.
type Source[T any] struct {
	name    string
	key     string
	backend Backend
	parse   ParseFunc[T]

	mu      sync.Mutex
	loaded  bool
	version string
	sum     uint64
	value   T
}

// NewSource creates a source named name reading key from backend.
func NewSource[T any](name, key string, backend Backend, parse ParseFunc[T]) *Source[T] {
	return &Source[T]{name: name, key: key, backend: backend, parse: parse}
}

// Name identifies the source in logs and metrics.
func (s *Source[T]) Name() string { return s.name }

// Get returns the current value, refetching only when the backend version
// moved and re-parsing only when the bytes changed. On error the previously
// cached value stays in place.
func (s *Source[T]) Get(ctx context.Context) (Result[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, err := s.backend.Version(ctx, s.key)
	if err != nil {
		return Result[T]{}, fmt.Errorf("%s: stat %s: %w", s.name, s.key, err)
	}
	if s.loaded && version == s.version {
		return Result[T]{Value: s.value, Hit: true, Sum: s.sum}, nil
	}

	data, version, err := s.backend.Fetch(ctx, s.key)
	if err != nil {
		return Result[T]{}, fmt.Errorf("%s: fetch %s: %w", s.name, s.key, err)
	}
	sum := xxhash.Sum64(data)
	if s.loaded && sum == s.sum {
		s.version = version
		return Result[T]{Value: s.value, Hit: true, Sum: s.sum}, nil
	}

	value, err := s.parse(data)
	if err != nil {
		return Result[T]{}, fmt.Errorf("%s: parse %s: %w", s.name, s.key, err)
	}
	s.loaded, s.version, s.sum, s.value = true, version, sum, value
	return Result[T]{Value: value, Changed: true, Sum: sum}, nil
}

// Invalidate forgets the cached value; the next Get refetches and re-parses.
func (s *Source[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.loaded, s.version, s.sum, s.value = false, "", 0, zero
}

// FileBackend reads sources from the local filesystem.
type FileBackend struct{}

// Version is the file's modification time and size.
func (FileBackend) Version(_ context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return fileVersion(info), nil
}

// Fetch reads the whole file.
func (FileBackend) Fetch(_ context.Context, path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fileVersion(info), nil
}

func fileVersion(info fs.FileInfo) string {
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(info.Size(), 10)
}
