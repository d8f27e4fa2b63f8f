package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// Backend defines common blob operations across backends.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Storage wraps a Backend with a stable API and owns storage-key
// generation for uploaded files.
type Storage struct {
	backend Backend
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// Put uploads a blob under the given key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for the blob under the given key.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes the blob under the given key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// NewKey builds a collision-resistant storage key for an upload. The
// key is a UUID joined to a sanitized basename, so a client-supplied
// filename can never collide with or traverse out of the store.
func NewKey(originalName string) string {
	return uuid.NewString() + "_" + sanitizeName(originalName)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '_' || c == '-':
			b.WriteRune(c)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "attached_file"
	}
	return cleaned
}
