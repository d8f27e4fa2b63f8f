package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalBackend stores blobs as plain files in a single directory, named
// by their storage keys.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates the upload directory if needed and returns a
// backend rooted at it.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalBackend{dir: dir}, nil
}

// path resolves a key inside the upload directory. Keys are generated
// server-side, but a stray separator must never escape the root.
func (l *LocalBackend) path(key string) string {
	return filepath.Join(l.dir, filepath.Base(key))
}

func (l *LocalBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	f, err := os.OpenFile(l.path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(l.path(key))
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(l.path(key))
		return closeErr
	}
	return nil
}

func (l *LocalBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (l *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
