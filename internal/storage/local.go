package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local keeps objects under a directory. The HTTP server exposes that
// directory at BaseURL.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: baseURL}, nil
}

// Dir is the root directory, for serving files.
func (l *Local) Dir() string {
	return l.dir
}

// Put writes to a temp file first so a half-written upload is never visible.
func (l *Local) Put(_ context.Context, key string, r io.ReadSeeker, size int64, contentType string) (Object, error) {
	if !validKey(key) {
		return Object{}, ErrInvalidKey
	}
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Object{}, fmt.Errorf("storage: creating %s: %w", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("storage: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("storage: writing %s: %w", key, err)
	}
	if size >= 0 && written != size {
		return Object{}, fmt.Errorf("storage: wrote %d bytes for %s, expected %d", written, key, size)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Object{}, fmt.Errorf("storage: moving %s into place: %w", key, err)
	}
	return Object{Key: key, URL: l.URL(key), ContentType: contentType, Size: written}, nil
}

// Delete is idempotent: a missing file is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

func (l *Local) URL(key string) string {
	return joinURL(l.baseURL, key)
}
