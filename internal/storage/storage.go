// Package storage puts uploaded files somewhere a browser can fetch them
// from: an S3-compatible bucket in production, or a local directory served
// by the API during development.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrInvalidKey is returned for keys that could escape the storage root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store is an object store. Keys are slash-separated paths such as
// "product/<userID>/<uuid>.jpg".
type Store interface {
	// Put stores size bytes from r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
