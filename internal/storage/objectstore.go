// Package storage provides the object store capability for uploaded
// documents, plus the presigned-URL scheme for direct client uploads.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore holds uploaded document payloads keyed by a
// user/document/filename object key.
type ObjectStore interface {
	// Put stores an object, overwriting any existing one, and returns
	// the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Get opens an object for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// FSStore is a filesystem-backed ObjectStore rooted at a directory.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put stores an object under the root directory.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create object file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("failed to write object: %w", err)
	}
	return n, nil
}

// Get opens an object for reading.
func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %q: %w", key, err)
	}
	return f, nil
}

// resolve maps an object key to a filesystem path, rejecting keys that
// escape the root.
func (s *FSStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}
