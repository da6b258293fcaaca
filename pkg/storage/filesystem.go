package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore implements Store on a local directory. Keys map to file
// paths under the root; path traversal in keys is rejected.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a filesystem-backed document store.
func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: root}
}

func (s *FilesystemStore) path(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}

	return filepath.Join(s.root, cleaned), nil
}

// Put writes the blob for a key, replacing any existing content.
func (s *FilesystemStore) Put(_ context.Context, key string, r io.Reader) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create storage file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()

		return fmt.Errorf("failed to write storage file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close storage file: %w", err)
	}

	return nil
}

// Delete removes the blob for a key. Deleting a missing key is not an error.
func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete storage file: %w", err)
	}

	return nil
}

// Get opens the blob for a key.
func (s *FilesystemStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}

	return f, nil
}
