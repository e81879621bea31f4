// Package storage provides object store implementations for Kestrel.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LocalStore implements ObjectStore on a local directory tree. Containers
// map to subdirectories. Used for the Community tier and in tests.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local object store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

// Read returns the full contents of an object.
func (s *LocalStore) Read(ctx context.Context, container, name string) ([]byte, error) {
	path, err := s.objectPath(container, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s/%s: %w", container, name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object %s/%s: %w", container, name, err)
	}
	return data, nil
}

// Write creates or overwrites an object.
func (s *LocalStore) Write(ctx context.Context, container, name string, data []byte) error {
	path, err := s.objectPath(container, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create container directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write object %s/%s: %w", container, name, err)
	}
	return nil
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}

// objectPath resolves container/name under the root, rejecting traversal.
func (s *LocalStore) objectPath(container, name string) (string, error) {
	if container == "" || name == "" {
		return "", fmt.Errorf("container and object name are required")
	}

	path := filepath.Join(s.root, container, name)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid object name: %s", name)
	}
	return path, nil
}
