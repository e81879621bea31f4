package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// GCSStore implements ObjectStore on a Google Cloud Storage bucket.
// Containers map to object name prefixes within the bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a GCS-backed object store. Credentials come from the
// environment (application default credentials).
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

// Read returns the full contents of an object.
func (s *GCSStore) Read(ctx context.Context, container, name string) ([]byte, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(container, name))

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %s/%s: %w", container, name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open object %s/%s: %w", container, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", container, name, err)
	}
	return data, nil
}

// Write creates or overwrites an object.
func (s *GCSStore) Write(ctx context.Context, container, name string, data []byte) error {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(container, name))

	w := obj.NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s/%s: %w", container, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s/%s: %w", container, name, err)
	}
	return nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) objectName(container, name string) string {
	return container + "/" + name
}
