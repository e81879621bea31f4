package domain

import "context"

// ObjectStore is the blob-storage boundary. The pipeline reads incoming CSV
// objects from it and writes metadata and quarantine objects back. Backends:
// local directory (Community/dev) or GCS (Pro).
type ObjectStore interface {
	// Read returns the full contents of an object.
	Read(ctx context.Context, container, name string) ([]byte, error)

	// Write creates or overwrites an object.
	Write(ctx context.Context, container, name string, data []byte) error

	// Lifecycle
	Close() error
}

// StorageConfig holds configuration for the object store.
type StorageConfig struct {
	// Type is the store type: "local" or "gcs"
	Type string

	// Local directory root (Community tier / tests)
	LocalDir string

	// GCS bucket holding all containers as prefixes (Pro tier)
	GCSBucket string

	// Container (prefix) names
	IncomingContainer   string
	MetadataContainer   string
	QuarantineContainer string
}
