package storage

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// New creates an object store based on configuration.
// Community tier: local directory. Pro tier: GCS.
func New(ctx context.Context, cfg domain.StorageConfig) (domain.ObjectStore, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.LocalDir)

	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
