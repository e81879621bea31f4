package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repository lookups when no record exists.
var ErrNotFound = errors.New("record not found")

// Repository defines the persistence boundary for the pipeline.
// All writes are upserts keyed by the row's natural key so that repeated
// ingestion of the same file is idempotent.
type Repository interface {
	// Transaction records (ATM/UPI), keyed by TransactionID.
	UpsertTransaction(ctx context.Context, source SourceType, row CleanedRow) error
	GetTransaction(ctx context.Context, txID string) (CleanedRow, error)

	// Profile documents.
	UpsertAccountProfile(ctx context.Context, doc *AccountDocument) error
	GetAccountProfile(ctx context.Context, accountNumber string) (*AccountDocument, error)
	UpsertCustomerProfile(ctx context.Context, doc *CustomerDocument) error
	GetCustomerProfile(ctx context.Context, customerID string) (*CustomerDocument, error)

	// Alerts, keyed by deterministic alert ID.
	UpsertAlert(ctx context.Context, alert *Alert) error
	ListAlertsByAccount(ctx context.Context, accountNumber string, limit int) ([]*Alert, error)

	// Per-file processing metadata.
	SaveFileMetadata(ctx context.Context, meta *FileMetadata) error
	GetFileMetadata(ctx context.Context, fileName string) (*FileMetadata, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
