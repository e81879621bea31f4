// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// UpsertTransaction stores a cleaned transaction row keyed by TransactionID.
// Re-ingesting the same file overwrites the existing record.
func (r *SQLRepository) UpsertTransaction(ctx context.Context, source domain.SourceType, row domain.CleanedRow) error {
	txID := row.TransactionID()
	if txID == "" {
		return fmt.Errorf("%w: TransactionID is required", ErrInvalidInput)
	}

	amount, _ := row.Amount()
	ts, _ := row.Time()

	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode transaction payload: %w", err)
	}

	query := `
		INSERT INTO transactions (
			tx_id, source, txn_type, amount, timestamp,
			account_number, customer_id, location, device_id, status,
			payload, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id) DO UPDATE SET
			source = excluded.source,
			txn_type = excluded.txn_type,
			amount = excluded.amount,
			timestamp = excluded.timestamp,
			account_number = excluded.account_number,
			customer_id = excluded.customer_id,
			location = excluded.location,
			device_id = excluded.device_id,
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		txID, string(source), row.Str(domain.FieldTransactionType),
		amount, ts,
		row.Str(domain.FieldAccountNumber), row.Str(domain.FieldCustomerID),
		row.Str(domain.FieldLocation), row.Str(domain.FieldDeviceID),
		row.Str(domain.FieldStatus),
		string(payload), time.Now().UTC(),
	)
	return err
}

// GetTransaction retrieves a cleaned transaction row by TransactionID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (domain.CleanedRow, error) {
	query := `SELECT payload FROM transactions WHERE tx_id = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), txID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var row domain.CleanedRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, fmt.Errorf("failed to decode transaction payload: %w", err)
	}
	return row, nil
}

// UpsertAccountProfile stores an account document keyed by AccountNumber.
func (r *SQLRepository) UpsertAccountProfile(ctx context.Context, doc *domain.AccountDocument) error {
	if doc == nil || doc.AccountNumber == "" {
		return fmt.Errorf("%w: AccountNumber is required", ErrInvalidInput)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode account document: %w", err)
	}

	query := `
		INSERT INTO account_profiles (account_number, customer_id, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_number) DO UPDATE SET
			customer_id = excluded.customer_id,
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		doc.AccountNumber, doc.CustomerID, string(raw), time.Now().UTC())
	return err
}

// GetAccountProfile retrieves an account document by AccountNumber.
func (r *SQLRepository) GetAccountProfile(ctx context.Context, accountNumber string) (*domain.AccountDocument, error) {
	query := `SELECT doc FROM account_profiles WHERE account_number = ?`

	var raw string
	err := r.db.QueryRowContext(ctx, r.rebind(query), accountNumber).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc domain.AccountDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode account document: %w", err)
	}
	return &doc, nil
}

// UpsertCustomerProfile stores a customer document keyed by CustomerID.
func (r *SQLRepository) UpsertCustomerProfile(ctx context.Context, doc *domain.CustomerDocument) error {
	if doc == nil || doc.CustomerID == "" {
		return fmt.Errorf("%w: CustomerID is required", ErrInvalidInput)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode customer document: %w", err)
	}

	query := `
		INSERT INTO customer_profiles (customer_id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		doc.CustomerID, string(raw), time.Now().UTC())
	return err
}

// GetCustomerProfile retrieves a customer document by CustomerID.
func (r *SQLRepository) GetCustomerProfile(ctx context.Context, customerID string) (*domain.CustomerDocument, error) {
	query := `SELECT doc FROM customer_profiles WHERE customer_id = ?`

	var raw string
	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc domain.CustomerDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode customer document: %w", err)
	}
	return &doc, nil
}

// UpsertAlert stores an alert keyed by its deterministic ID, so re-running a
// batch never duplicates alerts.
func (r *SQLRepository) UpsertAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert ID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(alert.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	query := `
		INSERT INTO alerts (id, type, reason, account_number, customer_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			reason = excluded.reason,
			account_number = excluded.account_number,
			customer_id = excluded.customer_id,
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.Type, alert.Reason,
		alert.AccountNumber, alert.CustomerID,
		alert.CreatedAt, string(payload),
	)
	return err
}

// ListAlertsByAccount retrieves the most recent alerts for an account.
func (r *SQLRepository) ListAlertsByAccount(ctx context.Context, accountNumber string, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, type, reason, account_number, customer_id, created_at, payload
		FROM alerts
		WHERE account_number = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), accountNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var payload sql.NullString

		if err := rows.Scan(&a.ID, &a.Type, &a.Reason,
			&a.AccountNumber, &a.CustomerID, &a.CreatedAt, &payload); err != nil {
			return nil, err
		}

		if payload.Valid && payload.String != "" && payload.String != "null" {
			var p any
			if err := json.Unmarshal([]byte(payload.String), &p); err == nil {
				a.Payload = p
			}
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// SaveFileMetadata stores the processing state of one ingested file. The
// record is written at start and overwritten with final counts on completion.
func (r *SQLRepository) SaveFileMetadata(ctx context.Context, meta *domain.FileMetadata) error {
	if meta == nil || meta.FileName == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO file_metadata (
			file_name, source, status, error, started_at, completed_at,
			rows_parsed, valid, invalid, quarantined, alerts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			source = excluded.source,
			status = excluded.status,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			rows_parsed = excluded.rows_parsed,
			valid = excluded.valid,
			invalid = excluded.invalid,
			quarantined = excluded.quarantined,
			alerts = excluded.alerts
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		meta.FileName, string(meta.Source), meta.Status, meta.Error,
		meta.StartedAt, meta.CompletedAt,
		meta.RowsParsed, meta.Valid, meta.Invalid, meta.Quarantined, meta.Alerts,
	)
	return err
}

// GetFileMetadata retrieves the processing state of one ingested file.
func (r *SQLRepository) GetFileMetadata(ctx context.Context, fileName string) (*domain.FileMetadata, error) {
	query := `
		SELECT file_name, source, status, error, started_at, completed_at,
			   rows_parsed, valid, invalid, quarantined, alerts
		FROM file_metadata
		WHERE file_name = ?
	`

	var meta domain.FileMetadata
	var source string
	var errMsg sql.NullString
	var completed sql.NullTime

	err := r.db.QueryRowContext(ctx, r.rebind(query), fileName).Scan(
		&meta.FileName, &source, &meta.Status, &errMsg,
		&meta.StartedAt, &completed,
		&meta.RowsParsed, &meta.Valid, &meta.Invalid, &meta.Quarantined, &meta.Alerts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	meta.Source = domain.SourceType(source)
	if errMsg.Valid {
		meta.Error = errMsg.String
	}
	if completed.Valid {
		t := completed.Time
		meta.CompletedAt = &t
	}

	return &meta, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
