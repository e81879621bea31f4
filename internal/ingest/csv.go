// Package ingest turns raw CSV objects into header-aligned rows and back.
// Type coercion is not done here; validators own that.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ParseCSV parses CSV text into its header and one RawRow per data line.
// Rows shorter than the header are padded with empty values; longer rows
// drop the overflow, matching common reader behavior for ragged exports.
func ParseCSV(text string) ([]string, []domain.RawRow, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	rows := make([]domain.RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(domain.RawRow, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// DetectSourceType infers the ingestion source from keywords in the
// filename, the same convention the upload side uses.
func DetectSourceType(fileName string) domain.SourceType {
	f := strings.ToLower(fileName)
	switch {
	case f == "":
		return domain.SourceUnknown
	case strings.Contains(f, "atm"):
		return domain.SourceATM
	case strings.Contains(f, "upi"):
		return domain.SourceUPI
	case strings.Contains(f, "account"):
		return domain.SourceAccount
	case strings.Contains(f, "customer"):
		return domain.SourceCustomer
	default:
		return domain.SourceUnknown
	}
}

// QuarantineCSV renders rejected rows back to CSV, in original row order and
// aligned with the original header, for operator review.
func QuarantineCSV(header []string, rows []domain.RawRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write quarantine header: %w", err)
	}
	rec := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("failed to write quarantine row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// QuarantineName returns the quarantine object name for a source file.
func QuarantineName(fileName string) string {
	return fileName + "_badrows.csv"
}

// MetadataName returns the metadata object name for a source file.
func MetadataName(fileName string) string {
	return fileName + ".metadata.json"
}
