// Package domain defines the core types and interfaces for Kestrel.
package domain

import "time"

// SourceType identifies which validator and rule set applies to a file.
type SourceType string

const (
	SourceATM      SourceType = "ATM"
	SourceUPI      SourceType = "UPI"
	SourceAccount  SourceType = "ACCOUNT"
	SourceCustomer SourceType = "CUSTOMER"
	SourceUnknown  SourceType = "UNKNOWN"
)

// IsTransaction reports whether the source carries transaction rows.
func (s SourceType) IsTransaction() bool {
	return s == SourceATM || s == SourceUPI
}

// RawRow is one CSV line as a header-aligned map of column name to raw value.
// Rows are ephemeral: produced by the CSV reader, consumed once by a validator.
type RawRow map[string]string

// CleanedRow is a validated, normalized row. Amounts are float64, timestamps
// are ISO-8601 UTC strings, identifiers are trimmed strings. Fields that the
// validator did not rewrite keep their original raw values.
type CleanedRow map[string]any

// Canonical field names written by the validators.
const (
	FieldTransactionID   = "TransactionID"
	FieldTransactionType = "TransactionType"
	FieldAmount          = "Amount"
	FieldTimestamp       = "Timestamp"
	FieldAccountNumber   = "AccountNumber"
	FieldCustomerID      = "CustomerID"
	FieldLocation        = "Location"
	FieldDeviceID        = "DeviceID"
	FieldStatus          = "Status"
)

// UnknownGroup is the grouping bucket for rows with no customer or account id.
const UnknownGroup = "UNKNOWN"

// Str returns the row value for key coerced to a string. Missing keys and
// non-string values yield the empty string.
func (r CleanedRow) Str(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Amount returns the normalized amount, if one was stored by the validator.
func (r CleanedRow) Amount() (float64, bool) {
	v, ok := r[FieldAmount]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Time parses the canonical ISO-8601 timestamp stored by the validator.
func (r CleanedRow) Time() (time.Time, bool) {
	s := r.Str(FieldTimestamp)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// TransactionID returns the canonical transaction identifier.
func (r CleanedRow) TransactionID() string {
	return r.Str(FieldTransactionID)
}

// GroupKey returns the identifier transaction rules group by:
// CustomerID if present, else AccountNumber, else the UNKNOWN bucket.
func (r CleanedRow) GroupKey() string {
	if cid := r.Str(FieldCustomerID); cid != "" {
		return cid
	}
	if acc := r.Str(FieldAccountNumber); acc != "" {
		return acc
	}
	return UnknownGroup
}
