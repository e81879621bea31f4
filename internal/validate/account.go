package validate

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

// AccountRow validates a single account-master row. Multiple errors may
// co-occur; a non-empty list rejects the row as a whole.
func (v Validator) AccountRow(row domain.RawRow) []string {
	var errs []string

	if normalize.Text(row["AccountNumber"]) == "" {
		errs = append(errs, "Missing AccountNumber")
	}
	if normalize.Text(row["CustomerID"]) == "" {
		errs = append(errs, "Missing CustomerID")
	}

	if _, ok := normalize.Amount(row["Balance"]); !ok {
		errs = append(errs, "Invalid Balance")
	}

	if _, ok := v.Timestamps.Parse(row["AccountOpenDate"]); !ok {
		errs = append(errs, "Invalid AccountOpenDate")
	}

	return errs
}
