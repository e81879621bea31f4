package validate

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

// CustomerRow validates a single customer-master row, with the same
// all-or-nothing rejection policy as AccountRow.
func (v Validator) CustomerRow(row domain.RawRow) []string {
	var errs []string

	if normalize.Text(row["CustomerID"]) == "" {
		errs = append(errs, "Missing CustomerID")
	}

	if _, ok := v.Timestamps.Parse(row["DOB"]); !ok {
		errs = append(errs, "Invalid DOB")
	}

	if _, ok := normalize.Amount(row["AnnualIncome"]); !ok {
		errs = append(errs, "Invalid AnnualIncome")
	}

	return errs
}
