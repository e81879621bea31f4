package validate

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

// Validator validates and normalizes raw CSV rows. The timestamp parser is
// injected so the day-first policy stays a configuration choice.
type Validator struct {
	Timestamps normalize.TimestampParser
}

// Transaction types that legitimately carry a zero amount, as normalized
// tokens (see NormalizeTxnType).
var zeroAmountAllowed = map[string]struct{}{
	"ministatement":  {},
	"ministmt":       {},
	"balanceenquiry": {},
	"balanceinquiry": {},
	"balanceenq":     {},
	"balance":        {},
}

// NormalizeTxnType reduces a transaction-type string to a compact lowercase
// token: trimmed, lowercased, with spaces, dashes and underscores removed,
// so "Mini Statement" and "ministatement" compare equal.
func NormalizeTxnType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	for _, sep := range []string{" ", "-", "_"} {
		t = strings.ReplaceAll(t, sep, "")
	}
	return t
}

// TransactionRow validates a single ATM or UPI transaction row.
//
// Returns the accumulated error list (empty means valid) and the cleaned
// row: canonical TransactionID, Amount as float64 and Timestamp as ISO-8601
// UTC where parsed, all other fields trimmed but otherwise verbatim. A row
// is never partially valid; any error quarantines it as a whole.
func (v Validator) TransactionRow(row domain.RawRow, source domain.SourceType) ([]string, domain.CleanedRow) {
	trimmed := trimRow(row)

	cleaned := make(domain.CleanedRow, len(trimmed)+2)
	for k, val := range trimmed {
		cleaned[k] = val
	}
	var errs []string

	// TransactionID is mandatory.
	txnID := resolveAlias(trimmed, transactionIDAliases)
	if txnID == "" {
		errs = append(errs, "Missing TransactionID")
	} else {
		cleaned[domain.FieldTransactionID] = txnID
	}

	txnType := NormalizeTxnType(resolveAlias(trimmed, txnTypeAliases))

	// Amount must be numeric, and positive except for the inquiry-style
	// types that carry no money movement.
	amt, amtOK := normalize.Amount(resolveAlias(trimmed, amountAliases))
	if !amtOK {
		errs = append(errs, "Invalid Amount")
	} else {
		cleaned[domain.FieldAmount] = amt
		if amt <= 0 {
			if _, allowed := zeroAmountAllowed[txnType]; !allowed {
				errs = append(errs, "Invalid or non-positive Amount")
			}
		}
	}

	// Timestamp must parse; store back the canonical UTC form.
	ts, tsOK := v.Timestamps.Parse(resolveAlias(trimmed, timestampAliases))
	if !tsOK {
		errs = append(errs, "Invalid Timestamp")
	} else {
		cleaned[domain.FieldTimestamp] = normalize.ISO(ts)
	}

	return errs, cleaned
}

// trimRow trims header names and values, keeping original header keys.
func trimRow(row domain.RawRow) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[strings.TrimSpace(k)] = normalize.Text(v)
	}
	return out
}
