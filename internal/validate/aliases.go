// Package validate applies per-source field-presence and type rules to raw
// CSV rows. Validators never fail with a Go error for data-quality problems;
// they return accumulated human-readable error lists so the pipeline can
// route whole rows to quarantine.
package validate

// Vendor exports disagree on header spelling. Each canonical field carries
// an ordered alias table, tried in sequence, instead of ad hoc fallback
// chains scattered through the validators.
var (
	transactionIDAliases = []string{"TransactionID", "TxID", "transactionid", "transaction_id"}
	txnTypeAliases       = []string{"TransactionType", "Type", "transactiontype", "type"}
	amountAliases        = []string{"TransactionAmount", "Amount", "transactionamount", "amount"}
	timestampAliases     = []string{"TransactionTime", "Timestamp", "transactiontime", "timestamp"}
)

// resolveAlias returns the first non-empty value among the accepted header
// names for a field.
func resolveAlias(row map[string]string, aliases []string) string {
	for _, name := range aliases {
		if v := row[name]; v != "" {
			return v
		}
	}
	return ""
}
