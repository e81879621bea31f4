// Package rules implements the transaction fraud detection engine.
//
// The engine is stateless over one batch: every invocation sees exactly the
// cleaned rows supplied, all rules run every time, and a single transaction
// may trigger several alerts of different types. Per-row threshold rules
// (high value, status anomaly) are compiled CEL predicates; the windowed
// batch rules (velocity, geo switch, balance drain, device misuse) are
// built-in scanners in batch.go.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine evaluates the fraud rule set over one batch of cleaned rows.
type Engine struct {
	thresholds domain.RuleThresholds

	highValue     cel.Program
	statusFailed  cel.Program
	statusPending cel.Program
}

// NewEngine compiles the per-row predicates for the given thresholds.
func NewEngine(t domain.RuleThresholds) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("status", cel.StringType),
		cel.Variable("tx_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{thresholds: t}

	if e.highValue, err = compilePredicate(env,
		fmt.Sprintf("amount >= %s", celFloat(t.HighValueAmount))); err != nil {
		return nil, err
	}
	if e.statusFailed, err = compilePredicate(env, fmt.Sprintf(
		`(status == "FAILED" || status == "CANCELLED") && amount > %s`,
		celFloat(t.StatusFailedAmount))); err != nil {
		return nil, err
	}
	if e.statusPending, err = compilePredicate(env, fmt.Sprintf(
		`status == "PENDING" && amount > %s`,
		celFloat(t.StatusPendingAmount))); err != nil {
		return nil, err
	}

	return e, nil
}

// Detect runs all rules over the batch and returns the accumulated alerts.
// Rows missing an amount or timestamp are skipped per rule, never aborting
// the batch. Alert IDs are deterministic so re-running the same batch
// upserts rather than duplicates.
func (e *Engine) Detect(rows []domain.CleanedRow) []domain.Alert {
	var alerts []domain.Alert

	alerts = append(alerts, e.detectHighValue(rows)...)
	alerts = append(alerts, e.detectStatusAnomaly(rows)...)

	groups := groupByCustomer(rows)
	alerts = append(alerts, e.detectVelocity(groups)...)
	alerts = append(alerts, e.detectGeoSwitch(groups)...)
	alerts = append(alerts, e.detectBalanceDrain(groups)...)

	alerts = append(alerts, e.detectDeviceMisuse(rows)...)
	alerts = append(alerts, e.detectAccountMismatch(rows)...)

	return alerts
}

// detectHighValue flags every transaction at or above the high-value
// threshold, one alert per qualifying transaction.
func (e *Engine) detectHighValue(rows []domain.CleanedRow) []domain.Alert {
	var alerts []domain.Alert
	for _, r := range rows {
		amt, ok := r.Amount()
		if !ok {
			continue
		}
		if !e.eval(e.highValue, amt, r) {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:   "ALERT_HIGHVALUE_" + r.TransactionID(),
			Type: domain.AlertHighValue,
			Reason: fmt.Sprintf("Transaction amount %v exceeds threshold %v",
				amt, e.thresholds.HighValueAmount),
			AccountNumber: accountOf(r),
			CustomerID:    r.Str(domain.FieldCustomerID),
			CreatedAt:     r.Str(domain.FieldTimestamp),
			Payload:       r,
		})
	}
	return alerts
}

// detectStatusAnomaly flags large failed/cancelled and large pending
// transactions. Evaluated per row, independent of grouping.
func (e *Engine) detectStatusAnomaly(rows []domain.CleanedRow) []domain.Alert {
	var alerts []domain.Alert
	for _, r := range rows {
		amt, ok := r.Amount()
		if !ok {
			continue
		}

		var reason string
		switch {
		case e.eval(e.statusFailed, amt, r):
			reason = fmt.Sprintf("Failed or cancelled transaction with amount %v", amt)
		case e.eval(e.statusPending, amt, r):
			reason = fmt.Sprintf("Pending transaction with amount %v", amt)
		default:
			continue
		}

		alerts = append(alerts, domain.Alert{
			ID:            "ALERT_STATUS_ANOMALY_" + r.TransactionID(),
			Type:          domain.AlertStatusAnomaly,
			Reason:        reason,
			AccountNumber: accountOf(r),
			CustomerID:    r.Str(domain.FieldCustomerID),
			CreatedAt:     r.Str(domain.FieldTimestamp),
			Payload:       r,
		})
	}
	return alerts
}

// eval runs a compiled predicate against one row's activation.
func (e *Engine) eval(prog cel.Program, amount float64, r domain.CleanedRow) bool {
	out, _, err := prog.Eval(map[string]any{
		"amount":  amount,
		"status":  strings.ToUpper(r.Str(domain.FieldStatus)),
		"tx_type": r.Str(domain.FieldTransactionType),
	})
	if err != nil {
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

func compilePredicate(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile predicate %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("predicate %q: expression must return bool, got %s", expr, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for %q: %w", expr, err)
	}
	return prog, nil
}

// celFloat renders a threshold as a CEL double literal. CEL does not coerce
// int literals to double, so the decimal point is mandatory.
func celFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// accountOf returns the row's account number, or the UNKNOWN bucket when
// the source omitted it.
func accountOf(r domain.CleanedRow) string {
	if acc := r.Str(domain.FieldAccountNumber); acc != "" {
		return acc
	}
	return domain.UnknownGroup
}
