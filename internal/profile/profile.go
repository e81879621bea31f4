// Package profile implements account-level risk alerts. The engine
// evaluates one account document at a time, independently of the
// transaction fraud rules and of any other account.
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

// Engine evaluates the profile rule set over a single account document.
type Engine struct {
	thresholds domain.RuleThresholds
	timestamps normalize.TimestampParser

	// now is injectable for account-age tests.
	now func() time.Time
}

// NewEngine creates a profile alert engine with the given thresholds.
func NewEngine(t domain.RuleThresholds, parser normalize.TimestampParser) *Engine {
	return &Engine{
		thresholds: t,
		timestamps: parser,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs all profile checks for one account. The customer document is
// optional; when present its AnnualIncome feeds the balance/income check.
// All checks are independent and all run regardless of earlier results.
// Alert IDs are deterministic per account and type so that re-ingestion
// overwrites rather than duplicates.
func (e *Engine) Evaluate(doc *domain.AccountDocument, customer *domain.CustomerDocument) []domain.Alert {
	var alerts []domain.Alert
	acc := doc.Account

	// Profile checks have no triggering transaction, so CreatedAt is the
	// evaluation time. It must be set: the alerts table requires a timestamp.
	evaluatedAt := normalize.ISO(e.now())

	add := func(suffix, typ, reason string, payload any) {
		alerts = append(alerts, domain.Alert{
			ID:            "ALERT_" + suffix + "_" + doc.AccountNumber,
			Type:          typ,
			Reason:        reason,
			AccountNumber: doc.AccountNumber,
			CustomerID:    doc.CustomerID,
			CreatedAt:     evaluatedAt,
			Payload:       payload,
		})
	}

	// 1. KYC not completed.
	if normalize.Bool(acc.KYCDone) == normalize.False {
		add("KYC_NOT_DONE", domain.AlertKYCNotDone, "KYC is not completed", acc)
	}

	// 2. KYC document verification failed.
	if equalFold(acc.KYCVerificationStatus, "FAILED") {
		add("KYC_VERIFICATION_FAILED", domain.AlertKYCVerificationFailed,
			"KYC verification failed", acc)
	}

	// 3. Dormant or inactive account.
	if equalFold(acc.AccountStatus, "DORMANT") || equalFold(acc.AccountStatus, "INACTIVE") {
		add("ACCOUNT_DORMANT", domain.AlertAccountDormant,
			"Account is dormant or inactive", acc)
	}

	// 4. Closed account.
	if equalFold(acc.AccountStatus, "CLOSED") {
		add("ACCOUNT_CLOSED", domain.AlertAccountClosed, "Account is closed", acc)
	}

	// 5. Balance far above declared income.
	if customer != nil && customer.AnnualIncome > 0 &&
		acc.Balance > customer.AnnualIncome*e.thresholds.IncomeMultiple {
		add("BALANCE_INCOME_MISMATCH", domain.AlertBalanceIncomeMismatch,
			fmt.Sprintf("Balance %v greatly exceeds declared income %v",
				acc.Balance, customer.AnnualIncome),
			map[string]float64{"balance": acc.Balance, "income": customer.AnnualIncome})
	}

	// 6. Very old account with near-zero balance.
	if openDate, ok := e.timestamps.Parse(acc.AccountOpenDate); ok {
		ageYears := e.now().Sub(openDate).Hours() / 24 / 365
		if ageYears >= e.thresholds.StaleAccountYears &&
			acc.Balance < e.thresholds.StaleAccountBalance {
			add("STALE_ACCOUNT", domain.AlertStaleAccount,
				"Account is very old and balance is too low",
				map[string]float64{"age_years": ageYears, "balance": acc.Balance})
		}
	}

	return alerts
}

func equalFold(s, token string) bool {
	return s != "" && strings.EqualFold(s, token)
}
