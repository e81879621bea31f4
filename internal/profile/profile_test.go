package profile

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

func newTestEngine() *Engine {
	e := NewEngine(domain.DefaultThresholds(), normalize.TimestampParser{DayFirst: true})
	e.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func accountDoc() *domain.AccountDocument {
	return &domain.AccountDocument{
		ID:            "ACC100",
		AccountNumber: "ACC100",
		CustomerID:    "CUST100",
		Account: domain.AccountDetails{
			AccountStatus:         "ACTIVE",
			AccountOpenDate:       "2024-01-15",
			Balance:               25000,
			KYCDone:               "Yes",
			KYCVerificationStatus: "VERIFIED",
		},
	}
}

func hasAlert(alerts []domain.Alert, typ string) bool {
	for _, a := range alerts {
		if a.Type == typ {
			return true
		}
	}
	return false
}

func TestHealthyAccountNoAlerts(t *testing.T) {
	e := newTestEngine()
	if alerts := e.Evaluate(accountDoc(), nil); len(alerts) != 0 {
		t.Fatalf("expected no alerts for a healthy account, got %v", alerts)
	}
}

func TestKYCNotDone(t *testing.T) {
	e := newTestEngine()

	for _, v := range []string{"No", "FALSE", "0", "n"} {
		doc := accountDoc()
		doc.Account.KYCDone = v
		alerts := e.Evaluate(doc, nil)
		if !hasAlert(alerts, domain.AlertKYCNotDone) {
			t.Errorf("KYC_Done=%q: expected KYC_NOT_DONE alert", v)
		}
	}

	// Ambiguous values are not treated as false.
	doc := accountDoc()
	doc.Account.KYCDone = "maybe"
	if hasAlert(e.Evaluate(doc, nil), domain.AlertKYCNotDone) {
		t.Error("ambiguous KYC_Done should not raise an alert")
	}
}

func TestKYCVerificationFailed(t *testing.T) {
	e := newTestEngine()
	doc := accountDoc()
	doc.Account.KYCVerificationStatus = "failed"

	alerts := e.Evaluate(doc, nil)
	if !hasAlert(alerts, domain.AlertKYCVerificationFailed) {
		t.Fatal("expected KYC_VERIFICATION_FAILED alert")
	}
}

func TestAccountStatusAlerts(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		status string
		typ    string
	}{
		{"DORMANT", domain.AlertAccountDormant},
		{"inactive", domain.AlertAccountDormant},
		{"CLOSED", domain.AlertAccountClosed},
	}

	for _, tt := range tests {
		doc := accountDoc()
		doc.Account.AccountStatus = tt.status
		if !hasAlert(e.Evaluate(doc, nil), tt.typ) {
			t.Errorf("status %q: expected %s alert", tt.status, tt.typ)
		}
	}
}

func TestBalanceIncomeMismatch(t *testing.T) {
	e := newTestEngine()

	doc := accountDoc()
	doc.Account.Balance = 600000
	customer := &domain.CustomerDocument{CustomerID: "CUST100", AnnualIncome: 50000}

	alerts := e.Evaluate(doc, customer)
	count := 0
	for _, a := range alerts {
		if a.Type == domain.AlertBalanceIncomeMismatch {
			count++
			if a.ID != "ALERT_BALANCE_INCOME_MISMATCH_ACC100" {
				t.Errorf("alert ID = %q", a.ID)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 mismatch alert, got %d", count)
	}

	// Exactly 10x income is not a mismatch; the check is strictly greater.
	doc.Account.Balance = 500000
	if hasAlert(e.Evaluate(doc, customer), domain.AlertBalanceIncomeMismatch) {
		t.Error("balance equal to 10x income should not alert")
	}

	// No customer data, no check.
	doc.Account.Balance = 600000
	if hasAlert(e.Evaluate(doc, nil), domain.AlertBalanceIncomeMismatch) {
		t.Error("mismatch check requires customer income")
	}

	// Zero income never alerts.
	if hasAlert(e.Evaluate(doc, &domain.CustomerDocument{}), domain.AlertBalanceIncomeMismatch) {
		t.Error("zero income should not alert")
	}
}

func TestStaleAccount(t *testing.T) {
	e := newTestEngine()

	doc := accountDoc()
	doc.Account.AccountOpenDate = "2015-03-01"
	doc.Account.Balance = 50

	if !hasAlert(e.Evaluate(doc, nil), domain.AlertStaleAccount) {
		t.Fatal("expected STALE_ACCOUNT alert for 11-year-old near-empty account")
	}

	// Old but funded: fine.
	doc.Account.Balance = 5000
	if hasAlert(e.Evaluate(doc, nil), domain.AlertStaleAccount) {
		t.Error("funded old account should not be stale")
	}

	// Young and near-empty: fine.
	doc.Account.AccountOpenDate = "2025-03-01"
	doc.Account.Balance = 50
	if hasAlert(e.Evaluate(doc, nil), domain.AlertStaleAccount) {
		t.Error("young account should not be stale")
	}

	// Unparseable open date skips the check instead of failing the batch.
	doc.Account.AccountOpenDate = "unknown"
	if hasAlert(e.Evaluate(doc, nil), domain.AlertStaleAccount) {
		t.Error("unparseable open date should skip the stale check")
	}
}

func TestAlertsCarryEvaluationTime(t *testing.T) {
	e := newTestEngine()

	doc := accountDoc()
	doc.Account.KYCDone = "no"

	alerts := e.Evaluate(doc, nil)
	if len(alerts) == 0 {
		t.Fatal("expected at least one alert")
	}
	// The persisted timestamp column rejects empty values; every alert must
	// carry the evaluation time in ISO form.
	want := "2026-08-29T12:00:00Z"
	for _, a := range alerts {
		if a.CreatedAt != want {
			t.Errorf("alert %s CreatedAt = %q, want %q", a.ID, a.CreatedAt, want)
		}
	}
}

func TestChecksAreIndependent(t *testing.T) {
	e := newTestEngine()

	doc := accountDoc()
	doc.Account.KYCDone = "no"
	doc.Account.KYCVerificationStatus = "FAILED"
	doc.Account.AccountStatus = "DORMANT"

	alerts := e.Evaluate(doc, nil)
	for _, typ := range []string{
		domain.AlertKYCNotDone,
		domain.AlertKYCVerificationFailed,
		domain.AlertAccountDormant,
	} {
		if !hasAlert(alerts, typ) {
			t.Errorf("expected %s alert; all checks must run", typ)
		}
	}
}
