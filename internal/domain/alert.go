package domain

// Alert is a fraud or account-risk finding emitted by one of the engines.
// IDs are deterministic per triggering entity so that re-running a batch
// upserts the same alert instead of duplicating it.
type Alert struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Reason        string `json:"reason"`
	AccountNumber string `json:"AccountNumber"`
	CustomerID    string `json:"CustomerID,omitempty"`

	// CreatedAt is the ISO timestamp of the triggering transaction when
	// known, otherwise the evaluation time.
	CreatedAt string `json:"createdAt,omitempty"`

	// Payload is one transaction, a list of transactions, or an
	// account/customer snapshot, depending on the alert type.
	Payload any `json:"payload,omitempty"`
}

// Transaction alert types.
const (
	AlertHighValue       = "HIGH_VALUE"
	AlertVelocityAttack  = "VELOCITY_ATTACK"
	AlertGeoSwitch       = "GEO_LOCATION_SWITCH"
	AlertBalanceDrain    = "BALANCE_DRAIN"
	AlertStatusAnomaly   = "STATUS_ANOMALY"
	AlertDeviceMisuse    = "DEVICE_MISUSE"
	AlertAccountMismatch = "ACCOUNT_MISMATCH"
)

// Profile alert types.
const (
	AlertKYCNotDone            = "KYC_NOT_DONE"
	AlertKYCVerificationFailed = "KYC_VERIFICATION_FAILED"
	AlertAccountDormant        = "ACCOUNT_DORMANT"
	AlertAccountClosed         = "ACCOUNT_CLOSED"
	AlertBalanceIncomeMismatch = "BALANCE_INCOME_MISMATCH"
	AlertStaleAccount          = "STALE_ACCOUNT"
)
