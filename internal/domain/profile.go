package domain

// AccountDocument is the persisted form of one account-master row.
// It is rebuilt from scratch on every ingestion of that account and
// upserted by AccountNumber.
type AccountDocument struct {
	ID            string         `json:"id"`
	AccountNumber string         `json:"AccountNumber"`
	CustomerID    string         `json:"CustomerID"`
	Account       AccountDetails `json:"Account"`
}

// AccountDetails holds the account-level attributes used by the profile
// alert engine.
type AccountDetails struct {
	AccountHolderName string  `json:"AccountHolderName,omitempty"`
	BankName          string  `json:"BankName,omitempty"`
	BranchName        string  `json:"BranchName,omitempty"`
	IFSCCode          string  `json:"IFSC_Code,omitempty"`
	AccountType       string  `json:"AccountType,omitempty"`
	AccountStatus     string  `json:"AccountStatus,omitempty"`
	AccountOpenDate   string  `json:"AccountOpenDate,omitempty"`
	Balance           float64 `json:"Balance"`
	Currency          string  `json:"Currency,omitempty"`

	KYCDone               string `json:"KYC_Done,omitempty"`
	KYCDocID              string `json:"KYC_DocID,omitempty"`
	KYCVerificationStatus string `json:"KYC_DocumentVerificationStatus,omitempty"`
}

// CustomerDocument is the persisted form of one customer-master row.
// Upserted by CustomerID.
type CustomerDocument struct {
	ID           string  `json:"id"`
	CustomerID   string  `json:"CustomerID"`
	Name         string  `json:"Name,omitempty"`
	DOB          string  `json:"DOB,omitempty"`
	AnnualIncome float64 `json:"AnnualIncome"`
	Occupation   string  `json:"Occupation,omitempty"`
	City         string  `json:"City,omitempty"`
}
