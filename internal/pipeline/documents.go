package pipeline

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

// BuildAccountDocument shapes a validated account-master row into the
// persisted document form. Balance and AccountOpenDate were already checked
// by the validator; parse failures here fall back to zero values.
func BuildAccountDocument(row domain.RawRow, parser normalize.TimestampParser) *domain.AccountDocument {
	accNum := normalize.Text(row["AccountNumber"])
	balance, _ := normalize.Amount(row["Balance"])

	return &domain.AccountDocument{
		ID:            accNum,
		AccountNumber: accNum,
		CustomerID:    normalize.Text(row["CustomerID"]),
		Account: domain.AccountDetails{
			AccountHolderName:     normalize.Text(row["AccountHolderName"]),
			BankName:              normalize.Text(row["BankName"]),
			BranchName:            normalize.Text(row["BranchName"]),
			IFSCCode:              normalize.Text(row["IFSC_Code"]),
			AccountType:           normalize.Text(row["AccountType"]),
			AccountStatus:         normalize.Text(row["AccountStatus"]),
			AccountOpenDate:       renderDate(row["AccountOpenDate"], parser),
			Balance:               balance,
			Currency:              normalize.Text(row["Currency"]),
			KYCDone:               normalize.Text(row["KYC_Done"]),
			KYCDocID:              normalize.Text(row["KYC_DocID"]),
			KYCVerificationStatus: normalize.Text(row["KYC_DocumentVerificationStatus"]),
		},
	}
}

// BuildCustomerDocument shapes a validated customer-master row into the
// persisted document form.
func BuildCustomerDocument(row domain.RawRow, parser normalize.TimestampParser) *domain.CustomerDocument {
	custID := normalize.Text(row["CustomerID"])
	income, _ := normalize.Amount(row["AnnualIncome"])

	return &domain.CustomerDocument{
		ID:           custID,
		CustomerID:   custID,
		Name:         normalize.Text(row["Name"]),
		DOB:          renderDate(row["DOB"], parser),
		AnnualIncome: income,
		Occupation:   normalize.Text(row["Occupation"]),
		City:         normalize.Text(row["City"]),
	}
}

// renderDate prefers a date-only string when the parsed time carries no
// time-of-day component, matching how account open dates and birth dates
// usually arrive.
func renderDate(raw string, parser normalize.TimestampParser) string {
	ts, ok := parser.Parse(raw)
	if !ok {
		return ""
	}
	if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 {
		return ts.Format("2006-01-02")
	}
	return ts.Format(time.RFC3339)
}
