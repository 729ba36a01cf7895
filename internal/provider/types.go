// Package provider implements the incremental-sync client for the external
// financial-data feed. The wire payload is loosely shaped and has grown
// legacy field spellings over time; everything is normalized into the closed
// Record struct here so the rest of the engine never sees raw JSON.
package provider

// Transaction-type values reported by the provider. Physical and digital
// purchases are unambiguous; "special" is a residual bucket (ATM, transfer,
// fee) that needs secondary signals to classify.
const (
	TxnTypePlace   = "place"
	TxnTypeDigital = "digital"
	TxnTypeSpecial = "special"
)

// Record is one transaction as reported by the provider, keyed by a stable
// external id. Amount keeps the provider's raw sign convention, which varies
// by account type and institution region.
type Record struct {
	ExternalID        string
	ExternalAccountID string
	Amount            float64
	Date              string // YYYY-MM-DD
	Description       string
	MerchantName      string
	Categories        []string
	TransactionType   string // place, digital, special, or empty
	TransactionCode   string // institution-supplied, e.g. "purchase", "interest"
	Pending           bool
}

// RemovedRecord identifies an external record the provider has retracted.
type RemovedRecord struct {
	ExternalID        string
	ExternalAccountID string
}

// SyncPage is one page of the incremental change feed.
type SyncPage struct {
	Added      []Record
	Modified   []Record
	Removed    []RemovedRecord
	HasMore    bool
	NextCursor string
}

// rawRecord is the wire shape, including legacy field spellings still
// emitted by some institutions. normalize is the single compatibility shim;
// business logic never falls back between spellings itself.
type rawRecord struct {
	TransactionID string   `json:"transaction_id"`
	AccountID     string   `json:"account_id"`
	Amount        float64  `json:"amount"`
	Date          string   `json:"date"`
	Name          string   `json:"name"`
	MerchantName  string   `json:"merchant_name"`
	Category      []string `json:"category"`

	PersonalFinanceCategory *struct {
		Primary  string `json:"primary"`
		Detailed string `json:"detailed"`
	} `json:"personal_finance_category"`

	TransactionType string `json:"transaction_type"`
	TransactionCode string `json:"transaction_code"`
	// Code is the legacy spelling of transaction_code.
	Code string `json:"code"`

	Pending bool `json:"pending"`
}

// normalize maps a raw wire record onto the closed Record struct, resolving
// legacy spellings in one place.
func (r rawRecord) normalize() Record {
	rec := Record{
		ExternalID:        r.TransactionID,
		ExternalAccountID: r.AccountID,
		Amount:            r.Amount,
		Date:              r.Date,
		Description:       r.Name,
		MerchantName:      r.MerchantName,
		Categories:        r.Category,
		TransactionType:   r.TransactionType,
		TransactionCode:   r.TransactionCode,
		Pending:           r.Pending,
	}
	if rec.TransactionCode == "" {
		rec.TransactionCode = r.Code
	}
	if len(rec.Categories) == 0 && r.PersonalFinanceCategory != nil && r.PersonalFinanceCategory.Primary != "" {
		rec.Categories = []string{r.PersonalFinanceCategory.Primary}
	}
	return rec
}

type rawRemoved struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
}

type rawSyncResponse struct {
	Added      []rawRecord  `json:"added"`
	Modified   []rawRecord  `json:"modified"`
	Removed    []rawRemoved `json:"removed"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

func (r rawSyncResponse) normalize() *SyncPage {
	page := &SyncPage{
		HasMore:    r.HasMore,
		NextCursor: r.NextCursor,
	}
	for _, a := range r.Added {
		page.Added = append(page.Added, a.normalize())
	}
	for _, m := range r.Modified {
		page.Modified = append(page.Modified, m.normalize())
	}
	for _, d := range r.Removed {
		page.Removed = append(page.Removed, RemovedRecord{
			ExternalID:        d.TransactionID,
			ExternalAccountID: d.AccountID,
		})
	}
	return page
}
