package domain

import "time"

// AccountType distinguishes the two sign conventions the classification
// engine has to cope with: depository accounts report expenses as negative
// amounts, credit accounts report purchases as positive amounts.
type AccountType string

const (
	AccountTypeDepository AccountType = "depository"
	AccountTypeCredit     AccountType = "credit"
)

// IsCredit reports whether the account carries the inverted (credit-card)
// sign convention.
func (t AccountType) IsCredit() bool {
	return t == AccountTypeCredit
}

// Account is a local ledger account linked to one external account of a
// provider connection.
type Account struct {
	ID                string
	UserID            string
	ConnectionID      string
	ExternalAccountID string
	Name              string
	Type              AccountType
	LastSyncedAt      *time.Time
}

// Connection is one provider link. The access token authorizes incremental
// pulls; the pagination cursor for the connection lives in sync_cursors.
type Connection struct {
	ID            string
	UserID        string
	AccessToken   string
	InstitutionID string
	CreatedAt     time.Time
}
