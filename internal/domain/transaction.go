package domain

import (
	"time"
)

// TransactionType is the economic nature of a transaction as inferred by the
// classification engine. The sign of a transaction is never stored; the type
// alone conveys direction.
type TransactionType string

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

// Transaction is one materialized ledger entry. Amount is always
// non-negative (abs of the provider's raw amount). Description holds the
// encrypted envelope produced by internal/secure; Metadata preserves the
// classification-relevant provider fields as a JSON blob for audit.
type Transaction struct {
	ID          string
	AccountID   string
	UserID      string
	Date        time.Time // calendar date at local midnight
	Amount      float64   // always >= 0, sign implied by Type
	Type        TransactionType
	CategoryID  string // optional, from the category suggester
	Description string // encrypted
	Metadata    string // opaque JSON blob of provider signals
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionPatch carries the fields rewritten when the provider reports a
// modified record (e.g. a pending transaction confirmed with a different
// amount).
type TransactionPatch struct {
	Date        time.Time
	Amount      float64
	Type        TransactionType
	Description string
	Metadata    string
}
