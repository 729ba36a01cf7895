package classify

import (
	"strings"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/provider"
)

// rule is one (predicate, outcome) pair of the decision table. Rules are
// evaluated in fixed priority order; the first one that matches decides.
// The final rule always matches.
type rule struct {
	name string
	eval func(e *Engine, rec provider.Record, acct domain.AccountType) (domain.TransactionType, bool)
}

// decisionTable returns the ordered classification policy. Kept as data so
// the policy is auditable and testable independent of the sync loop.
func decisionTable() []rule {
	return []rule{
		{
			// Physical and digital purchases are always expenses. The
			// residual "special" bucket (ATM, transfer, fee) falls through
			// to the secondary signals.
			name: "purchase transaction type",
			eval: func(e *Engine, rec provider.Record, _ domain.AccountType) (domain.TransactionType, bool) {
				switch rec.TransactionType {
				case provider.TxnTypePlace, provider.TxnTypeDigital:
					return domain.TypeExpense, true
				}
				return "", false
			},
		},
		{
			name: "expense transaction code",
			eval: func(e *Engine, rec provider.Record, _ domain.AccountType) (domain.TransactionType, bool) {
				if expenseCodes[strings.ToLower(rec.TransactionCode)] {
					return domain.TypeExpense, true
				}
				return "", false
			},
		},
		{
			name: "income transaction code",
			eval: func(e *Engine, rec provider.Record, _ domain.AccountType) (domain.TransactionType, bool) {
				if incomeCodes[strings.ToLower(rec.TransactionCode)] {
					return domain.TypeIncome, true
				}
				return "", false
			},
		},
		{
			name: "expense category keyword",
			eval: func(e *Engine, rec provider.Record, _ domain.AccountType) (domain.TransactionType, bool) {
				if e.categoryMatches(rec.Categories, e.expenseKeywords) {
					return domain.TypeExpense, true
				}
				return "", false
			},
		},
		{
			name: "income category keyword",
			eval: func(e *Engine, rec provider.Record, _ domain.AccountType) (domain.TransactionType, bool) {
				if e.categoryMatches(rec.Categories, e.incomeKeywords) {
					return domain.TypeIncome, true
				}
				return "", false
			},
		},
		{
			// Some institutions report expenses as positive amounts; a named
			// merchant without an income-looking category is an expense.
			name: "merchant presence",
			eval: func(e *Engine, rec provider.Record, _ domain.AccountType) (domain.TransactionType, bool) {
				if rec.MerchantName != "" && !e.categoryMatches(rec.Categories, e.incomeKeywords) {
					return domain.TypeExpense, true
				}
				return "", false
			},
		},
		{
			// Final fallback: raw amount sign. Credit accounts invert the
			// convention relative to depository accounts.
			name: "amount sign",
			eval: func(e *Engine, rec provider.Record, acct domain.AccountType) (domain.TransactionType, bool) {
				if acct.IsCredit() {
					if rec.Amount > 0 {
						return domain.TypeExpense, true
					}
					return domain.TypeIncome, true
				}
				if rec.Amount < 0 {
					return domain.TypeExpense, true
				}
				return domain.TypeIncome, true
			},
		},
	}
}
