package classify

// Institution-supplied transaction codes, matched as the secondary signal
// when the coarse transaction type is absent or "special". The sets are
// fixed: codes in neither set are ambiguous and fall through to the next
// rule in the table.
var (
	// expenseCodes always mean money leaving the account.
	expenseCodes = map[string]bool{
		"purchase":       true,
		"bill payment":   true,
		"bank charge":    true,
		"cashback":       true,
		"direct debit":   true,
		"standing order": true,
	}

	// incomeCodes always mean money earned by the account holder.
	incomeCodes = map[string]bool{
		"interest": true,
	}

	// ambiguousCodes are explicitly undecidable from the code alone: a
	// transfer or ATM withdrawal can be either direction. Listed for audit;
	// the table simply does not match them.
	ambiguousCodes = map[string]bool{
		"transfer":   true,
		"cash":       true,
		"atm":        true,
		"cheque":     true,
		"adjustment": true,
	}

	// paymentCodes signal a credit-card payment when seen on a credit-type
	// account, turning an apparent income into an internal transfer.
	paymentCodes = map[string]bool{
		"payment": true,
		"credit":  true,
	}
)

// Default category keyword sets, matched case-insensitively as substrings
// against the provider's coarse category strings.
var (
	defaultExpenseKeywords = []string{
		"food and drink",
		"food",
		"restaurants",
		"groceries",
		"shops",
		"shopping",
		"travel",
		"transport",
		"entertainment",
		"recreation",
		"utilities",
		"service",
		"subscription",
		"healthcare",
		"rent",
	}

	defaultIncomeKeywords = []string{
		"payroll",
		"salary",
		"wages",
		"interest earned",
		"dividend",
		"income",
		"deposit",
	}
)
