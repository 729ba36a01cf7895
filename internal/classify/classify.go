// Package classify infers a transaction's economic nature (expense, income
// or internal transfer) from the provider's ambiguous, inconsistently
// populated signals. Classification is a pure function over
// (record, account type): same inputs always produce the same result.
//
// No single provider signal is reliable across institutions, so the policy
// is an explicit, ordered decision table rather than one rule: coarse
// transaction type first, then institution transaction codes, then category
// keywords, then merchant presence, and finally the raw amount sign with the
// convention inverted for credit-type accounts.
package classify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/provider"
)

// Result is the outcome of classifying one external record.
type Result struct {
	Type       domain.TransactionType
	IsTransfer bool
	// Amount is abs(raw amount); the sign is never stored.
	Amount float64
	// Date is the provider's date as a calendar date at local midnight.
	Date time.Time
}

// Engine evaluates the decision table. The zero-cost default engine uses the
// built-in keyword sets; overrides extend them per deployment.
type Engine struct {
	expenseKeywords []string
	incomeKeywords  []string
	rules           []rule
}

// NewEngine creates a classification engine with the built-in keyword sets.
func NewEngine() *Engine {
	return NewEngineWithOverrides(nil)
}

// NewEngineWithOverrides creates an engine whose keyword sets are extended
// by the given overrides.
func NewEngineWithOverrides(o *KeywordOverrides) *Engine {
	e := &Engine{
		expenseKeywords: defaultExpenseKeywords,
		incomeKeywords:  defaultIncomeKeywords,
	}
	if o != nil {
		e.expenseKeywords = append(append([]string{}, defaultExpenseKeywords...), lowerAll(o.Expense)...)
		e.incomeKeywords = append(append([]string{}, defaultIncomeKeywords...), lowerAll(o.Income)...)
	}
	e.rules = decisionTable()
	return e
}

// Classify maps one external record plus the local account type to a
// transaction type. It performs no I/O. An unparseable date is a hard
// failure, never silently coerced.
func (e *Engine) Classify(rec provider.Record, accountType domain.AccountType) (Result, error) {
	date, err := ParseDate(rec.Date)
	if err != nil {
		return Result{}, err
	}

	var txType domain.TransactionType
	for _, r := range e.rules {
		if t, ok := r.eval(e, rec, accountType); ok {
			txType = t
			break
		}
	}

	// A credit-card payment looks like income on the credit account but is
	// really debt reduction: reclassify as an internal transfer.
	isTransfer := false
	if accountType.IsCredit() && txType == domain.TypeIncome && e.isCardPayment(rec) {
		txType = domain.TypeTransfer
		isTransfer = true
	}

	return Result{
		Type:       txType,
		IsTransfer: isTransfer,
		Amount:     math.Abs(rec.Amount),
		Date:       date,
	}, nil
}

// ParseDate parses the provider's YYYY-MM-DD date as a calendar date at
// local midnight.
func ParseDate(s string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable transaction date %q: %w", s, err)
	}
	return date, nil
}

func (e *Engine) isCardPayment(rec provider.Record) bool {
	if paymentCodes[strings.ToLower(rec.TransactionCode)] {
		return true
	}
	if rec.Amount < 0 {
		text := strings.ToLower(strings.Join(rec.Categories, " ") + " " + rec.Description)
		if strings.Contains(text, "payment") || strings.Contains(text, "transfer") {
			return true
		}
	}
	return false
}

func (e *Engine) categoryMatches(categories []string, keywords []string) bool {
	for _, c := range categories {
		lc := strings.ToLower(c)
		for _, kw := range keywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}

func lowerAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, strings.ToLower(s))
	}
	return out
}
