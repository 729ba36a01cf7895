package classify

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/provider"
)

func TestClassify(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name           string
		record         provider.Record
		accountType    domain.AccountType
		wantType       domain.TransactionType
		wantIsTransfer bool
		wantAmount     float64
	}{
		{
			name: "depository food and drink category is expense",
			record: provider.Record{
				ExternalID: "ext-1",
				Amount:     -42.50,
				Date:       "2025-03-10",
				Categories: []string{"Food and Drink"},
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeExpense,
			wantAmount:  42.50,
		},
		{
			name: "credit card payment code becomes transfer",
			record: provider.Record{
				ExternalID:      "ext-2",
				Amount:          -30.00,
				Date:            "2025-03-11",
				TransactionCode: "payment",
			},
			accountType:    domain.AccountTypeCredit,
			wantType:       domain.TypeTransfer,
			wantIsTransfer: true,
			wantAmount:     30.00,
		},
		{
			name: "depository payroll category is income",
			record: provider.Record{
				ExternalID: "ext-3",
				Amount:     1500.00,
				Date:       "2025-03-12",
				Categories: []string{"Payroll"},
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeIncome,
			wantAmount:  1500.00,
		},
		{
			name: "place transaction type is always expense",
			record: provider.Record{
				ExternalID:      "ext-4",
				Amount:          12.00,
				Date:            "2025-03-13",
				TransactionType: provider.TxnTypePlace,
				Categories:      []string{"Payroll"}, // ignored, primary signal wins
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeExpense,
			wantAmount:  12.00,
		},
		{
			name: "digital transaction type is always expense",
			record: provider.Record{
				ExternalID:      "ext-5",
				Amount:          -9.99,
				Date:            "2025-03-13",
				TransactionType: provider.TxnTypeDigital,
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeExpense,
			wantAmount:  9.99,
		},
		{
			name: "direct debit code is expense",
			record: provider.Record{
				ExternalID:      "ext-6",
				Amount:          55.00,
				Date:            "2025-03-14",
				TransactionType: provider.TxnTypeSpecial,
				TransactionCode: "direct debit",
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeExpense,
			wantAmount:  55.00,
		},
		{
			name: "interest code is income",
			record: provider.Record{
				ExternalID:      "ext-7",
				Amount:          3.21,
				Date:            "2025-03-15",
				TransactionCode: "Interest",
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeIncome,
			wantAmount:  3.21,
		},
		{
			name: "ambiguous atm code falls through to sign",
			record: provider.Record{
				ExternalID:      "ext-8",
				Amount:          -60.00,
				Date:            "2025-03-16",
				TransactionType: provider.TxnTypeSpecial,
				TransactionCode: "atm",
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeExpense,
			wantAmount:  60.00,
		},
		{
			name: "merchant presence without income category is expense",
			record: provider.Record{
				ExternalID:   "ext-9",
				Amount:       25.00,
				Date:         "2025-03-17",
				MerchantName: "Corner Cafe",
				Categories:   []string{"Misc"},
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeExpense,
			wantAmount:  25.00,
		},
		{
			name: "depository positive without other signals is income",
			record: provider.Record{
				ExternalID: "ext-10",
				Amount:     200.00,
				Date:       "2025-03-18",
			},
			accountType: domain.AccountTypeDepository,
			wantType:    domain.TypeIncome,
			wantAmount:  200.00,
		},
		{
			name: "credit positive without other signals is expense",
			record: provider.Record{
				ExternalID: "ext-11",
				Amount:     200.00,
				Date:       "2025-03-18",
			},
			accountType: domain.AccountTypeCredit,
			wantType:    domain.TypeExpense,
			wantAmount:  200.00,
		},
		{
			name: "credit negative with transfer text becomes transfer",
			record: provider.Record{
				ExternalID:  "ext-12",
				Amount:      -120.00,
				Date:        "2025-03-19",
				Description: "ONLINE TRANSFER FROM CHECKING",
			},
			accountType:    domain.AccountTypeCredit,
			wantType:       domain.TypeTransfer,
			wantIsTransfer: true,
			wantAmount:     120.00,
		},
		{
			name: "credit interest stays income",
			record: provider.Record{
				ExternalID:      "ext-13",
				Amount:          1.50,
				Date:            "2025-03-20",
				TransactionCode: "interest",
			},
			accountType: domain.AccountTypeCredit,
			wantType:    domain.TypeIncome,
			wantAmount:  1.50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Classify(tt.record, tt.accountType)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.IsTransfer != tt.wantIsTransfer {
				t.Errorf("IsTransfer = %v, want %v", got.IsTransfer, tt.wantIsTransfer)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", got.Amount, tt.wantAmount)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	engine := NewEngine()
	record := provider.Record{
		ExternalID:      "ext-det",
		Amount:          -77.00,
		Date:            "2025-04-01",
		Description:     "CARD PAYMENT",
		TransactionCode: "transfer",
		Categories:      []string{"Shops"},
	}

	first, err := engine.Classify(record, domain.AccountTypeCredit)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	for i := 0; i < 100; i++ {
		got, err := engine.Classify(record, domain.AccountTypeCredit)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got != first {
			t.Fatalf("Classify() not deterministic: got %+v, want %+v", got, first)
		}
	}
}

func TestClassifyUnparseableDate(t *testing.T) {
	engine := NewEngine()

	for _, date := range []string{"", "13/01/2025", "2025-13-40", "yesterday"} {
		_, err := engine.Classify(provider.Record{ExternalID: "ext", Amount: 1, Date: date}, domain.AccountTypeDepository)
		if err == nil {
			t.Errorf("Classify() with date %q: expected error, got nil", date)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-06-15")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}

	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseDate() = %v, want %v", got, want)
	}
}

func TestKeywordOverrides(t *testing.T) {
	overrides, err := ParseKeywordOverrides(strings.NewReader("expense:\n  - lottery\nincome:\n  - royalties\n"))
	if err != nil {
		t.Fatalf("ParseKeywordOverrides() error = %v", err)
	}

	engine := NewEngineWithOverrides(overrides)

	got, err := engine.Classify(provider.Record{
		ExternalID: "ext-o1",
		Amount:     10.00,
		Date:       "2025-05-01",
		Categories: []string{"Lottery"},
	}, domain.AccountTypeDepository)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Type != domain.TypeExpense {
		t.Errorf("override expense keyword: Type = %v, want %v", got.Type, domain.TypeExpense)
	}

	got, err = engine.Classify(provider.Record{
		ExternalID: "ext-o2",
		Amount:     -10.00,
		Date:       "2025-05-01",
		Categories: []string{"Royalties"},
	}, domain.AccountTypeDepository)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Type != domain.TypeIncome {
		t.Errorf("override income keyword: Type = %v, want %v", got.Type, domain.TypeIncome)
	}

	// The built-in sets still apply alongside overrides.
	got, err = engine.Classify(provider.Record{
		ExternalID: "ext-o3",
		Amount:     -5.00,
		Date:       "2025-05-01",
		Categories: []string{"Groceries"},
	}, domain.AccountTypeDepository)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Type != domain.TypeExpense {
		t.Errorf("built-in keyword with overrides: Type = %v, want %v", got.Type, domain.TypeExpense)
	}
}
