// Package ledger records the factory's money in and out.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies an entry. Compras and despesas take money out, vendas and
// receitas bring it in.
type Kind string

const (
	KindPurchase Kind = "compra"
	KindSale     Kind = "venda"
	KindExpense  Kind = "despesa"
	KindIncome   Kind = "receita"
)

// SalesCategory is the category of sales booked by delivered orders.
const SalesCategory = "pedidos"

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindSale, KindExpense, KindIncome:
		return true
	}
	return false
}

// Inflow reports whether entries of kind k increase the balance.
func (k Kind) Inflow() bool {
	return k == KindSale || k == KindIncome
}

// Entry is one ledger line. Amount is always positive.
type Entry struct {
	ID          int64           `json:"id"`
	Kind        Kind            `json:"kind"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredOn  time.Time       `json:"occurred_on"`
	OrderID     *int64          `json:"order_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign implied by the kind.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind.Inflow() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// CategoryTotal sums the entries of one kind and category.
type CategoryTotal struct {
	Kind     Kind            `json:"kind"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Summary aggregates a period of the ledger.
type Summary struct {
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Balance    decimal.Decimal `json:"balance"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("ledger entry not found")

// ValidationError reports an invalid entry field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the invariants of a new entry.
func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", e.Kind)}
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	if e.OccurredOn.IsZero() {
		return &ValidationError{Field: "occurred_on", Message: "is required"}
	}
	return nil
}

// Summarize folds entries into totals. Categories appear in first-seen order.
func Summarize(entries []Entry) Summary {
	type key struct {
		kind     Kind
		category string
	}

	s := Summary{ByCategory: []CategoryTotal{}}
	index := make(map[key]int)

	for _, e := range entries {
		if e.Kind.Inflow() {
			s.Income = s.Income.Add(e.Amount)
		} else {
			s.Expense = s.Expense.Add(e.Amount)
		}

		k := key{kind: e.Kind, category: e.Category}
		i, ok := index[k]
		if !ok {
			i = len(s.ByCategory)
			index[k] = i
			s.ByCategory = append(s.ByCategory, CategoryTotal{Kind: e.Kind, Category: e.Category})
		}
		s.ByCategory[i].Total = s.ByCategory[i].Total.Add(e.Amount)
	}

	s.Balance = s.Income.Sub(s.Expense)
	return s
}
