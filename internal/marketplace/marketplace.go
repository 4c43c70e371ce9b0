// Package marketplace turns Shopee and Mercado Livre sales into
// manufacturing orders.
package marketplace

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/orders"
)

// Marketplace identifies a sales channel.
type Marketplace string

const (
	Shopee       Marketplace = "shopee"
	MercadoLivre Marketplace = "mercadolivre"
)

// Parse returns the marketplace named s.
func Parse(s string) (Marketplace, error) {
	switch m := Marketplace(strings.ToLower(strings.TrimSpace(s))); m {
	case Shopee, MercadoLivre:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMarketplace, s)
}

// Source is the order source of sales from m.
func (m Marketplace) Source() orders.Source {
	if m == MercadoLivre {
		return orders.SourceMercadoLivre
	}
	return orders.SourceShopee
}

// Row is one sold item of a marketplace export.
type Row struct {
	Line       int
	ExternalID string
	Buyer      string
	Title      string
	Variation  string
	Quantity   int
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
	// OrderTotal is the sale-level amount some exports repeat on every item
	// line. Zero when the export has no such column.
	OrderTotal decimal.Decimal
	CreatedAt  *time.Time
}

// Report summarizes one import.
type Report struct {
	BatchID     string      `json:"batch_id"`
	Marketplace Marketplace `json:"marketplace"`
	Rows        int         `json:"rows"`
	Imported    int         `json:"imported"`
	Skipped     int         `json:"skipped"`
	Failed      int         `json:"failed"`
	OrderIDs    []int64     `json:"order_ids"`
	Errors      []RowError  `json:"errors"`
}
