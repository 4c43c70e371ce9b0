// Package seed loads the starter catalog of a fresh installation.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/catalog"
	"github.com/Simplici0/molduraria/internal/db"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Skipped int
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// StarterCatalog is one product per family so the calculator can be used
// right after installation.
func StarterCatalog() []catalog.Product {
	return []catalog.Product{
		{
			Reference:          "MOL-001",
			Description:        "Moldura lisa preta 2cm",
			Family:             catalog.FamilyMoldura,
			Cost:               catalog.NewCost(money("18.50")),
			ManufacturingPrice: catalog.NewManufacturingPrice(money("46.25")),
			RetailPrice:        catalog.NewRetailPrice(money("59.90")),
			BarLengthCm:        money("270"),
			BarWidthCm:         money("2"),
		},
		{
			Reference:          "VID-002",
			Description:        "Vidro comum 2mm",
			Family:             catalog.FamilyVidro,
			Cost:               catalog.NewCost(money("45.00")),
			ManufacturingPrice: catalog.NewManufacturingPrice(money("112.50")),
			RetailPrice:        catalog.NewRetailPrice(money("140.00")),
		},
		{
			Reference:          "MDF-003",
			Description:        "Fundo MDF 3mm",
			Family:             catalog.FamilyMDF,
			Cost:               catalog.NewCost(money("28.00")),
			ManufacturingPrice: catalog.NewManufacturingPrice(money("70.00")),
			RetailPrice:        catalog.NewRetailPrice(money("85.00")),
		},
		{
			Reference:          "PAP-001",
			Description:        "Papel fotográfico fosco",
			Family:             catalog.FamilyPapel,
			Cost:               catalog.NewCost(money("32.00")),
			ManufacturingPrice: catalog.NewManufacturingPrice(money("80.00")),
			RetailPrice:        catalog.NewRetailPrice(money("96.00")),
		},
		{
			Reference:          "PAS-001",
			Description:        "Passe-partout branco neve",
			Family:             catalog.FamilyPassepartout,
			Cost:               catalog.NewCost(money("38.00")),
			ManufacturingPrice: catalog.NewManufacturingPrice(money("95.00")),
			RetailPrice:        catalog.NewRetailPrice(money("115.00")),
		},
		{
			Reference:          "ACE-001",
			Description:        "Kit gancho e prego",
			Family:             catalog.FamilyAcessorio,
			Cost:               catalog.NewCost(money("1.20")),
			ManufacturingPrice: catalog.NewManufacturingPrice(money("3.00")),
			RetailPrice:        catalog.NewRetailPrice(money("4.00")),
		},
	}
}

// Run inserts the products whose reference is not in the catalog yet.
// Existing products are never overwritten, so prices edited by the shop
// survive restarts.
func Run(ctx context.Context, database *sql.DB, products []catalog.Product) (Stats, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	now := db.Timestamp(time.Now())
	for _, p := range products {
		if err := ensureProduct(ctx, tx, p, now, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureProduct(ctx context.Context, tx *sql.Tx, p catalog.Product, now string, stats *Stats) error {
	p.Normalize()
	p.Active = true
	if err := p.Validate(); err != nil {
		return fmt.Errorf("seed product %s: %w", p.Reference, err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE reference = ? LIMIT 1)`, p.Reference).Scan(&exists); err != nil {
		return fmt.Errorf("check product %s existence: %w", p.Reference, err)
	}
	if exists {
		stats.Skipped++
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products (
			reference,
			description,
			family,
			cost,
			manufacturing_price,
			retail_price,
			bar_length_cm,
			bar_width_cm,
			active,
			created_at,
			updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Reference, p.Description, p.Family, p.Cost, p.ManufacturingPrice, p.RetailPrice,
		p.BarLengthCm, p.BarWidthCm, p.Active, now, now); err != nil {
		return fmt.Errorf("insert product %s: %w", p.Reference, err)
	}
	stats.Inserts++
	return nil
}
