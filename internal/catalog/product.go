// Package catalog holds the materials a frame is built from and their prices.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Family groups products by how they are billed.
type Family string

const (
	FamilyMoldura      Family = "moldura"
	FamilyVidro        Family = "vidro"
	FamilyMDF          Family = "mdf"
	FamilyPapel        Family = "papel"
	FamilyPassepartout Family = "passepartout"
	FamilyAcessorio    Family = "acessorio"
)

// Units of measure used on line items.
const (
	UnitLinearMeter = "ml"
	UnitSquareMeter = "m²"
	UnitPiece       = "un"
)

var families = []Family{FamilyMoldura, FamilyVidro, FamilyMDF, FamilyPapel, FamilyPassepartout, FamilyAcessorio}

// Families returns every known family in display order.
func Families() []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	for _, known := range families {
		if f == known {
			return true
		}
	}
	return false
}

// Unit is the natural unit the family's cost and prices are expressed in.
func (f Family) Unit() string {
	switch f {
	case FamilyMoldura:
		return UnitLinearMeter
	case FamilyAcessorio:
		return UnitPiece
	default:
		return UnitSquareMeter
	}
}

// Cost is what the factory pays per natural unit of a product.
type Cost struct{ decimal.Decimal }

// ManufacturingPrice is what a manufacturing order charges per natural unit.
// It is the only price the calculator reads.
type ManufacturingPrice struct{ decimal.Decimal }

// RetailPrice is the shelf price of a product sold as-is. It never feeds
// manufacturing calculations.
type RetailPrice struct{ decimal.Decimal }

func NewCost(d decimal.Decimal) Cost                             { return Cost{d} }
func NewManufacturingPrice(d decimal.Decimal) ManufacturingPrice { return ManufacturingPrice{d} }
func NewRetailPrice(d decimal.Decimal) RetailPrice               { return RetailPrice{d} }

// Product is a purchasable material.
type Product struct {
	ID                 int64              `json:"id"`
	Reference          string             `json:"reference"`
	Description        string             `json:"description"`
	Family             Family             `json:"family"`
	Cost               Cost               `json:"cost"`
	ManufacturingPrice ManufacturingPrice `json:"manufacturing_price"`
	RetailPrice        RetailPrice        `json:"retail_price"`
	BarLengthCm        decimal.Decimal    `json:"bar_length_cm"`
	BarWidthCm         decimal.Decimal    `json:"bar_width_cm"`
	Active             bool               `json:"active"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

var (
	// ErrNotFound is returned when no product has the requested id.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateReference is returned when the reference code is already taken.
	ErrDuplicateReference = errors.New("product reference already exists")
)

// ValidationError reports an invalid product field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize trims text fields and upper-cases the reference.
func (p *Product) Normalize() {
	p.Reference = strings.ToUpper(strings.TrimSpace(p.Reference))
	p.Description = strings.TrimSpace(p.Description)
	p.Family = Family(strings.ToLower(strings.TrimSpace(string(p.Family))))
}

// Validate checks the invariants every stored product must satisfy.
func (p Product) Validate() error {
	if p.Reference == "" {
		return &ValidationError{Field: "reference", Message: "is required"}
	}
	if p.Description == "" {
		return &ValidationError{Field: "description", Message: "is required"}
	}
	if !p.Family.Valid() {
		return &ValidationError{Field: "family", Message: fmt.Sprintf("unknown family %q", p.Family)}
	}

	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"cost", p.Cost.Decimal},
		{"manufacturing_price", p.ManufacturingPrice.Decimal},
		{"retail_price", p.RetailPrice.Decimal},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return &ValidationError{Field: a.field, Message: "must not be negative"}
		}
	}

	if p.Family == FamilyMoldura {
		if !p.BarLengthCm.IsPositive() {
			return &ValidationError{Field: "bar_length_cm", Message: "must be greater than 0 for moldura"}
		}
		if !p.BarWidthCm.IsPositive() {
			return &ValidationError{Field: "bar_width_cm", Message: "must be greater than 0 for moldura"}
		}
		return nil
	}

	if !p.BarLengthCm.IsZero() || !p.BarWidthCm.IsZero() {
		return &ValidationError{Field: "bar_length_cm", Message: "only moldura products have bar dimensions"}
	}
	return nil
}
