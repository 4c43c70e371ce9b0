// Package pricing turns frame dimensions and a material selection into a
// priced manufacturing order preview.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/molduraria/internal/catalog"
)

const (
	fieldMoldura      = "moldura"
	fieldVidro        = "vidro"
	fieldMDF          = "mdf"
	fieldPapel        = "papel"
	fieldPassepartout = "passepartout"
	fieldAcessorios   = "acessorios"

	moneyPlaces = 2
)

var hundred = decimal.NewFromInt(100)

// ProductGetter resolves a product by id. It returns catalog.ErrNotFound for
// unknown ids.
type ProductGetter interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// Selection picks one catalog product for a material slot. ProductID is only
// read when Use is true.
type Selection struct {
	Use       bool  `json:"use"`
	ProductID int64 `json:"product_id"`
}

// Request describes the piece to build and the materials to build it from.
type Request struct {
	HeightCm      decimal.Decimal  `json:"height_cm"`
	WidthCm       decimal.Decimal  `json:"width_cm"`
	Quantity      int              `json:"quantity"`
	Moldura       Selection        `json:"moldura"`
	Vidro         Selection        `json:"vidro"`
	MDF           Selection        `json:"mdf"`
	Papel         Selection        `json:"papel"`
	Passepartout  Selection        `json:"passepartout"`
	UseAcessorios bool             `json:"use_acessorios"`
	AcessorioIDs  []int64          `json:"acessorio_ids"`
	AdjustedValue *decimal.Decimal `json:"adjusted_value,omitempty"`
}

// LineItem is one material of one piece, priced. Quantity and the subtotals
// are per piece; OrderQuantity is Quantity times the order quantity, so an
// accessory shows 1 per piece and the order quantity in OrderQuantity.
type LineItem struct {
	Type          catalog.Family  `json:"type"`
	ProductID     int64           `json:"product_id"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	OrderQuantity decimal.Decimal `json:"order_quantity"`
	Unit          string          `json:"unit"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	CostSubtotal  decimal.Decimal `json:"cost_subtotal"`
	SaleSubtotal  decimal.Decimal `json:"sale_subtotal"`
	Frame         *FrameDetail    `json:"frame,omitempty"`
}

// PricedOrder is the calculator output. Line items are per piece; totals
// cover the whole order quantity.
type PricedOrder struct {
	Items       []LineItem      `json:"items"`
	AreaM2      decimal.Decimal `json:"area_m2"`
	PerimeterCm decimal.Decimal `json:"perimeter_cm"`
	Quantity    int             `json:"quantity"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalSale   decimal.Decimal `json:"total_sale"`
	FinalValue  decimal.Decimal `json:"final_value"`
	MarginPct   decimal.Decimal `json:"margin_pct"`
}

// Calculator prices requests against a product catalog. It holds no state
// besides its collaborators and is safe for concurrent use.
type Calculator struct {
	catalog ProductGetter
	rules   Rules
}

// NewCalculator returns a Calculator reading products from c.
func NewCalculator(c ProductGetter, rules Rules) *Calculator {
	return &Calculator{catalog: c, rules: rules}
}

type slot struct {
	field     string
	family    catalog.Family
	productID int64
}

// Calculate validates req, looks up its materials and returns the priced order.
func (c *Calculator) Calculate(ctx context.Context, req Request) (PricedOrder, error) {
	geo, err := Normalize(req.HeightCm, req.WidthCm, req.Quantity)
	if err != nil {
		return PricedOrder{}, err
	}

	slots, err := selectedSlots(req)
	if err != nil {
		return PricedOrder{}, err
	}

	products, err := c.lookup(ctx, slots)
	if err != nil {
		return PricedOrder{}, err
	}

	items := make([]LineItem, 0, len(slots))
	for _, s := range slots {
		p := products[s.productID]
		if p.Family != s.family {
			return PricedOrder{}, &ValidationError{
				Field:   s.field,
				Message: fmt.Sprintf("product %d is %s, not %s", p.ID, p.Family, s.family),
			}
		}
		if !p.Active {
			return PricedOrder{}, &ValidationError{
				Field:   s.field,
				Message: fmt.Sprintf("product %d is inactive", p.ID),
			}
		}

		item, ok, err := c.resolve(geo, p)
		if err != nil {
			return PricedOrder{}, err
		}
		if ok {
			item.OrderQuantity = item.Quantity.Mul(decimal.NewFromInt(int64(req.Quantity)))
			items = append(items, item)
		}
	}

	return aggregate(items, geo, req.Quantity, req.AdjustedValue)
}

func selectedSlots(req Request) ([]slot, error) {
	var slots []slot

	singles := []struct {
		field  string
		family catalog.Family
		sel    Selection
	}{
		{fieldMoldura, catalog.FamilyMoldura, req.Moldura},
		{fieldVidro, catalog.FamilyVidro, req.Vidro},
		{fieldMDF, catalog.FamilyMDF, req.MDF},
		{fieldPapel, catalog.FamilyPapel, req.Papel},
		{fieldPassepartout, catalog.FamilyPassepartout, req.Passepartout},
	}
	for _, s := range singles {
		if !s.sel.Use {
			continue
		}
		if s.sel.ProductID <= 0 {
			return nil, &ValidationError{Field: s.field + ".product_id", Message: "is required when the material is used"}
		}
		slots = append(slots, slot{field: s.field, family: s.family, productID: s.sel.ProductID})
	}

	if req.UseAcessorios {
		if len(req.AcessorioIDs) == 0 {
			return nil, &ValidationError{Field: fieldAcessorios, Message: "at least one accessory is required when accessories are used"}
		}
		for i, id := range req.AcessorioIDs {
			if id <= 0 {
				return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", fieldAcessorios, i), Message: "is not a valid product id"}
			}
			slots = append(slots, slot{field: fmt.Sprintf("%s[%d]", fieldAcessorios, i), family: catalog.FamilyAcessorio, productID: id})
		}
	}

	return slots, nil
}

// lookup fetches every distinct product concurrently.
func (c *Calculator) lookup(ctx context.Context, slots []slot) (map[int64]catalog.Product, error) {
	var (
		mu       sync.Mutex
		products = make(map[int64]catalog.Product, len(slots))
		seen     = make(map[int64]bool, len(slots))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range slots {
		if seen[s.productID] {
			continue
		}
		seen[s.productID] = true

		g.Go(func() error {
			p, err := c.catalog.Get(gctx, s.productID)
			if errors.Is(err, catalog.ErrNotFound) {
				return &NotFoundError{Field: s.field, ProductID: s.productID}
			}
			if err != nil {
				return fmt.Errorf("get product %d: %w", s.productID, err)
			}

			mu.Lock()
			products[s.productID] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

// resolve computes the billable quantity of p for one piece and prices it.
// ok is false when the material contributes nothing to the piece.
func (c *Calculator) resolve(geo Geometry, p catalog.Product) (LineItem, bool, error) {
	item := LineItem{
		Type:        p.Family,
		ProductID:   p.ID,
		Reference:   p.Reference,
		Description: p.Description,
		Unit:        p.Family.Unit(),
	}

	switch p.Family {
	case catalog.FamilyMoldura:
		if !geo.PerimeterCm.IsPositive() {
			return LineItem{}, false, nil
		}
		qty, detail, err := FrameQuantity(geo.PerimeterCm, p, c.rules)
		if err != nil {
			return LineItem{}, false, err
		}
		item.Quantity = qty
		item.Frame = &detail
	case catalog.FamilyAcessorio:
		item.Quantity = decimal.NewFromInt(1)
	default:
		item.Quantity = geo.AreaM2
	}

	item.UnitCost, item.UnitPrice, item.CostSubtotal, item.SaleSubtotal = priceLine(item.Quantity, p.Cost, p.ManufacturingPrice)
	return item, true, nil
}

// priceLine multiplies a billed quantity by the product's cost and
// manufacturing price. Retail prices are a different type and cannot be
// passed here.
func priceLine(qty decimal.Decimal, cost catalog.Cost, price catalog.ManufacturingPrice) (unitCost, unitPrice, costSubtotal, saleSubtotal decimal.Decimal) {
	unitCost = cost.Decimal
	unitPrice = price.Decimal
	costSubtotal = qty.Mul(unitCost).Round(moneyPlaces)
	saleSubtotal = qty.Mul(unitPrice).Round(moneyPlaces)
	return unitCost, unitPrice, costSubtotal, saleSubtotal
}

func aggregate(items []LineItem, geo Geometry, quantity int, adjusted *decimal.Decimal) (PricedOrder, error) {
	var costSum, saleSum decimal.Decimal
	for _, it := range items {
		costSum = costSum.Add(it.CostSubtotal)
		saleSum = saleSum.Add(it.SaleSubtotal)
	}

	q := decimal.NewFromInt(int64(quantity))
	totalCost := costSum.Mul(q).Round(moneyPlaces)
	totalSale := saleSum.Mul(q).Round(moneyPlaces)

	margin := decimal.Zero
	if !totalSale.IsZero() {
		margin = totalSale.Sub(totalCost).Div(totalSale).Mul(hundred).Round(moneyPlaces)
	}

	final := totalSale
	if adjusted != nil {
		if adjusted.IsNegative() {
			return PricedOrder{}, &ValidationError{Field: "adjusted_value", Message: "must not be negative"}
		}
		final = adjusted.Round(moneyPlaces)
	}

	return PricedOrder{
		Items:       items,
		AreaM2:      geo.AreaM2,
		PerimeterCm: geo.PerimeterCm,
		Quantity:    quantity,
		TotalCost:   totalCost,
		TotalSale:   totalSale,
		FinalValue:  final,
		MarginPct:   margin,
	}, nil
}
