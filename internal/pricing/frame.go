package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/molduraria/internal/catalog"
)

// Rules are the empirical shop-floor constants behind frame billing.
type Rules struct {
	// CutLossFactor multiplies the bar width to give the waste of the
	// mitre cuts of one frame (eight cut ends).
	CutLossFactor decimal.Decimal
	// ReusableLeftoverCm is the shortest bar offcut that goes back to stock.
	// Shorter offcuts are charged to the order.
	ReusableLeftoverCm decimal.Decimal
}

// DefaultRules returns the rules the factory prices with.
func DefaultRules() Rules {
	return Rules{
		CutLossFactor:      decimal.NewFromInt(8),
		ReusableLeftoverCm: decimal.NewFromInt(100),
	}
}

// FrameDetail explains how a frame line item quantity was reached.
type FrameDetail struct {
	CutLossCm          decimal.Decimal `json:"cut_loss_cm"`
	BarsNeeded         int64           `json:"bars_needed"`
	LeftoverCm         decimal.Decimal `json:"leftover_cm"`
	LeftoverCharged    bool            `json:"leftover_charged"`
	ChargedPerimeterCm decimal.Decimal `json:"charged_perimeter_cm"`
}

// FrameQuantity returns the linear meters of moldura billed for one piece
// of the given perimeter.
func FrameQuantity(perimeterCm decimal.Decimal, p catalog.Product, rules Rules) (decimal.Decimal, FrameDetail, error) {
	if !p.BarLengthCm.IsPositive() {
		return decimal.Zero, FrameDetail{}, &ConfigurationError{
			Field:     fieldMoldura,
			ProductID: p.ID,
			Message:   "bar_length_cm must be greater than 0",
		}
	}

	cutLoss := p.BarWidthCm.Mul(rules.CutLossFactor)
	bars := perimeterCm.Div(p.BarLengthCm).Ceil()
	leftover := bars.Mul(p.BarLengthCm).Sub(perimeterCm)

	charged := perimeterCm.Add(cutLoss)
	leftoverCharged := leftover.LessThan(rules.ReusableLeftoverCm)
	if leftoverCharged {
		charged = charged.Add(leftover)
	}

	detail := FrameDetail{
		CutLossCm:          cutLoss,
		BarsNeeded:         bars.IntPart(),
		LeftoverCm:         leftover,
		LeftoverCharged:    leftoverCharged,
		ChargedPerimeterCm: charged,
	}
	return charged.Div(cmPerMeter), detail, nil
}
