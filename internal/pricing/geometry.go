package pricing

import "github.com/shopspring/decimal"

var (
	cmPerMeter  = decimal.NewFromInt(100)
	cm2PerMeter = decimal.NewFromInt(10000)
	two         = decimal.NewFromInt(2)
)

// Geometry is the derived shape of one piece.
type Geometry struct {
	AreaM2      decimal.Decimal
	PerimeterCm decimal.Decimal
}

// Normalize validates the piece dimensions and order quantity and derives
// area and perimeter.
func Normalize(heightCm, widthCm decimal.Decimal, quantity int) (Geometry, error) {
	if !heightCm.IsPositive() {
		return Geometry{}, &ValidationError{Field: "height_cm", Message: "must be greater than 0"}
	}
	if !widthCm.IsPositive() {
		return Geometry{}, &ValidationError{Field: "width_cm", Message: "must be greater than 0"}
	}
	if quantity < 1 {
		return Geometry{}, &ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	return Geometry{
		AreaM2:      heightCm.Mul(widthCm).Div(cm2PerMeter),
		PerimeterCm: heightCm.Add(widthCm).Mul(two),
	}, nil
}
