package options

import "github.com/shopspring/decimal"

// Creates a new DecimalRange instance
func NewDecimalRange() *DecimalRange {
	return &DecimalRange{}
}

var _ Range = (*DecimalRange)(nil)

// DecimalRange bounds a numeric column inclusively on either side.
// A nil bound leaves that side open. Bounds bind as strings so the
// database compares them as numerics.
type DecimalRange struct {
	Low  *decimal.Decimal
	High *decimal.Decimal
}

func (r *DecimalRange) From() (interface{}, bool) {
	if r.Low == nil {
		return nil, false
	}
	return r.Low.String(), true
}

func (r *DecimalRange) To() (interface{}, bool) {
	if r.High == nil {
		return nil, false
	}
	return r.High.String(), true
}
