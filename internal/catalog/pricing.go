package catalog

import (
	"math"

	dErrors "pehchan/pkg/domain-errors"
)

// Pricing is the rupee amount breakdown for one verification method. Amounts
// are rounded to 2 decimal places (round half up) before display and before
// they reach payment integrity, so the displayed and charged amounts can
// never drift by a paisa.
type Pricing struct {
	Base  float64 `json:"base_price"`
	Tax   float64 `json:"tax"`
	Total float64 `json:"total"`
}

// TaxRate is the GST fraction applied to every method's base price.
const TaxRate = 0.18

// basePrices is the fixed rupee lookup per security level.
var basePrices = map[SecurityLevel]float64{
	LevelMostAdvanced:   50,
	LevelMediumAdvanced: 35,
	LevelLessAdvanced:   20,
}

// PriceFor derives base + tax + total for a method. Unknown methods fail;
// callers must not silently fall back to a price tier.
func PriceFor(method Method) (Pricing, error) {
	if !method.IsKnown() {
		return Pricing{}, dErrors.New(dErrors.CodeValidation, "unknown verification method")
	}
	base := basePrices[method.Level()]
	tax := Round2(base * TaxRate)
	return Pricing{
		Base:  Round2(base),
		Tax:   tax,
		Total: Round2(base + tax),
	}, nil
}

// TotalPaise converts the rupee total to the smallest currency unit the
// payment gateway expects.
func (p Pricing) TotalPaise() int64 {
	return int64(math.Round(p.Total * 100))
}

// Round2 rounds to 2 decimal places, half away from zero (round half up for
// the positive amounts currency deals in).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
