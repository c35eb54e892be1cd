package amm

import "math"

// BuybackCurve maps the day's newly created wealth to the fraction of the
// treasury spent repurchasing MEME. The curve is logistic: quiet days spend
// near MinRate, productive days approach MaxRate, and neither bound is ever
// reached exactly.
type BuybackCurve struct {
	MinRate   float64 `yaml:"min_rate" json:"min_rate"`
	MaxRate   float64 `yaml:"max_rate" json:"max_rate"`
	Midpoint  float64 `yaml:"midpoint" json:"midpoint"`
	Steepness float64 `yaml:"steepness" json:"steepness"`
}

// DefaultBuybackCurve returns the tuning used in production.
func DefaultBuybackCurve() BuybackCurve {
	return BuybackCurve{
		MinRate:   0.02,
		MaxRate:   0.08,
		Midpoint:  2500,
		Steepness: 0.0015,
	}
}

// Fraction evaluates the curve at the given daily new wealth.
// Strictly increasing in its argument.
func (c BuybackCurve) Fraction(dailyNewWealth float64) float64 {
	return c.MinRate + (c.MaxRate-c.MinRate)/(1+math.Exp(-c.Steepness*(dailyNewWealth-c.Midpoint)))
}
