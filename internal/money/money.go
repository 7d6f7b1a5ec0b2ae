// Package money holds the rounding rules applied to every reported figure.
package money

import (
	"github.com/shopspring/decimal"
)

// Round rounds v to places decimal digits, half away from zero. Rounding goes
// through a decimal so that values like 1.005 round the way they read.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round2 rounds a monetary amount to cents.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Whole formats v rounded to an integer, for human-readable tip text.
func Whole(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(0)
}

// Sum adds values exactly and returns the float result.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}
