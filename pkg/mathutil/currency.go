// Package mathutil provides the small numeric helpers shared by the
// estimation engine and the validator.
package mathutil

import (
	"math"

	"github.com/iwvelando/mro-estimator/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// IsZero checks if a value is effectively zero (within one cent).
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// ApplyPercentage applies a percentage (0-100) to a value.
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// Ratio divides value by total, returning 0 instead of NaN or Inf when
// total is zero to the cent.
func Ratio(value, total float64) float64 {
	if IsZero(total) {
		return 0
	}
	return value / total
}

// NonNegative clamps negative values and non-finite results to zero.
func NonNegative(val float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
		return 0
	}
	return val
}

// Finite reports whether val is neither NaN nor infinite.
func Finite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}
