// Package units provides shared constants and conversions for spectral power units
package units

import "math"

// Unit constants
const (
	Linear = "linear"
	DB     = "dB"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Linear, DB}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "linear, dB"
}

// DBToLinear converts a decibel power value to linear units. NaN passes through.
func DBToLinear(v float64) float64 {
	return math.Pow(10, v/10)
}

// LinearToDB converts a linear power value to decibels.
// Non-positive values have no decibel representation and map to NaN.
func LinearToDB(v float64) float64 {
	if !(v > 0) {
		return math.NaN()
	}
	return 10 * math.Log10(v)
}

// ToLinear converts a value expressed in unit to linear power.
// Unknown units are treated as already linear.
func ToLinear(v float64, unit string) float64 {
	switch unit {
	case DB:
		return DBToLinear(v)
	default:
		return v
	}
}

// ToLinearSlice converts every element of vs in place from unit to linear power.
func ToLinearSlice(vs []float64, unit string) {
	if unit != DB {
		return
	}
	for i, v := range vs {
		vs[i] = ToLinear(v, unit)
	}
}
