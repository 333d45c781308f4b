package utils

import "math"

// RoundFloat rounds a float64 to the specified number of decimal places.
// Used for volunteer-time balances so repeated credits don't accumulate
// binary noise.
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
