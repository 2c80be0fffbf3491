package round

import "math"

// HalfUp rounds v to the nearest integer with ties rounded toward positive
// infinity, so -2.5 becomes -2 and 2.5 becomes 3.
func HalfUp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := math.Round(v)
	if v-r == 0.5 {
		r++
	}
	if r == 0 {
		return 0
	}
	return r
}
