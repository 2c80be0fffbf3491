// Package round provides decimal rounding of float64 values.
//
// Fixed rounds on the exact binary value of its argument, so 0.15 (stored as
// 0.1499999...) rounds down to 0.1 while 0.25 (exact) rounds up to 0.3. Ties
// round away from zero.
package round

import (
	"math"
	"math/big"
)

var half = big.NewFloat(0.5)

// Fixed rounds v to the given number of decimal places. NaN and infinities
// become 0 and the result is never negative zero.
func Fixed(v float64, places int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if places < 0 {
		places = 0
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)

	x := new(big.Float).SetPrec(256).SetFloat64(math.Abs(v))
	x.Mul(x, new(big.Float).SetPrec(256).SetInt(scale))

	n, _ := x.Int(nil)
	frac := new(big.Float).SetPrec(256).Sub(x, new(big.Float).SetPrec(256).SetInt(n))
	if frac.Cmp(half) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	// n / scale is a correctly rounded quotient, the same value a decimal
	// string such as "2.7" parses to.
	r, _ := new(big.Rat).SetFrac(n, scale).Float64()
	if r == 0 {
		return 0
	}
	if v < 0 {
		return -r
	}
	return r
}
