package simtime

import (
	"math/big"
	"strings"
)

func ten() *big.Int { return big.NewInt(10) }

// Digits returns the number of decimal digits in the coefficient, including
// trailing zeros. Zero has one digit.
func (t Time) Digits() int {
	return digitCount(t.d.Coefficient())
}

// Precision returns the number of significant digits once trailing zeros are
// stripped: 1.2000 and 0.0012 both have precision 2. Zero has precision 1.
func (t Time) Precision() int {
	c, _ := stripTrailingZeros(t.d.Coefficient(), t.d.Exponent())
	return digitCount(c)
}

// LastDigit returns the least significant digit of the coefficient.
func (t Time) LastDigit() int {
	c := t.d.Coefficient()
	c.Abs(c)
	return int(new(big.Int).Rem(c, ten()).Int64())
}

// RoundSignificant rounds t to at most precision significant digits in the
// given direction. The result keeps exactly precision digits in its
// coefficient (1.0004 floored to 4 digits is 1.000), unless t already has
// fewer digits, in which case t is returned unchanged. Precision below 1 is
// treated as 1.
func (t Time) RoundSignificant(precision int, mode Rounding) Time {
	if precision < 1 {
		precision = 1
	}
	coef := t.d.Coefficient()
	exp := t.d.Exponent()
	n := digitCount(coef)
	if n <= precision {
		return t
	}
	drop := n - precision
	divisor := new(big.Int).Exp(ten(), big.NewInt(int64(drop)), nil)
	q, r := new(big.Int).QuoRem(coef, divisor, new(big.Int))
	if r.Sign() != 0 {
		// QuoRem truncates towards zero; adjust for the requested direction.
		switch {
		case mode == Floor && coef.Sign() < 0:
			q.Sub(q, big.NewInt(1))
		case mode == Ceiling && coef.Sign() > 0:
			q.Add(q, big.NewInt(1))
		}
	}
	exp += int32(drop)
	// A carry such as 999 -> 1000 adds a digit; the dropped digit is a zero.
	if digitCount(q) > precision {
		q.Quo(q, ten())
		exp++
	}
	return New(q, exp)
}

// withCoefficient returns coef * 10^exp of the same scale as t.
func (t Time) withCoefficient(coef *big.Int) Time {
	return New(coef, t.d.Exponent())
}

// ShortestWithin returns the value with the fewest significant digits that
// lies within [tMin, tMax], starting from t. It progressively lowers the
// rounding precision of t from both the floor and the ceiling side, then
// nudges the last digit towards 5 or an even digit when that still fits. On
// a tie in digit count a trailing 5 wins over an even digit, and the floor
// candidate wins over the ceiling candidate.
//
// If t falls outside the range the range is widened to include it.
func ShortestWithin(t, tMin, tMax Time) Time {
	if t.Less(tMin) {
		tMin = t
	}
	if tMax.Less(t) {
		tMax = t
	}

	minPrecision := tMin.Precision()
	maxPrecision := tMax.Precision()
	deltaPrecision := tMax.Sub(tMin).Precision()
	precision := 1 + max(minPrecision-deltaPrecision, maxPrecision-deltaPrecision)
	precision = max(1, precision)

	bestFloor := t
	for p := precision; p > 0; p-- {
		rounded := t.RoundSignificant(p, Floor)
		if rounded.Less(tMin) {
			break
		}
		bestFloor = rounded
	}
	bestCeiling := t
	for p := precision; p > 0; p-- {
		rounded := t.RoundSignificant(p, Ceiling)
		if tMax.Less(rounded) {
			break
		}
		bestCeiling = rounded
	}

	bestFloor = bestLastDigit(bestFloor, tMin, tMax)
	bestCeiling = bestLastDigit(bestCeiling, tMin, tMax)

	floorPrecision, ceilingPrecision := bestFloor.Precision(), bestCeiling.Precision()
	switch {
	case floorPrecision < ceilingPrecision:
		return bestFloor
	case floorPrecision > ceilingPrecision:
		return bestCeiling
	}
	floorDigit, ceilingDigit := bestFloor.strippedLastDigit(), bestCeiling.strippedLastDigit()
	switch {
	case floorDigit == 5:
		return bestFloor
	case ceilingDigit == 5:
		return bestCeiling
	case floorDigit%2 == 0:
		return bestFloor
	case ceilingDigit%2 == 0:
		return bestCeiling
	}
	return bestFloor
}

// bestLastDigit replaces the last digit of v with 5, or else clears its low
// bit to make it even, when the replacement stays within [tMin, tMax].
func bestLastDigit(v, tMin, tMax Time) Time {
	coef := v.d.Coefficient()
	if coef.Sign() < 0 {
		return v
	}
	five := new(big.Int).Quo(coef, ten())
	five.Mul(five, ten())
	five.Add(five, big.NewInt(5))
	if candidate := v.withCoefficient(five); within(candidate, tMin, tMax) {
		return candidate
	}
	even := new(big.Int).SetBit(new(big.Int).Set(coef), 0, 0)
	if candidate := v.withCoefficient(even); within(candidate, tMin, tMax) {
		return candidate
	}
	return v
}

func within(v, tMin, tMax Time) bool {
	return !v.Less(tMin) && !tMax.Less(v)
}

func (t Time) strippedLastDigit() int {
	c, _ := stripTrailingZeros(t.d.Coefficient(), t.d.Exponent())
	c.Abs(c)
	return int(new(big.Int).Rem(c, ten()).Int64())
}

// CommonPrefix returns the longest common leading part of the plain decimal
// notations of a and b once their fractional parts are padded to the same
// length. It is used to factor a shared prefix out of tick labels.
func CommonPrefix(a, b Time) string {
	sa, sb := a.PlainString(), b.PlainString()
	fa, fb := fractionLen(sa), fractionLen(sb)
	switch {
	case fa < fb:
		sa = padFraction(sa, fb-fa)
	case fb < fa:
		sb = padFraction(sb, fa-fb)
	}
	if strings.IndexByte(sa, '.') != strings.IndexByte(sb, '.') {
		return ""
	}
	n := 0
	for n < len(sa) && n < len(sb) && sa[n] == sb[n] {
		n++
	}
	return sa[:n]
}

func fractionLen(s string) int {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func padFraction(s string, n int) string {
	if !strings.Contains(s, ".") {
		s += "."
	}
	return s + strings.Repeat("0", n)
}

func digitCount(c *big.Int) int {
	if c.Sign() == 0 {
		return 1
	}
	return len(new(big.Int).Abs(c).String())
}

func stripTrailingZeros(c *big.Int, exp int32) (*big.Int, int32) {
	c = new(big.Int).Set(c)
	if c.Sign() == 0 {
		return c, 0
	}
	r := new(big.Int)
	for {
		q, m := new(big.Int).QuoRem(c, ten(), r)
		if m.Sign() != 0 {
			return c, exp
		}
		c = q
		exp++
	}
}
