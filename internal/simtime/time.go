// Package simtime provides the exact decimal simulation time used by event
// logs. Values are immutable and never lose precision, except through the
// explicitly approximate float conversions used for pixel coordinates.
package simtime

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Time is an immutable arbitrary-precision decimal simulation time. The zero
// value is 0 s.
type Time struct {
	d decimal.Decimal
}

// Rounding selects the direction used by RoundSignificant.
type Rounding int

const (
	// Floor rounds towards negative infinity.
	Floor Rounding = iota
	// Ceiling rounds towards positive infinity.
	Ceiling
)

// Parse reads a decimal simulation time such as "12.5", "0.000001" or "3e-9".
// Trailing zeros are kept as part of the value's scale.
func Parse(s string) (Time, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Time{}, fmt.Errorf("invalid simulation time %q: %w", s, err)
	}
	return Time{d: d}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// constants and tests.
func MustParse(s string) Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FromInt returns the time n seconds.
func FromInt(n int64) Time {
	return Time{d: decimal.NewFromInt(n)}
}

// Pow10 returns 10^exp.
func Pow10(exp int32) Time {
	return New(big.NewInt(1), exp)
}

// FromDecimal wraps an existing decimal value.
func FromDecimal(d decimal.Decimal) Time {
	return Time{d: d}
}

// New builds the time coefficient * 10^exponent.
func New(coefficient *big.Int, exponent int32) Time {
	return Time{d: decimal.NewFromBigInt(coefficient, exponent)}
}

// ApproximateFromFloat converts a float64 into the shortest decimal that
// round-trips to the same float. The result is only as exact as f itself.
func ApproximateFromFloat(f float64) Time {
	return Time{d: decimal.NewFromFloat(f)}
}

// Decimal returns the underlying decimal value.
func (t Time) Decimal() decimal.Decimal {
	return t.d
}

// ApproximateFloat64 returns the nearest float64. Only use it for pixel math.
func (t Time) ApproximateFloat64() float64 {
	return t.d.InexactFloat64()
}

// Cmp compares t and u and returns -1, 0 or +1.
func (t Time) Cmp(u Time) int {
	return t.d.Cmp(u.d)
}

// Less reports whether t < u.
func (t Time) Less(u Time) bool {
	return t.d.Cmp(u.d) < 0
}

// Equal reports whether t and u denote the same number, regardless of scale.
func (t Time) Equal(u Time) bool {
	return t.d.Cmp(u.d) == 0
}

// IsZero reports whether t is 0.
func (t Time) IsZero() bool {
	return t.d.IsZero()
}

// Sign returns -1, 0 or +1.
func (t Time) Sign() int {
	return t.d.Sign()
}

// Add returns t + u.
func (t Time) Add(u Time) Time {
	return Time{d: t.d.Add(u.d)}
}

// Sub returns t - u.
func (t Time) Sub(u Time) Time {
	return Time{d: t.d.Sub(u.d)}
}

// Abs returns |t|.
func (t Time) Abs() Time {
	return Time{d: t.d.Abs()}
}

// ApproximateMul returns t * f, where f is converted to decimal first.
func (t Time) ApproximateMul(f float64) Time {
	return Time{d: t.d.Mul(decimal.NewFromFloat(f))}
}

// Quantize rounds t to a multiple of 10^exp in the given direction.
func (t Time) Quantize(exp int32, mode Rounding) Time {
	if mode == Floor {
		return Time{d: t.d.RoundFloor(-exp)}
	}
	return Time{d: t.d.RoundCeil(-exp)}
}

// Min returns the smaller of t and u.
func Min(t, u Time) Time {
	if u.Less(t) {
		return u
	}
	return t
}

// Max returns the larger of t and u.
func Max(t, u Time) Time {
	if t.Less(u) {
		return u
	}
	return t
}

// Coefficient returns the unscaled value; t == Coefficient * 10^Exponent.
func (t Time) Coefficient() *big.Int {
	return t.d.Coefficient()
}

// Exponent returns the power of ten applied to Coefficient.
func (t Time) Exponent() int32 {
	return t.d.Exponent()
}

// String returns the canonical plain notation without trailing zeros.
func (t Time) String() string {
	return t.d.String()
}

// PlainString returns the plain notation keeping the value's scale, so
// "1.000" stays "1.000".
func (t Time) PlainString() string {
	if exp := t.d.Exponent(); exp < 0 {
		return t.d.StringFixed(-exp)
	}
	return t.d.String()
}

// MarshalText implements encoding.TextMarshaler.
func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.PlainString()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Time) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
