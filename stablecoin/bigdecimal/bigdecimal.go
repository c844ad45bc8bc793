// Package bigdecimal implements the fixed-point amount type used for every
// token quantity: an exact magnitude paired with the number of decimals the
// token supports.
package bigdecimal

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidFormat is returned for anything that is not a plain decimal literal.
	ErrInvalidFormat = errors.New("invalid decimal format")
	// ErrTooManyDecimals is returned when a value has more fractional digits than allowed.
	ErrTooManyDecimals = errors.New("value has more fractional digits than allowed")
	// ErrNegativeDecimals is returned for a negative scale.
	ErrNegativeDecimals = errors.New("decimals must not be negative")
)

// Only plain literals are accepted: no exponent, no sign other than a leading
// minus, no dangling separator.
var literalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// BigDecimal is an exact decimal value with a declared scale. Values with
// different scales compare and add by rescaling to the larger one.
type BigDecimal struct {
	value    decimal.Decimal
	decimals int32
}

// Zero returns zero at the given scale.
func Zero(decimals int32) BigDecimal {
	return BigDecimal{value: decimal.Zero, decimals: max(decimals, 0)}
}

// FromString parses value at the given scale. The value may have fewer
// fractional digits than decimals, never more.
func FromString(value string, decimals int32) (BigDecimal, error) {
	if decimals < 0 {
		return BigDecimal{}, ErrNegativeDecimals
	}

	d, err := parseLiteral(value)
	if err != nil {
		return BigDecimal{}, err
	}

	if fractionalDigits(d) > int(decimals) {
		return BigDecimal{}, fmt.Errorf("%w: %q exceeds %d decimals", ErrTooManyDecimals, value, decimals)
	}

	return BigDecimal{value: d, decimals: decimals}, nil
}

// Parse parses value and infers the scale from its fractional part.
func Parse(value string) (BigDecimal, error) {
	d, err := parseLiteral(value)
	if err != nil {
		return BigDecimal{}, err
	}

	scale := 0
	if idx := strings.IndexByte(strings.TrimSpace(value), '.'); idx >= 0 {
		scale = len(strings.TrimSpace(value)) - idx - 1
	}

	return BigDecimal{value: d, decimals: int32(scale)}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(value string) BigDecimal {
	b, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return b
}

// FromUnits builds a value from its smallest-unit integer representation,
// e.g. FromUnits(1050, 2) is 10.5.
func FromUnits(units *big.Int, decimals int32) BigDecimal {
	if units == nil {
		return Zero(decimals)
	}

	decimals = max(decimals, 0)

	return BigDecimal{value: decimal.NewFromBigInt(units, -decimals), decimals: decimals}
}

// FromInt64Units is FromUnits for int64 amounts as reported by the mirror node.
func FromInt64Units(units int64, decimals int32) BigDecimal {
	return FromUnits(big.NewInt(units), decimals)
}

// HasMoreDecimals reports whether the literal value carries more fractional
// digits than decimals. Invalid literals report false and fail later parsing.
func HasMoreDecimals(value string, decimals int32) bool {
	d, err := parseLiteral(value)
	if err != nil {
		return false
	}

	return fractionalDigits(d) > int(decimals)
}

func parseLiteral(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if !literalPattern.MatchString(trimmed) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidFormat, value)
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	return d, nil
}

// fractionalDigits counts significant digits after the separator.
func fractionalDigits(d decimal.Decimal) int {
	s := d.String()

	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}

	return len(s) - idx - 1
}

// Decimals returns the declared scale.
func (b BigDecimal) Decimals() int32 { return b.decimals }

// Decimal returns the underlying exact value.
func (b BigDecimal) Decimal() decimal.Decimal { return b.value }

// FractionalDigits returns the number of significant fractional digits.
func (b BigDecimal) FractionalDigits() int { return fractionalDigits(b.value) }

// FitsDecimals reports whether the value is representable with decimals.
func (b BigDecimal) FitsDecimals(decimals int32) bool {
	return b.FractionalDigits() <= int(decimals)
}

// ToUnits returns the value in smallest units at the declared scale.
func (b BigDecimal) ToUnits() *big.Int {
	return b.value.Shift(b.decimals).BigInt()
}

// SetDecimals rescales the value. Shrinking below the significant
// fractional digits is an error.
func (b BigDecimal) SetDecimals(decimals int32) (BigDecimal, error) {
	if decimals < 0 {
		return BigDecimal{}, ErrNegativeDecimals
	}

	if !b.FitsDecimals(decimals) {
		return BigDecimal{}, fmt.Errorf("%w: %s exceeds %d decimals", ErrTooManyDecimals, b.String(), decimals)
	}

	return BigDecimal{value: b.value, decimals: decimals}, nil
}

// String renders the shortest exact representation, without trailing zeros.
func (b BigDecimal) String() string {
	return b.value.String()
}

// FixedString renders exactly Decimals() fractional digits.
func (b BigDecimal) FixedString() string {
	return b.value.StringFixed(b.decimals)
}

// Cmp compares b and other: -1, 0 or +1.
func (b BigDecimal) Cmp(other BigDecimal) int { return b.value.Cmp(other.value) }

// Equal reports numeric equality regardless of scale.
func (b BigDecimal) Equal(other BigDecimal) bool { return b.Cmp(other) == 0 }

// GreaterThan reports b > other.
func (b BigDecimal) GreaterThan(other BigDecimal) bool { return b.Cmp(other) > 0 }

// GreaterThanOrEqual reports b >= other.
func (b BigDecimal) GreaterThanOrEqual(other BigDecimal) bool { return b.Cmp(other) >= 0 }

// LessThan reports b < other.
func (b BigDecimal) LessThan(other BigDecimal) bool { return b.Cmp(other) < 0 }

// LessThanOrEqual reports b <= other.
func (b BigDecimal) LessThanOrEqual(other BigDecimal) bool { return b.Cmp(other) <= 0 }

// IsZero reports b == 0.
func (b BigDecimal) IsZero() bool { return b.value.IsZero() }

// IsNegative reports b < 0.
func (b BigDecimal) IsNegative() bool { return b.value.IsNegative() }

// IsPositive reports b > 0.
func (b BigDecimal) IsPositive() bool { return b.value.IsPositive() }

// Add returns b + other at the larger of the two scales.
func (b BigDecimal) Add(other BigDecimal) BigDecimal {
	return BigDecimal{value: b.value.Add(other.value), decimals: max(b.decimals, other.decimals)}
}

// Sub returns b - other at the larger of the two scales.
func (b BigDecimal) Sub(other BigDecimal) BigDecimal {
	return BigDecimal{value: b.value.Sub(other.value), decimals: max(b.decimals, other.decimals)}
}

// Sum adds values, starting from Zero(decimals).
func Sum(decimals int32, values ...BigDecimal) BigDecimal {
	total := Zero(decimals)
	for _, v := range values {
		total = total.Add(v)
	}

	return total
}

// MarshalJSON encodes the value as a JSON string to keep precision.
func (b BigDecimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts a JSON string or number and infers the scale. A
// JSON null leaves b unchanged.
func (b *BigDecimal) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	raw := strings.Trim(string(data), `"`)

	parsed, err := Parse(raw)
	if err != nil {
		return err
	}

	*b = parsed

	return nil
}

// Value implements driver.Valuer.
func (b BigDecimal) Value() (driver.Value, error) {
	return b.String(), nil
}
