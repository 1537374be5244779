package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point precision used by the farm and its tokens.
const TokenDecimals uint8 = 18

// Common errors
var (
	ErrEmptyAmount     = errors.New("asset: empty amount")
	ErrInvalidAmount   = errors.New("asset: invalid decimal amount")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrZeroAmount      = errors.New("asset: amount must be greater than zero")
	ErrTooManyDecimals = errors.New("asset: too many decimal places")
)

// Amount is an immutable fixed-point quantity. The raw value is always in
// base units (wei for 18-decimal tokens).
type Amount struct {
	raw      *big.Int
	decimals uint8
}

// NewAmount creates an Amount from raw base units.
func NewAmount(raw *big.Int, decimals uint8) Amount {
	if raw == nil {
		raw = new(big.Int)
	}
	return Amount{
		raw:      new(big.Int).Set(raw),
		decimals: decimals,
	}
}

// FromWei creates an 18-decimal Amount.
func FromWei(raw *big.Int) Amount {
	return NewAmount(raw, TokenDecimals)
}

// Raw returns a copy of the base-unit value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Decimals returns the precision.
func (a Amount) Decimals() uint8 {
	return a.decimals
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a.raw != nil && a.raw.Sign() > 0
}

// Cmp compares raw values. Amounts of different precision are compared
// by their decimal value.
func (a Amount) Cmp(b Amount) int {
	if a.decimals == b.decimals {
		return a.Raw().Cmp(b.Raw())
	}
	return a.ToDecimal().Cmp(b.ToDecimal())
}

// ToDecimal converts the amount to decimal.Decimal.
// This is a BOUNDARY function - use for display and view models.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.decimals))
}

// ToFloat64 converts the amount to float64.
// WARNING: Use only for display and projections, NOT for on-chain amounts.
func (a Amount) ToFloat64() float64 {
	f, _ := a.ToDecimal().Float64()
	return f
}

// String returns the shortest exact decimal representation ("42.5", "0").
func (a Amount) String() string {
	return a.ToDecimal().String()
}

// ParseDecimal scales d into base units.
func ParseDecimal(d decimal.Decimal, decimals uint8) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}

	return NewAmount(scaled.BigInt(), decimals), nil
}

// ParseUnits parses user input such as "1.5" into base units. Exponent
// notation and surrounding whitespace are rejected.
func ParseUnits(s string, decimals uint8) (Amount, error) {
	if s == "" {
		return Amount{}, ErrEmptyAmount
	}
	if strings.TrimSpace(s) != s || strings.ContainsAny(s, "eE") {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return ParseDecimal(d, decimals)
}

// ParsePositiveUnits is ParseUnits that also rejects zero.
func ParsePositiveUnits(s string, decimals uint8) (Amount, error) {
	a, err := ParseUnits(s, decimals)
	if err != nil {
		return Amount{}, err
	}
	if !a.IsPositive() {
		return Amount{}, ErrZeroAmount
	}
	return a, nil
}

// FormatUnits converts base units to a float64, mirroring how fixed-point
// contract values are shown.
func FormatUnits(raw *big.Int, decimals uint8) float64 {
	return NewAmount(raw, decimals).ToFloat64()
}

// MarshalText encodes the amount as its shortest exact decimal.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
