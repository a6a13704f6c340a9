package money

import (
	"fmt"

	"hammerdrop-auction-service/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of fractional digits in a major unit (cents)
const MinorUnitExponent int32 = 2

var (
	minorPerMajor = decimal.New(1, MinorUnitExponent)
	maxMinor      = decimal.NewFromInt(1 << 62)
)

// FromDecimal converts a major-unit amount into minor units.
// Amounts must be positive and carry no more than MinorUnitExponent fractional digits.
func FromDecimal(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, shared.ErrInvalidAmount
	}

	minor := amount.Mul(minorPerMajor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than %d fractional digits", shared.ErrInvalidAmount, MinorUnitExponent)
	}
	if minor.GreaterThan(maxMinor) {
		return 0, shared.ErrInvalidAmount
	}

	return minor.IntPart(), nil
}

// Parse converts a decimal string such as "12.50" into minor units
func Parse(s string) (int64, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrInvalidAmount, err)
	}
	return FromDecimal(amount)
}

// FromFloat converts a JSON number in major units into minor units.
// The float is first rounded to the minor-unit precision so values such as
// 0.1+0.2 do not fail on representation error.
func FromFloat(f float64) (int64, error) {
	amount := decimal.NewFromFloat(f)
	rounded := amount.Round(MinorUnitExponent)
	if !amount.Sub(rounded).Abs().LessThan(decimal.New(1, -(MinorUnitExponent + 4))) {
		return 0, fmt.Errorf("%w: more than %d fractional digits", shared.ErrInvalidAmount, MinorUnitExponent)
	}
	return FromDecimal(rounded)
}

// Format renders minor units as a major-unit decimal string
func Format(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
