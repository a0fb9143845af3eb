package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// MaxNumberLength ограничивает длину числа в запросе: знак, 18+18 цифр, точка и запас на экспоненту.
const MaxNumberLength = 64

// ParseDecimal разбирает десятичное число из строки. Значение должно помещаться в NUMERIC(36,18):
// не более model.MaxIntegerDigits знаков целой части и model.Scale дробных.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, model.InvalidInputf("empty number")
	}
	if len(s) > MaxNumberLength {
		return decimal.Zero, model.InvalidInputf("number is longer than %d characters", MaxNumberLength)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.InvalidInputf("invalid number %q", raw)
	}
	if model.IntegerDigits(d) > model.MaxIntegerDigits {
		return decimal.Zero, model.InvalidInputf("number %q has more than %d integer digits", raw, model.MaxIntegerDigits)
	}
	if !model.FitsScale(d) {
		return decimal.Zero, model.InvalidInputf("number %q has more than %d fractional digits", raw, model.Scale)
	}
	return d, nil
}

// ParseAmount разбирает строго положительную денежную сумму.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, model.InvalidInputf("amount must be positive, got %s", d)
	}
	return d, nil
}
