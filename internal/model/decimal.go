package model

import "github.com/shopspring/decimal"

// Scale — число дробных знаков денежных величин, совпадает с точностью токенов в сети.
const Scale = 18

// MaxIntegerDigits — число знаков целой части, которое помещается в NUMERIC(36,18).
const MaxIntegerDigits = 18

// RoundAmount округляет сумму до Scale знаков.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// FitsScale сообщает, представима ли сумма без потерь с Scale дробными знаками.
// Показатель степени проверяется до округления: Round строит 10^|exp|.
func FitsScale(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	exp := int64(d.Exponent())
	if exp >= -Scale {
		return true
	}
	// лишние дробные знаки могут быть только хвостовыми нулями коэффициента
	if -exp-Scale >= int64(d.NumDigits()) {
		return false
	}
	return d.Equal(d.Round(Scale))
}

// IntegerDigits возвращает число знаков целой части значения.
func IntegerDigits(d decimal.Decimal) int64 {
	if d.IsZero() {
		return 0
	}
	n := int64(d.NumDigits()) + int64(d.Exponent())
	if n < 0 {
		return 0
	}
	return n
}

// RoundsToZero сообщает, что ненулевое d обратится в ноль после RoundAmount.
// Округление выполняется только для величин порядка 10^-Scale.
func RoundsToZero(d decimal.Decimal) bool {
	if d.IsZero() {
		return false
	}
	magnitude := int64(d.NumDigits()) + int64(d.Exponent())
	switch {
	case magnitude < -Scale:
		return true
	case magnitude > -Scale:
		return false
	}
	return RoundAmount(d).IsZero()
}

// Representable сообщает, помещается ли сумма в денежную колонку: не более MaxIntegerDigits знаков целой части
// и Scale дробных.
func Representable(d decimal.Decimal) bool {
	return IntegerDigits(d) <= MaxIntegerDigits && FitsScale(d)
}
