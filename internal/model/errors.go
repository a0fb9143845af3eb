package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput возвращается при некорректной сумме, валюте, адресе или количестве.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds возвращается, если доступного баланса не хватает.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound возвращается, если пользователь, рынок или контракт отсутствует либо находится в неподходящем состоянии.
	ErrNotFound = errors.New("not found")
	// ErrSelfTrade возвращается при попытке эмитента принять собственный контракт.
	ErrSelfTrade = errors.New("self trade")
	// ErrMarketUnavailable возвращается для неактивного рынка или рынка без цены.
	ErrMarketUnavailable = errors.New("market unavailable")
	// ErrDuplicate сигнализирует об идемпотентном повторе.
	ErrDuplicate = errors.New("duplicate")
)

// InsufficientFundsError описывает неудавшуюся проверку баланса.
type InsufficientFundsError struct {
	UserID    int64
	Currency  Currency
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: user=%d currency=%s available=%s requested=%s",
		e.UserID, e.Currency, e.Available.String(), e.Requested.String())
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// ErrorKind — закрытый список категорий ошибок ядра.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidInput
	KindInsufficientFunds
	KindNotFound
	KindSelfTrade
	KindMarketUnavailable
	KindDuplicate
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindNotFound:
		return "not_found"
	case KindSelfTrade:
		return "self_trade"
	case KindMarketUnavailable:
		return "market_unavailable"
	case KindDuplicate:
		return "duplicate"
	case KindInternal:
		return "internal"
	}
	return "internal"
}

// KindOf относит ошибку к одной из категорий. Всё нераспознанное считается внутренней ошибкой.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrSelfTrade):
		return KindSelfTrade
	case errors.Is(err, ErrMarketUnavailable):
		return KindMarketUnavailable
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	}
	return KindInternal
}

// InvalidInputf формирует ошибку ввода с пояснением.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
