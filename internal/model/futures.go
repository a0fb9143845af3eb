package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side описывает направление, заявленное эмитентом контракта.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide разбирает направление контракта.
func ParseSide(raw string) (Side, error) {
	s := Side(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SideLong, SideShort:
		return s, nil
	}
	return "", InvalidInputf("side must be long or short, got %q", raw)
}

// ContractStatus описывает состояние фьючерсного контракта.
type ContractStatus string

const (
	ContractStatusOpen       ContractStatus = "open"
	ContractStatusTaken      ContractStatus = "taken"
	ContractStatusClosed     ContractStatus = "closed"
	ContractStatusLiquidated ContractStatus = "liquidated"
)

// Takeable сообщает, может ли контракт быть принят покупателем.
func (s ContractStatus) Takeable() bool {
	switch s {
	case ContractStatusOpen:
		return true
	case ContractStatusTaken, ContractStatusClosed, ContractStatusLiquidated:
		return false
	}
	return false
}

// Settleable сообщает, может ли контракт быть закрыт.
func (s ContractStatus) Settleable() bool {
	switch s {
	case ContractStatusOpen, ContractStatusTaken:
		return true
	case ContractStatusClosed, ContractStatusLiquidated:
		return false
	}
	return false
}

// FuturesContract описывает двусторонний маржинальный контракт между эмитентом и покупателем.
type FuturesContract struct {
	ID                int64
	MarketID          int64
	EmitterID         int64
	BuyerID           *int64
	Side              Side
	Qty               decimal.Decimal
	EntryPrice        decimal.Decimal
	Currency          Currency
	Status            ContractStatus
	MarginEmitter     decimal.Decimal
	MarginBuyer       decimal.Decimal
	CreatedAt         time.Time
	ClosedAt          *time.Time
	ClosePrice        *decimal.Decimal
	LiquidationReason *string
}

// Notional возвращает маржу каждой стороны: qty * entry_price, округлённую до Scale знаков.
func (c FuturesContract) Notional() decimal.Decimal {
	return RoundAmount(c.Qty.Mul(c.EntryPrice))
}
