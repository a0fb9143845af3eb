package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/withdrawal"
)

type balanceResponse struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
}

type ledgerEntryResponse struct {
	ID        int64           `json:"id"`
	Currency  string          `json:"currency"`
	Delta     decimal.Decimal `json:"delta"`
	Reason    string          `json:"reason"`
	RefType   string          `json:"ref_type,omitempty"`
	RefID     *int64          `json:"ref_id,omitempty"`
	Note      string          `json:"note,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type withdrawalResponse struct {
	ID                 int64           `json:"id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	DestinationAddress string          `json:"destination_address"`
	Status             string          `json:"status"`
	TxHash             *string         `json:"tx_hash,omitempty"`
	CreatedAt          string          `json:"created_at"`
}

type marketResponse struct {
	ID         int64            `json:"id"`
	GiftID     int64            `json:"gift_id"`
	GiftName   string           `json:"gift_name"`
	ExpiryDays int              `json:"expiry_days"`
	IsActive   bool             `json:"is_active"`
	Tradable   bool             `json:"tradable"`
	PriceTON   *decimal.Decimal `json:"price_ton"`
	PriceUSDT  *decimal.Decimal `json:"price_usdt"`
}

type contractResponse struct {
	ID                int64            `json:"id"`
	MarketID          int64            `json:"market_id"`
	EmitterID         int64            `json:"emitter_id"`
	BuyerID           *int64           `json:"buyer_id"`
	Side              string           `json:"side"`
	Qty               decimal.Decimal  `json:"qty"`
	EntryPrice        decimal.Decimal  `json:"entry_price"`
	Currency          string           `json:"currency"`
	Status            string           `json:"status"`
	MarginEmitter     decimal.Decimal  `json:"margin_emitter"`
	MarginBuyer       decimal.Decimal  `json:"margin_buyer"`
	CreatedAt         string           `json:"created_at"`
	ClosedAt          *string          `json:"closed_at"`
	ClosePrice        *decimal.Decimal `json:"close_price"`
	LiquidationReason *string          `json:"liquidation_reason,omitempty"`
}

func toBalanceResponse(b model.Balance) balanceResponse {
	return balanceResponse{
		Currency:  string(b.Currency),
		Available: b.Available,
		Reserved:  b.Reserved,
	}
}

func toLedgerEntryResponse(e model.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:        e.ID,
		Currency:  string(e.Currency),
		Delta:     e.Delta,
		Reason:    string(e.Reason),
		RefType:   e.RefType,
		RefID:     e.RefID,
		Note:      e.Note,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// toWithdrawalResponse маскирует адрес назначения.
func toWithdrawalResponse(w model.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:                 w.ID,
		Amount:             w.Amount,
		Currency:           string(w.Currency),
		DestinationAddress: withdrawal.MaskAddress(w.DestinationAddress),
		Status:             string(w.Status),
		TxHash:             w.TxHash,
		CreatedAt:          w.CreatedAt.Format(time.RFC3339),
	}
}

func toMarketResponse(m model.Market) marketResponse {
	return marketResponse{
		ID:         m.ID,
		GiftID:     m.GiftID,
		GiftName:   m.GiftName,
		ExpiryDays: m.ExpiryDays,
		IsActive:   m.IsActive,
		Tradable:   m.Tradable(),
		PriceTON:   m.PriceTON,
		PriceUSDT:  m.PriceUSDT,
	}
}

func toContractResponse(c model.FuturesContract) contractResponse {
	resp := contractResponse{
		ID:                c.ID,
		MarketID:          c.MarketID,
		EmitterID:         c.EmitterID,
		BuyerID:           c.BuyerID,
		Side:              string(c.Side),
		Qty:               c.Qty,
		EntryPrice:        c.EntryPrice,
		Currency:          string(c.Currency),
		Status:            string(c.Status),
		MarginEmitter:     c.MarginEmitter,
		MarginBuyer:       c.MarginBuyer,
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
		ClosePrice:        c.ClosePrice,
		LiquidationReason: c.LiquidationReason,
	}
	if c.ClosedAt != nil {
		s := c.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &s
	}
	return resp
}

func toContractResponses(cs []model.FuturesContract) []contractResponse {
	resp := make([]contractResponse, 0, len(cs))
	for _, c := range cs {
		resp = append(resp, toContractResponse(c))
	}
	return resp
}
