package futures

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// Settlement описывает выплаты по закрываемому контракту.
type Settlement struct {
	ClosePrice decimal.Decimal
	// Move — относительное изменение цены, ноль при нулевой цене входа.
	Move decimal.Decimal
	// PnL — |close - entry| * qty.
	PnL           decimal.Decimal
	EmitterPayout decimal.Decimal
	BuyerPayout   decimal.Decimal
}

// ComputeSettlement считает выплаты без учёта направления контракта: рост цены оплачивается эмитенту,
// падение покупателю. Маржа обеих сторон возвращается всегда. Без покупателя его доля не выплачивается.
func ComputeSettlement(c model.FuturesContract, closePrice decimal.Decimal) Settlement {
	entry := c.EntryPrice

	move := decimal.Zero
	if !entry.IsZero() {
		move = closePrice.Sub(entry).DivRound(entry, model.Scale)
	}

	pnl := model.RoundAmount(closePrice.Sub(entry).Abs().Mul(c.Qty))

	emitter := c.MarginEmitter
	buyer := c.MarginBuyer
	switch closePrice.Cmp(entry) {
	case 1:
		emitter = emitter.Add(pnl)
	case -1:
		buyer = buyer.Add(pnl)
	}
	if c.BuyerID == nil {
		buyer = decimal.Zero
	}

	return Settlement{
		ClosePrice:    closePrice,
		Move:          move,
		PnL:           pnl,
		EmitterPayout: emitter,
		BuyerPayout:   buyer,
	}
}
