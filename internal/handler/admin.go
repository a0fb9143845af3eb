package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/market"
	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

type adjustRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required"`
	Delta    string `json:"delta" validate:"required,decimal"`
	Reason   string `json:"reason" validate:"required"`
}

type adjustResponse struct {
	UserID       int64           `json:"user_id"`
	Currency     string          `json:"currency"`
	Delta        decimal.Decimal `json:"delta"`
	OldAvailable decimal.Decimal `json:"old_available"`
	NewAvailable decimal.Decimal `json:"new_available"`
	EntryID      int64           `json:"ledger_entry_id"`
}

// AdjustBalance применяет ручную корректировку баланса.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "adjust balance", err)
		return
	}

	currency, err := model.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, r, "adjust balance", err)
		return
	}
	delta, err := validation.ParseDecimal(req.Delta)
	if err != nil {
		h.writeError(w, r, "adjust balance", err)
		return
	}

	adj, err := h.services.Accounting.Adjust(r.Context(), req.UserID, currency, delta, req.Reason)
	if err != nil {
		h.writeError(w, r, "adjust balance", err)
		return
	}

	writeJSON(w, http.StatusOK, adjustResponse{
		UserID:       adj.UserID,
		Currency:     string(adj.Currency),
		Delta:        adj.Delta,
		OldAvailable: adj.OldAvailable,
		NewAvailable: adj.NewAvailable,
		EntryID:      adj.EntryID,
	})
}

type toggleRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type giftResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type expiryResponse struct {
	ID       int64 `json:"id"`
	Days     int   `json:"days"`
	IsActive bool  `json:"is_active"`
}

// ToggleGift включает или выключает подарок вместе со всеми его рынками.
func (h *Handler) ToggleGift(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "toggle gift", err)
		return
	}

	var req toggleRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "toggle gift", err)
		return
	}

	g, err := h.services.Markets.SetGiftActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, "toggle gift", err)
		return
	}

	writeJSON(w, http.StatusOK, giftResponse{ID: g.ID, Name: g.Name, IsActive: g.IsActive})
}

// ToggleExpiry включает или выключает срок экспирации.
func (h *Handler) ToggleExpiry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "toggle expiry", err)
		return
	}

	var req toggleRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "toggle expiry", err)
		return
	}

	e, err := h.services.Markets.SetExpiryActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, "toggle expiry", err)
		return
	}

	writeJSON(w, http.StatusOK, expiryResponse{ID: e.ID, Days: e.Days, IsActive: e.IsActive})
}

// ToggleMarket включает или выключает рынок.
func (h *Handler) ToggleMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "toggle market", err)
		return
	}

	var req toggleRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "toggle market", err)
		return
	}

	m, err := h.services.Markets.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, "toggle market", err)
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(*m))
}

type priceItem struct {
	GiftName string `json:"gift_name" validate:"required"`
	PriceTON string `json:"price_ton" validate:"required,decimal"`
}

type bulkPricesRequest struct {
	Items []priceItem `json:"items" validate:"required,min=1,dive"`
}

type bulkPricesResponse struct {
	UpdatedMarkets int      `json:"updated_markets"`
	UnknownGifts   []string `json:"unknown_gifts"`
}

// BulkUpdatePrices выставляет цены рынков по названиям подарков.
func (h *Handler) BulkUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req bulkPricesRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "bulk update prices", err)
		return
	}

	updates := make([]market.PriceUpdate, 0, len(req.Items))
	for _, it := range req.Items {
		price, err := validation.ParseAmount(it.PriceTON)
		if err != nil {
			h.writeError(w, r, "bulk update prices", err)
			return
		}
		updates = append(updates, market.PriceUpdate{GiftName: it.GiftName, PriceTON: price})
	}

	res, err := h.services.Markets.BulkUpdatePrices(r.Context(), updates)
	if err != nil {
		h.writeError(w, r, "bulk update prices", err)
		return
	}

	unknown := res.UnknownGifts
	if unknown == nil {
		unknown = []string{}
	}
	writeJSON(w, http.StatusOK, bulkPricesResponse{
		UpdatedMarkets: res.UpdatedMarkets,
		UnknownGifts:   unknown,
	})
}

type settleRequest struct {
	ClosePrice *string `json:"close_price" validate:"omitempty,decimal"`
}

// SettleContract закрывает контракт по указанной цене или по текущей цене рынка.
func (h *Handler) SettleContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "settle contract", err)
		return
	}

	var req settleRequest
	if err := h.decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, "settle contract", err)
		return
	}

	var closePrice *decimal.Decimal
	if req.ClosePrice != nil {
		p, err := validation.ParseDecimal(*req.ClosePrice)
		if err != nil {
			h.writeError(w, r, "settle contract", err)
			return
		}
		closePrice = &p
	}

	c, err := h.services.Futures.Settle(r.Context(), id, closePrice)
	if err != nil {
		h.writeError(w, r, "settle contract", err)
		return
	}

	writeJSON(w, http.StatusOK, toContractResponse(*c))
}

type liquidateRequest struct {
	ClosePrice string `json:"close_price" validate:"required,decimal"`
	Reason     string `json:"reason" validate:"required"`
}

// LiquidateContract принудительно закрывает контракт по заданной цене.
func (h *Handler) LiquidateContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "liquidate contract", err)
		return
	}

	var req liquidateRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "liquidate contract", err)
		return
	}

	price, err := validation.ParseDecimal(req.ClosePrice)
	if err != nil {
		h.writeError(w, r, "liquidate contract", err)
		return
	}

	c, err := h.services.Futures.Liquidate(r.Context(), id, price, req.Reason)
	if err != nil {
		h.writeError(w, r, "liquidate contract", err)
		return
	}

	writeJSON(w, http.StatusOK, toContractResponse(*c))
}
