package handler

import (
	"net/http"

	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

// GetMarkets возвращает список рынков с текущими ценами.
func (h *Handler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.services.Markets.List(r.Context())
	if err != nil {
		h.writeError(w, r, "list markets", err)
		return
	}

	resp := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		resp = append(resp, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBalances возвращает балансы текущего пользователя по всем валютам.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	balances, err := h.services.Accounting.GetBalances(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "get balances", err)
		return
	}

	resp := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, toBalanceResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLedger возвращает историю изменений баланса в валюте из параметра currency.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	currency := model.BaseCurrency
	if raw := r.URL.Query().Get("currency"); raw != "" {
		c, err := model.ParseCurrency(raw)
		if err != nil {
			h.writeError(w, r, "get ledger", err)
			return
		}
		currency = c
	}

	entries, err := h.services.Accounting.History(r.Context(), userID, currency)
	if err != nil {
		h.writeError(w, r, "get ledger", err)
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toLedgerEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type depositInstructionResponse struct {
	Address string `json:"address"`
	Comment string `json:"comment"`
}

// GetDepositInstruction возвращает адрес кошелька и комментарий для пополнения.
func (h *Handler) GetDepositInstruction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	in := h.services.Deposits.Instruction(userID)
	writeJSON(w, http.StatusOK, depositInstructionResponse{
		Address: in.Address,
		Comment: in.Comment,
	})
}

type withdrawRequest struct {
	Amount             string `json:"amount" validate:"required,decimal"`
	Currency           string `json:"currency"`
	DestinationAddress string `json:"destination_address" validate:"required,ton_address"`
}

// Withdraw создаёт заявку на вывод и списывает сумму с баланса текущего пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "withdraw", err)
		return
	}

	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, r, "withdraw", err)
		return
	}

	wd, err := h.services.Withdrawals.RequestWithdrawal(r.Context(), userID, amount, req.Currency, req.DestinationAddress)
	if err != nil {
		h.writeError(w, r, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, toWithdrawalResponse(*wd))
}

// GetWithdrawals возвращает историю заявок на вывод текущего пользователя.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.services.Withdrawals.ListWithdrawals(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "get withdrawals", err)
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]withdrawalResponse, 0, len(withdrawals))
	for _, wd := range withdrawals {
		resp = append(resp, toWithdrawalResponse(wd))
	}
	writeJSON(w, http.StatusOK, resp)
}
