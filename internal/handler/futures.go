package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

type createOfferRequest struct {
	MarketID int64  `json:"market_id" validate:"required,gt=0"`
	Side     string `json:"side" validate:"required"`
	Qty      string `json:"qty" validate:"required,decimal"`
}

// CreateOffer выставляет предложение фьючерса от имени текущего пользователя.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req createOfferRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "create offer", err)
		return
	}

	side, err := model.ParseSide(req.Side)
	if err != nil {
		h.writeError(w, r, "create offer", err)
		return
	}
	qty, err := validation.ParseDecimal(req.Qty)
	if err != nil {
		h.writeError(w, r, "create offer", err)
		return
	}

	c, err := h.services.Futures.CreateOffer(r.Context(), userID, req.MarketID, side, qty)
	if err != nil {
		h.writeError(w, r, "create offer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toContractResponse(*c))
}

// ListOffers возвращает открытые предложения.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.services.Futures.ListOpenOffers(r.Context())
	if err != nil {
		h.writeError(w, r, "list offers", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractResponses(offers))
}

// TakeOffer принимает предложение текущим пользователем.
func (h *Handler) TakeOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "take offer", err)
		return
	}

	c, err := h.services.Futures.TakeOffer(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, r, "take offer", err)
		return
	}

	writeJSON(w, http.StatusOK, toContractResponse(*c))
}

// GetContract возвращает контракт по идентификатору.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "get contract", err)
		return
	}

	c, err := h.services.Futures.GetContract(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get contract", err)
		return
	}

	writeJSON(w, http.StatusOK, toContractResponse(*c))
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.InvalidInputf("invalid id %q", raw)
	}
	return id, nil
}
