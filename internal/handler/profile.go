package handler

import "net/http"

type meResponse struct {
	ID                  int64   `json:"id"`
	TelegramUserID      string  `json:"telegram_user_id"`
	ConnectedTONAddress *string `json:"connected_ton_address"`
}

type walletRequest struct {
	Address string `json:"address" validate:"required"`
}

type walletResponse struct {
	OK      bool   `json:"ok"`
	Address string `json:"address,omitempty"`
}

// GetMe возвращает профиль текущего пользователя. Ответ не кэшируется: кошелёк меняется с других устройств.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	u, err := h.services.Profiles.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "get profile", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, meResponse{
		ID:                  u.ID,
		TelegramUserID:      u.TelegramUserID,
		ConnectedTONAddress: u.ConnectedTONAddress,
	})
}

// ConnectWallet привязывает адрес TON к текущему пользователю.
func (h *Handler) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req walletRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "connect wallet", err)
		return
	}

	u, err := h.services.Profiles.ConnectWallet(r.Context(), userID, req.Address)
	if err != nil {
		h.writeError(w, r, "connect wallet", err)
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{OK: true, Address: *u.ConnectedTONAddress})
}

// DisconnectWallet отвязывает кошелёк текущего пользователя.
func (h *Handler) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.services.Profiles.DisconnectWallet(r.Context(), userID); err != nil {
		h.writeError(w, r, "disconnect wallet", err)
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{OK: true})
}
