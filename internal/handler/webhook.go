package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/giftfutures/internal/deposit"
	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

// WebhookSecretHeader — заголовок с общим секретом вебхука платежей.
const WebhookSecretHeader = "X-Ton-Webhook-Secret"

// tonWebhookRequest допускает альтернативные имена полей, которые присылают разные индексаторы.
type tonWebhookRequest struct {
	TxHash          string      `json:"tx_hash"`
	TransactionHash string      `json:"transaction_hash"`
	Comment         string      `json:"comment"`
	Payload         string      `json:"payload"`
	Memo            string      `json:"memo"`
	Amount          json.Number `json:"amount"`
	Value           json.Number `json:"value"`
	Currency        string      `json:"currency"`
}

func (req tonWebhookRequest) notification() (deposit.Notification, error) {
	raw := firstNonEmpty(req.Amount.String(), req.Value.String())
	if raw == "" {
		return deposit.Notification{}, model.InvalidInputf("missing amount")
	}
	amount, err := validation.ParseDecimal(raw)
	if err != nil {
		return deposit.Notification{}, err
	}

	return deposit.Notification{
		TxHash:   firstNonEmpty(req.TxHash, req.TransactionHash),
		Amount:   amount,
		Comment:  firstNonEmpty(req.Comment, req.Payload, req.Memo),
		Currency: req.Currency,
	}, nil
}

type tonWebhookResponse struct {
	OK       bool   `json:"ok"`
	Credited bool   `json:"credited"`
	UserID   *int64 `json:"user_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// TonWebhook принимает уведомление о входящем платеже и зачисляет его по комментарию.
func (h *Handler) TonWebhook(w http.ResponseWriter, r *http.Request) {
	if secret := h.opts.TonWebhookSecret; secret != "" {
		got := r.Header.Get(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
	}

	var req tonWebhookRequest
	if err := h.decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, "ton webhook", err)
		return
	}

	n, err := req.notification()
	if err != nil {
		h.writeError(w, r, "ton webhook", err)
		return
	}

	res, err := h.services.Deposits.AttributeDeposit(r.Context(), n)
	if err != nil {
		h.writeError(w, r, "ton webhook", err)
		return
	}

	writeJSON(w, http.StatusOK, tonWebhookResponse{
		OK:       true,
		Credited: res.Credited,
		UserID:   res.UserID,
		Reason:   res.Reason,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
