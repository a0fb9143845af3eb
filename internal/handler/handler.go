// Package handler содержит HTTP-обработчики API сервиса фьючерсов на подарки.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/accounting"
	"github.com/mmeshcher/giftfutures/internal/deposit"
	"github.com/mmeshcher/giftfutures/internal/market"
	"github.com/mmeshcher/giftfutures/internal/middleware"
	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

// AccountingService — операции учёта, доступные через HTTP.
type AccountingService interface {
	GetBalances(ctx context.Context, userID int64) ([]model.Balance, error)
	History(ctx context.Context, userID int64, currency model.Currency) ([]model.LedgerEntry, error)
	Adjust(ctx context.Context, userID int64, currency model.Currency, delta decimal.Decimal, note string) (*accounting.Adjustment, error)
}

// DepositService — приём уведомлений о входящих платежах.
type DepositService interface {
	AttributeDeposit(ctx context.Context, n deposit.Notification) (*deposit.Result, error)
	Instruction(userID int64) deposit.Instruction
}

// WithdrawalService — заявки на вывод.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, currency, destination string) (*model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID int64) ([]model.Withdrawal, error)
}

// FuturesService — жизненный цикл контрактов.
type FuturesService interface {
	CreateOffer(ctx context.Context, emitterID, marketID int64, side model.Side, qty decimal.Decimal) (*model.FuturesContract, error)
	TakeOffer(ctx context.Context, buyerID, contractID int64) (*model.FuturesContract, error)
	Settle(ctx context.Context, contractID int64, closePrice *decimal.Decimal) (*model.FuturesContract, error)
	Liquidate(ctx context.Context, contractID int64, closePrice decimal.Decimal, reason string) (*model.FuturesContract, error)
	ListOpenOffers(ctx context.Context) ([]model.FuturesContract, error)
	GetContract(ctx context.Context, id int64) (*model.FuturesContract, error)
}

// MarketService — справочник рынков.
type MarketService interface {
	List(ctx context.Context) ([]model.Market, error)
	SetActive(ctx context.Context, id int64, active bool) (*model.Market, error)
	SetGiftActive(ctx context.Context, id int64, active bool) (*model.Gift, error)
	SetExpiryActive(ctx context.Context, id int64, active bool) (*model.Expiry, error)
	BulkUpdatePrices(ctx context.Context, updates []market.PriceUpdate) (*market.BulkResult, error)
}

// ProfileService — профиль пользователя и привязанный кошелёк.
type ProfileService interface {
	Get(ctx context.Context, userID int64) (*model.User, error)
	ConnectWallet(ctx context.Context, userID int64, address string) (*model.User, error)
	DisconnectWallet(ctx context.Context, userID int64) error
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services собирает зависимости обработчиков.
type Services struct {
	Accounting  AccountingService
	Deposits    DepositService
	Withdrawals WithdrawalService
	Futures     FuturesService
	Markets     MarketService
	Profiles    ProfileService
	Health      Pinger
}

// Options содержит параметры доступа к служебным маршрутам.
type Options struct {
	AdminToken         string
	TonWebhookSecret   string
	CORSAllowedOrigins []string
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	services       Services
	opts           Options
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validator      *validation.Validator
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Services, opts Options, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		services:       s,
		opts:           opts,
		logger:         logger,
		authMiddleware: auth,
		validator:      validation.NewValidator(),
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// duplicateResponse — ответ на идемпотентный повтор: операция уже выполнена, повтор ничего не меняет.
type duplicateResponse struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate"`
}

// writeError переводит ошибку ядра в HTTP-статус. Повтор отвечает 200 с телом успеха.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := model.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case model.KindInvalidInput:
		status = http.StatusBadRequest
	case model.KindInsufficientFunds:
		status = http.StatusPaymentRequired
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindSelfTrade:
		status = http.StatusConflict
	case model.KindMarketUnavailable:
		status = http.StatusUnprocessableEntity
	case model.KindDuplicate:
		writeJSON(w, http.StatusOK, duplicateResponse{OK: true, Duplicate: true})
		return
	case model.KindInternal:
	}

	resp := errorResponse{Error: kind.String()}
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err), zap.String("path", r.URL.Path))
	} else {
		resp.Detail = err.Error()
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса и проверяет его по тегам validate.
// Пустое тело допускается, только если allowEmpty.
func (h *Handler) decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
	case err != nil:
		return model.InvalidInputf("malformed JSON body")
	}

	return h.validator.Struct(dst)
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
