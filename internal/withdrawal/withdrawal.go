// Package withdrawal принимает заявки на вывод, списывая баланс в момент создания заявки.
package withdrawal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

var (
	// ErrInvalidAddress возвращается для адреса назначения, не похожего на адрес TON.
	ErrInvalidAddress = fmt.Errorf("invalid destination address: %w", model.ErrInvalidInput)
	// ErrInvalidAmount возвращается для неположительной или слишком точной суммы.
	ErrInvalidAmount = fmt.Errorf("invalid amount: %w", model.ErrInvalidInput)
)

// Store описывает хранилище заявок на вывод.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	InsertWithdrawal(ctx context.Context, w *model.Withdrawal) error
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
}

// Ledger списывает средства с баланса.
type Ledger interface {
	Debit(ctx context.Context, userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason, ref model.Ref) (*model.Balance, error)
}

// Service создаёт и перечисляет заявки на вывод.
type Service struct {
	store  Store
	ledger Ledger
	logger *zap.Logger
}

// NewService создаёт сервис вывода средств.
func NewService(store Store, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// RequestWithdrawal создаёт заявку в статусе pending и списывает сумму в одной транзакции.
// Пустая валюта означает model.BaseCurrency.
func (s *Service) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, currency, destination string) (*model.Withdrawal, error) {
	destination = strings.TrimSpace(destination)
	if !validation.IsValidTONAddress(destination) {
		return nil, ErrInvalidAddress
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !model.Representable(amount) {
		return nil, fmt.Errorf("%w: at most %d integer and %d fractional digits", ErrInvalidAmount, model.MaxIntegerDigits, model.Scale)
	}

	cur := model.BaseCurrency
	if strings.TrimSpace(currency) != "" {
		var err error
		if cur, err = model.ParseCurrency(currency); err != nil {
			return nil, err
		}
	}

	w := &model.Withdrawal{
		UserID:             userID,
		Currency:           cur,
		Amount:             amount,
		DestinationAddress: destination,
		Status:             model.WithdrawalStatusPending,
	}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		_, err := s.ledger.Debit(ctx, userID, cur, amount, model.ReasonWithdraw, model.RefTo(model.RefTypeWithdrawal, w.ID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}

	s.logger.Info("withdrawal requested",
		zap.String("event", "withdrawal_requested"),
		zap.Int64("userID", userID),
		zap.Int64("withdrawalID", w.ID),
		zap.String("amount", amount.String()),
		zap.String("currency", string(cur)),
	)

	return w, nil
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (s *Service) ListWithdrawals(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	list, err := s.store.GetWithdrawalsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return list, nil
}

// MaskAddress сокращает длинный адрес до первых 8 и последних 6 символов.
func MaskAddress(address string) string {
	r := []rune(address)
	if len(r) <= 16 {
		return address
	}
	return string(r[:8]) + "…" + string(r[len(r)-6:])
}
