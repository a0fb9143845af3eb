// Package accounting реализует единственный путь изменения балансов: каждое изменение
// сопровождается неизменяемой записью леджера в той же транзакции.
package accounting

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// TxManager выполняет функцию в транзакции хранилища. Вложенный вызов присоединяется к внешней транзакции.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BalanceStore описывает доступ к строкам балансов.
type BalanceStore interface {
	// GetBalanceForUpdate блокирует строку баланса до конца транзакции, создавая нулевую строку при первом обращении.
	GetBalanceForUpdate(ctx context.Context, userID int64, currency model.Currency) (*model.Balance, error)
	SaveBalance(ctx context.Context, b *model.Balance) error
	GetBalancesByUser(ctx context.Context, userID int64) ([]model.Balance, error)
}

// LedgerStore описывает журнал изменений балансов. Записи только добавляются.
type LedgerStore interface {
	AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
	GetLedgerEntriesByUser(ctx context.Context, userID int64, currency model.Currency) ([]model.LedgerEntry, error)
}

// UserStore проверяет существование пользователей.
type UserStore interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Store объединяет возможности хранилища, нужные сервису.
type Store interface {
	TxManager
	BalanceStore
	LedgerStore
	UserStore
}

// Service выполняет операции зачисления, списания и ручной корректировки.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService создаёт сервис учёта поверх хранилища.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Credit увеличивает доступный баланс на положительную сумму.
func (s *Service) Credit(ctx context.Context, userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason, ref model.Ref) (*model.Balance, error) {
	if err := validateMovement(userID, currency, amount, reason); err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}

	var res *model.Balance
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.apply(ctx, userID, currency, amount, reason, ref, "")
		res = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}
	return res, nil
}

// Debit уменьшает доступный баланс. Проверка достаточности и списание выполняются под блокировкой строки баланса.
func (s *Service) Debit(ctx context.Context, userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason, ref model.Ref) (*model.Balance, error) {
	if err := validateMovement(userID, currency, amount, reason); err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}

	var res *model.Balance
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.apply(ctx, userID, currency, amount.Neg(), reason, ref, "")
		res = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}
	return res, nil
}

// Adjustment описывает результат ручной корректировки баланса.
type Adjustment struct {
	UserID       int64
	Currency     model.Currency
	Delta        decimal.Decimal
	OldAvailable decimal.Decimal
	NewAvailable decimal.Decimal
	Note         string
	EntryID      int64
}

// Adjust применяет ручную корректировку со знаком. Текстовое обоснование обязательно и сохраняется в записи леджера.
func (s *Service) Adjust(ctx context.Context, userID int64, currency model.Currency, delta decimal.Decimal, note string) (*Adjustment, error) {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return nil, model.InvalidInputf("reason is required for balance adjustment")
	case !currency.Valid():
		return nil, model.InvalidInputf("unsupported currency %q", currency)
	case delta.IsZero():
		return nil, model.InvalidInputf("delta cannot be zero")
	case !model.Representable(delta):
		return nil, model.InvalidInputf("delta must have at most %d integer and %d fractional digits", model.MaxIntegerDigits, model.Scale)
	}

	var adj *Adjustment
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.store.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: user %d", model.ErrNotFound, userID)
		}

		before, err := s.store.GetBalanceForUpdate(ctx, userID, currency)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		old := before.Available

		var entry model.LedgerEntry
		after, err := s.applyLocked(ctx, before, delta, model.ReasonAdjustment, model.Ref{Type: model.RefTypeAdminAdjustment}, note, &entry)
		if err != nil {
			return err
		}

		adj = &Adjustment{
			UserID:       userID,
			Currency:     currency,
			Delta:        delta,
			OldAvailable: old,
			NewAvailable: after.Available,
			Note:         note,
			EntryID:      entry.ID,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjust: %w", err)
	}

	s.logger.Info("balance adjusted",
		zap.String("event", "balance_adjusted"),
		zap.Int64("userID", userID),
		zap.String("currency", string(currency)),
		zap.String("delta", delta.String()),
		zap.String("old_available", adj.OldAvailable.String()),
		zap.String("new_available", adj.NewAvailable.String()),
		zap.String("reason", note),
	)

	return adj, nil
}

// GetBalances возвращает балансы пользователя по всем поддерживаемым валютам, подставляя нули для отсутствующих.
func (s *Service) GetBalances(ctx context.Context, userID int64) ([]model.Balance, error) {
	rows, err := s.store.GetBalancesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	byCurrency := make(map[model.Currency]model.Balance, len(rows))
	for _, b := range rows {
		byCurrency[b.Currency] = b
	}

	res := make([]model.Balance, 0, len(model.SupportedCurrencies()))
	for _, c := range model.SupportedCurrencies() {
		b, ok := byCurrency[c]
		if !ok {
			b = model.Balance{UserID: userID, Currency: c, Available: decimal.Zero, Reserved: decimal.Zero}
		}
		res = append(res, b)
	}
	return res, nil
}

// History возвращает записи леджера пользователя по валюте.
func (s *Service) History(ctx context.Context, userID int64, currency model.Currency) ([]model.LedgerEntry, error) {
	if !currency.Valid() {
		return nil, model.InvalidInputf("unsupported currency %q", currency)
	}
	entries, err := s.store.GetLedgerEntriesByUser(ctx, userID, currency)
	if err != nil {
		return nil, fmt.Errorf("get ledger entries: %w", err)
	}
	return entries, nil
}

func (s *Service) apply(ctx context.Context, userID int64, currency model.Currency, delta decimal.Decimal, reason model.Reason, ref model.Ref, note string) (*model.Balance, error) {
	b, err := s.store.GetBalanceForUpdate(ctx, userID, currency)
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	var entry model.LedgerEntry
	return s.applyLocked(ctx, b, delta, reason, ref, note, &entry)
}

// applyLocked меняет заблокированный баланс и дописывает запись леджера. Отрицательный результат отклоняется до любых записей.
func (s *Service) applyLocked(ctx context.Context, b *model.Balance, delta decimal.Decimal, reason model.Reason, ref model.Ref, note string, entry *model.LedgerEntry) (*model.Balance, error) {
	next := b.Available.Add(delta)
	if next.IsNegative() {
		return nil, &model.InsufficientFundsError{
			UserID:    b.UserID,
			Currency:  b.Currency,
			Available: b.Available,
			Requested: delta.Neg(),
		}
	}
	if !model.Representable(next) {
		return nil, model.InvalidInputf("balance would exceed %d integer digits", model.MaxIntegerDigits)
	}

	b.Available = next
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return nil, fmt.Errorf("save balance: %w", err)
	}

	*entry = model.LedgerEntry{
		UserID:   b.UserID,
		Currency: b.Currency,
		Delta:    delta,
		Reason:   reason,
		RefType:  ref.Type,
		RefID:    ref.ID,
		Note:     note,
	}
	if err := s.store.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	s.logger.Debug("balance changed",
		zap.Int64("userID", b.UserID),
		zap.String("currency", string(b.Currency)),
		zap.String("delta", delta.String()),
		zap.String("reason", string(reason)),
	)

	return b, nil
}

func validateMovement(userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason) error {
	switch {
	case userID <= 0:
		return model.InvalidInputf("user id must be positive")
	case !currency.Valid():
		return model.InvalidInputf("unsupported currency %q", currency)
	case !reason.Valid():
		return model.InvalidInputf("unknown reason %q", reason)
	case !amount.IsPositive():
		return model.InvalidInputf("amount must be positive")
	case !model.Representable(amount):
		return model.InvalidInputf("amount must have at most %d integer and %d fractional digits", model.MaxIntegerDigits, model.Scale)
	}
	return nil
}
