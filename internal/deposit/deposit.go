// Package deposit превращает уведомления о входящих платежах в зачисления на баланс, ровно один раз на tx_hash.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// Причины, по которым депозит не зачислен.
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonDuplicateTxHash = "duplicate_tx_hash"
)

// ErrInvalidDeposit возвращается для уведомлений без tx_hash или с неположительной суммой.
var ErrInvalidDeposit = fmt.Errorf("invalid deposit: %w", model.ErrInvalidInput)

// Store описывает хранилище, нужное для атрибуции депозитов.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	UserExists(ctx context.Context, userID int64) (bool, error)
	// InsertDeposit возвращает ошибку, оборачивающую model.ErrDuplicate, если tx_hash уже записан.
	InsertDeposit(ctx context.Context, d *model.Deposit) error
}

// Ledger зачисляет средства на баланс.
type Ledger interface {
	Credit(ctx context.Context, userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason, ref model.Ref) (*model.Balance, error)
}

// Notification описывает входящий платёж от провайдера сети.
type Notification struct {
	TxHash   string
	Amount   decimal.Decimal
	Comment  string
	Currency string
}

// Result описывает исход атрибуции. Незачисленный депозит не является ошибкой.
type Result struct {
	Credited  bool
	UserID    *int64
	Reason    string
	DepositID int64
	Currency  model.Currency
}

// Instruction содержит адрес кошелька проекта и комментарий, по которому платёж будет привязан к пользователю.
type Instruction struct {
	Address string
	Comment string
}

// Service выполняет атрибуцию депозитов.
type Service struct {
	store          Store
	ledger         Ledger
	depositAddress string
	logger         *zap.Logger
}

// NewService создаёт сервис депозитов.
func NewService(store Store, ledger Ledger, depositAddress string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		ledger:         ledger,
		depositAddress: depositAddress,
		logger:         logger,
	}
}

// AttributeDeposit записывает депозит и зачисляет его пользователю из комментария.
// Повторная доставка того же tx_hash ничего не меняет и сообщается как duplicate_tx_hash.
// Депозит без известного пользователя сохраняется со статусом rejected для ручной сверки.
func (s *Service) AttributeDeposit(ctx context.Context, n Notification) (*Result, error) {
	txHash := strings.TrimSpace(n.TxHash)
	if txHash == "" {
		return nil, fmt.Errorf("%w: missing tx_hash", ErrInvalidDeposit)
	}
	if !n.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidDeposit)
	}
	if !model.Representable(n.Amount) {
		return nil, fmt.Errorf("%w: amount must have at most %d integer and %d fractional digits", ErrInvalidDeposit, model.MaxIntegerDigits, model.Scale)
	}

	currency := model.NormalizeCurrency(n.Currency)
	comment := strings.TrimSpace(n.Comment)

	res := &Result{Currency: currency}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		userID, ok := ParseUserComment(comment)
		if ok {
			exists, err := s.store.UserExists(ctx, userID)
			if err != nil {
				return fmt.Errorf("check user: %w", err)
			}
			ok = exists
		}

		d := &model.Deposit{
			Currency:       currency,
			Amount:         n.Amount,
			TxHash:         txHash,
			CommentPayload: comment,
			Status:         model.DepositStatusRejected,
		}
		if ok {
			d.UserID = &userID
			d.Status = model.DepositStatusCredited
		}

		if err := s.store.InsertDeposit(ctx, d); err != nil {
			if errors.Is(err, model.ErrDuplicate) {
				res.Reason = ReasonDuplicateTxHash
				return nil
			}
			return fmt.Errorf("insert deposit: %w", err)
		}
		res.DepositID = d.ID

		if !ok {
			res.Reason = ReasonUserNotFound
			return nil
		}

		if _, err := s.ledger.Credit(ctx, userID, currency, n.Amount, model.ReasonDeposit, model.RefTo(model.RefTypeDeposit, d.ID)); err != nil {
			return err
		}
		res.Credited = true
		res.UserID = &userID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attribute deposit %s: %w", txHash, err)
	}

	switch {
	case res.Credited:
		s.logger.Info("deposit credited",
			zap.String("event", "deposit_credited"),
			zap.Int64("userID", *res.UserID),
			zap.String("tx_hash", txHash),
			zap.String("amount", n.Amount.String()),
			zap.String("currency", string(currency)),
		)
	case res.Reason == ReasonDuplicateTxHash:
		s.logger.Info("deposit already processed",
			zap.String("event", "deposit_duplicate"),
			zap.String("tx_hash", txHash),
		)
	default:
		s.logger.Warn("deposit not attributed",
			zap.String("event", "deposit_unattributed"),
			zap.String("tx_hash", txHash),
			zap.String("comment", comment),
			zap.String("amount", n.Amount.String()),
			zap.String("currency", string(currency)),
		)
	}

	return res, nil
}

// Instruction возвращает реквизиты пополнения для пользователя.
func (s *Service) Instruction(userID int64) Instruction {
	return Instruction{
		Address: s.depositAddress,
		Comment: UserComment(userID),
	}
}

// UserComment формирует комментарий платежа для пользователя: u<id>.
func UserComment(userID int64) string {
	return "u" + strconv.FormatInt(userID, 10)
}

// ParseUserComment извлекает идентификатор пользователя из комментария вида u<id>.
func ParseUserComment(comment string) (int64, bool) {
	s := strings.TrimSpace(comment)
	if len(s) < 2 || s[0] != 'u' {
		return 0, false
	}
	digits := s[1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
