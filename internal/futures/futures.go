// Package futures реализует жизненный цикл фьючерсного контракта: open → taken → closed | liquidated.
// Все денежные движения проходят через сервис учёта в той же транзакции, что и смена статуса.
package futures

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// ErrInvalidQuantity возвращается для неположительного количества или нулевой маржи.
var ErrInvalidQuantity = fmt.Errorf("invalid quantity: %w", model.ErrInvalidInput)

// Store описывает хранилище контрактов и рынков.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	GetMarket(ctx context.Context, id int64) (*model.Market, error)
	InsertContract(ctx context.Context, c *model.FuturesContract) error
	GetContract(ctx context.Context, id int64) (*model.FuturesContract, error)
	// GetContractForUpdate блокирует строку контракта до конца транзакции.
	GetContractForUpdate(ctx context.Context, id int64) (*model.FuturesContract, error)
	UpdateContract(ctx context.Context, c *model.FuturesContract) error
	GetContractsByStatus(ctx context.Context, status model.ContractStatus) ([]model.FuturesContract, error)
}

// Ledger двигает маржу и выплаты по балансам.
type Ledger interface {
	Credit(ctx context.Context, userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason, ref model.Ref) (*model.Balance, error)
	Debit(ctx context.Context, userID int64, currency model.Currency, amount decimal.Decimal, reason model.Reason, ref model.Ref) (*model.Balance, error)
}

// Service управляет фьючерсными контрактами. Маржа списывается с available в валюте marginCurrency.
type Service struct {
	store          Store
	ledger         Ledger
	marginCurrency model.Currency
	logger         *zap.Logger
	now            func() time.Time
}

// NewService создаёт сервис фьючерсов.
func NewService(store Store, ledger Ledger, marginCurrency model.Currency, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !marginCurrency.Valid() {
		marginCurrency = model.BaseCurrency
	}
	return &Service{
		store:          store,
		ledger:         ledger,
		marginCurrency: marginCurrency,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateOffer размещает контракт эмитента по текущей цене рынка и списывает с него маржу qty * entry_price.
func (s *Service) CreateOffer(ctx context.Context, emitterID, marketID int64, side model.Side, qty decimal.Decimal) (*model.FuturesContract, error) {
	if side != model.SideLong && side != model.SideShort {
		return nil, model.InvalidInputf("side must be long or short, got %q", side)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: qty must be positive", ErrInvalidQuantity)
	}
	if !model.Representable(qty) {
		return nil, fmt.Errorf("%w: qty must have at most %d integer and %d fractional digits", ErrInvalidQuantity, model.MaxIntegerDigits, model.Scale)
	}

	var contract *model.FuturesContract
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		price, err := s.marketPrice(ctx, marketID, s.marginCurrency, true)
		if err != nil {
			return err
		}

		c := &model.FuturesContract{
			MarketID:    marketID,
			EmitterID:   emitterID,
			Side:        side,
			Qty:         qty,
			EntryPrice:  price,
			Currency:    s.marginCurrency,
			Status:      model.ContractStatusOpen,
			MarginBuyer: decimal.Zero,
		}
		c.MarginEmitter = c.Notional()
		if !c.MarginEmitter.IsPositive() {
			return fmt.Errorf("%w: margin rounds to zero", ErrInvalidQuantity)
		}

		if err := s.store.InsertContract(ctx, c); err != nil {
			return fmt.Errorf("insert contract: %w", err)
		}
		if _, err := s.ledger.Debit(ctx, emitterID, c.Currency, c.MarginEmitter, model.ReasonFuturesMargin, model.RefTo(model.RefTypeFuturesContract, c.ID)); err != nil {
			return err
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	s.logger.Info("futures offer created",
		zap.String("event", "futures_offer_created"),
		zap.Int64("contractID", contract.ID),
		zap.Int64("marketID", marketID),
		zap.Int64("userID", emitterID),
		zap.String("side", string(side)),
		zap.String("qty", qty.String()),
		zap.String("entry_price", contract.EntryPrice.String()),
		zap.String("margin", contract.MarginEmitter.String()),
	)

	return contract, nil
}

// TakeOffer принимает открытый контракт и списывает с покупателя ту же маржу по зафиксированной цене входа.
func (s *Service) TakeOffer(ctx context.Context, buyerID, contractID int64) (*model.FuturesContract, error) {
	var contract *model.FuturesContract
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		c, err := s.store.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if !c.Status.Takeable() {
			return fmt.Errorf("%w: contract %d is %s", model.ErrNotFound, c.ID, c.Status)
		}
		if c.EmitterID == buyerID {
			return fmt.Errorf("%w: user %d cannot take own contract %d", model.ErrSelfTrade, buyerID, c.ID)
		}

		margin := c.Notional()
		if _, err := s.ledger.Debit(ctx, buyerID, c.Currency, margin, model.ReasonFuturesMargin, model.RefTo(model.RefTypeFuturesContract, c.ID)); err != nil {
			return err
		}

		c.BuyerID = &buyerID
		c.MarginBuyer = margin
		c.Status = model.ContractStatusTaken
		if err := s.store.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("take offer %d: %w", contractID, err)
	}

	s.logger.Info("futures offer taken",
		zap.String("event", "futures_offer_taken"),
		zap.Int64("contractID", contract.ID),
		zap.Int64("userID", buyerID),
		zap.String("margin", contract.MarginBuyer.String()),
	)

	return contract, nil
}

// Settle закрывает контракт по указанной цене или, если она не задана, по текущей цене рынка.
// Возврат маржи и выплата PnL обеим сторонам фиксируются вместе со сменой статуса.
func (s *Service) Settle(ctx context.Context, contractID int64, closePrice *decimal.Decimal) (*model.FuturesContract, error) {
	c, st, err := s.close(ctx, contractID, closePrice, model.ContractStatusClosed, nil)
	if err != nil {
		return nil, fmt.Errorf("settle %d: %w", contractID, err)
	}

	s.logger.Info("futures settled",
		zap.String("event", "futures_settled"),
		zap.Int64("contractID", c.ID),
		zap.String("close_price", st.ClosePrice.String()),
		zap.String("move", st.Move.String()),
		zap.String("pnl", st.PnL.String()),
		zap.String("emitter_payout", st.EmitterPayout.String()),
		zap.String("buyer_payout", st.BuyerPayout.String()),
	)
	return c, nil
}

// Liquidate принудительно закрывает контракт по заданной цене с указанием причины.
// Выплаты считаются так же, как при Settle.
func (s *Service) Liquidate(ctx context.Context, contractID int64, closePrice decimal.Decimal, reason string) (*model.FuturesContract, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.InvalidInputf("liquidation reason is required")
	}

	c, st, err := s.close(ctx, contractID, &closePrice, model.ContractStatusLiquidated, &reason)
	if err != nil {
		return nil, fmt.Errorf("liquidate %d: %w", contractID, err)
	}

	s.logger.Warn("futures liquidated",
		zap.String("event", "futures_liquidated"),
		zap.Int64("contractID", c.ID),
		zap.String("close_price", st.ClosePrice.String()),
		zap.String("reason", reason),
		zap.String("emitter_payout", st.EmitterPayout.String()),
		zap.String("buyer_payout", st.BuyerPayout.String()),
	)
	return c, nil
}

// ListOpenOffers возвращает контракты, ожидающие покупателя.
func (s *Service) ListOpenOffers(ctx context.Context) ([]model.FuturesContract, error) {
	list, err := s.store.GetContractsByStatus(ctx, model.ContractStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list open offers: %w", err)
	}
	return list, nil
}

// GetContract возвращает контракт по идентификатору.
func (s *Service) GetContract(ctx context.Context, id int64) (*model.FuturesContract, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get contract %d: %w", id, err)
	}
	return c, nil
}

type payout struct {
	userID int64
	amount decimal.Decimal
}

func (s *Service) close(ctx context.Context, contractID int64, closePrice *decimal.Decimal, status model.ContractStatus, reason *string) (*model.FuturesContract, Settlement, error) {
	if closePrice != nil {
		if !closePrice.IsPositive() {
			return nil, Settlement{}, model.InvalidInputf("close price must be positive")
		}
		if !model.Representable(*closePrice) {
			return nil, Settlement{}, model.InvalidInputf("close price must have at most %d integer and %d fractional digits", model.MaxIntegerDigits, model.Scale)
		}
	}

	var (
		contract *model.FuturesContract
		st       Settlement
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		c, err := s.store.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if !c.Status.Settleable() {
			return fmt.Errorf("%w: contract %d is %s", model.ErrNotFound, c.ID, c.Status)
		}

		price := decimal.Zero
		if closePrice != nil {
			price = *closePrice
		} else if price, err = s.marketPrice(ctx, c.MarketID, c.Currency, false); err != nil {
			return err
		}

		st = ComputeSettlement(*c, price)

		payouts := []payout{{userID: c.EmitterID, amount: st.EmitterPayout}}
		if c.BuyerID != nil {
			payouts = append(payouts, payout{userID: *c.BuyerID, amount: st.BuyerPayout})
		}
		// Балансы блокируются в порядке возрастания id пользователя.
		sort.Slice(payouts, func(i, j int) bool { return payouts[i].userID < payouts[j].userID })

		for _, p := range payouts {
			if !p.amount.IsPositive() {
				continue
			}
			if _, err := s.ledger.Credit(ctx, p.userID, c.Currency, p.amount, model.ReasonFuturesSettle, model.RefTo(model.RefTypeFuturesContract, c.ID)); err != nil {
				return err
			}
		}

		closedAt := s.now()
		c.Status = status
		c.ClosePrice = &price
		c.ClosedAt = &closedAt
		c.LiquidationReason = reason
		if err := s.store.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, Settlement{}, err
	}
	return contract, st, nil
}

// marketPrice возвращает цену рынка в указанной валюте. requireActive запрещает рынки,
// у которых выключен сам рынок, его подарок или экспирация.
func (s *Service) marketPrice(ctx context.Context, marketID int64, currency model.Currency, requireActive bool) (decimal.Decimal, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("%w: market %d not found", model.ErrMarketUnavailable, marketID)
		}
		return decimal.Zero, fmt.Errorf("get market: %w", err)
	}
	if requireActive && !m.Tradable() {
		return decimal.Zero, fmt.Errorf("%w: market %d, its gift or expiry is inactive", model.ErrMarketUnavailable, marketID)
	}
	price, ok := m.Price(currency)
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: market %d has no %s price", model.ErrMarketUnavailable, marketID, currency)
	}
	return price, nil
}
