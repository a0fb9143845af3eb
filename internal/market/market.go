// Package market управляет справочником рынков: активность и цены от оракула.
package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// Store описывает хранилище рынков.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	GetMarkets(ctx context.Context) ([]model.Market, error)
	SetMarketActive(ctx context.Context, id int64, active bool) (*model.Market, error)
	SetGiftActive(ctx context.Context, id int64, active bool) (*model.Gift, error)
	SetExpiryActive(ctx context.Context, id int64, active bool) (*model.Expiry, error)
	// UpdateMarketPrices выставляет цену в TON всем рынкам подарка и возвращает число затронутых рынков.
	UpdateMarketPrices(ctx context.Context, giftName string, priceTON decimal.Decimal) (int, error)
}

// PriceUpdate — цена подарка от оракула.
type PriceUpdate struct {
	GiftName string
	PriceTON decimal.Decimal
}

// BulkResult описывает итог пакетного обновления цен.
type BulkResult struct {
	UpdatedMarkets int
	UnknownGifts   []string
}

// Service выдаёт рынки и применяет административные изменения.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService создаёт сервис рынков.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// List возвращает все рынки.
func (s *Service) List(ctx context.Context) ([]model.Market, error) {
	markets, err := s.store.GetMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	return markets, nil
}

// SetActive включает или выключает рынок.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*model.Market, error) {
	m, err := s.store.SetMarketActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set market %d active: %w", id, err)
	}

	s.logger.Info("market toggled",
		zap.String("event", "market_toggled"),
		zap.Int64("marketID", id),
		zap.Bool("is_active", active),
	)
	return m, nil
}

// SetGiftActive включает или выключает подарок. Рынки выключенного подарка не принимают новые контракты.
func (s *Service) SetGiftActive(ctx context.Context, id int64, active bool) (*model.Gift, error) {
	g, err := s.store.SetGiftActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set gift %d active: %w", id, err)
	}

	s.logger.Info("gift toggled",
		zap.String("event", "admin_gift_toggled"),
		zap.Int64("giftID", id),
		zap.String("gift_name", g.Name),
		zap.Bool("is_active", active),
	)
	return g, nil
}

// SetExpiryActive включает или выключает экспирацию.
func (s *Service) SetExpiryActive(ctx context.Context, id int64, active bool) (*model.Expiry, error) {
	e, err := s.store.SetExpiryActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set expiry %d active: %w", id, err)
	}

	s.logger.Info("expiry toggled",
		zap.String("event", "admin_expiry_toggled"),
		zap.Int64("expiryID", id),
		zap.Int("expiry_days", e.Days),
		zap.Bool("is_active", active),
	)
	return e, nil
}

// BulkUpdatePrices применяет все цены одной транзакцией. Неизвестные подарки не являются ошибкой
// и перечисляются в результате.
func (s *Service) BulkUpdatePrices(ctx context.Context, updates []PriceUpdate) (*BulkResult, error) {
	if len(updates) == 0 {
		return nil, model.InvalidInputf("no prices given")
	}
	for i, u := range updates {
		if strings.TrimSpace(u.GiftName) == "" {
			return nil, model.InvalidInputf("item %d: gift_name is required", i)
		}
		if !u.PriceTON.IsPositive() || !model.Representable(u.PriceTON) {
			return nil, model.InvalidInputf("item %d: invalid price_ton %s", i, u.PriceTON)
		}
	}

	res := &BulkResult{}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		for _, u := range updates {
			n, err := s.store.UpdateMarketPrices(ctx, strings.TrimSpace(u.GiftName), u.PriceTON)
			if err != nil {
				return fmt.Errorf("update %s: %w", u.GiftName, err)
			}
			if n == 0 {
				res.UnknownGifts = append(res.UnknownGifts, u.GiftName)
			}
			res.UpdatedMarkets += n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk update prices: %w", err)
	}

	s.logger.Info("market prices updated",
		zap.String("event", "market_prices_updated"),
		zap.Int("items", len(updates)),
		zap.Int("markets", res.UpdatedMarkets),
		zap.Strings("unknown_gifts", res.UnknownGifts),
	)
	return res, nil
}
