package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/market"
	"github.com/mmeshcher/giftfutures/internal/model"
)

const fetchAttempts = 3

// PriceApplier применяет цены к рынкам.
type PriceApplier interface {
	BulkUpdatePrices(ctx context.Context, updates []market.PriceUpdate) (*market.BulkResult, error)
}

// Syncer переносит цены из источника в рынки через пакетное обновление.
type Syncer struct {
	client   *Client
	markets  PriceApplier
	interval time.Duration
	logger   *zap.Logger
}

// NewSyncer создаёт синхронизатор цен.
func NewSyncer(client *Client, markets PriceApplier, interval time.Duration, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		client:   client,
		markets:  markets,
		interval: interval,
		logger:   logger,
	}
}

// SyncOnce загружает цены и применяет их одной транзакцией.
// Записи без названия, с неположительной ценой или ценой вне NUMERIC(36,18) пропускаются.
func (s *Syncer) SyncOnce(ctx context.Context) (*market.BulkResult, error) {
	prices, err := s.client.FetchWithRetry(ctx, fetchAttempts)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	updates := make([]market.PriceUpdate, 0, len(prices))
	for _, p := range prices {
		name := strings.TrimSpace(p.GiftName)
		if reason := unusable(name, p.PriceTON); reason != "" {
			s.logger.Warn("skip price", zap.String("gift", p.GiftName), zap.String("reason", reason))
			continue
		}
		updates = append(updates, market.PriceUpdate{GiftName: name, PriceTON: model.RoundAmount(p.PriceTON)})
	}
	if len(updates) == 0 {
		return nil, errors.New("price feed returned no usable prices")
	}

	res, err := s.markets.BulkUpdatePrices(ctx, updates)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// unusable возвращает причину, по которой цену из фида нельзя применить, или пустую строку.
// Величина проверяется по показателю степени, до округления.
func unusable(name string, price decimal.Decimal) string {
	switch {
	case name == "":
		return "empty gift name"
	case !price.IsPositive():
		return "non-positive price"
	case model.IntegerDigits(price) > model.MaxIntegerDigits:
		return "price too large"
	case model.RoundsToZero(price):
		return "price rounds to zero"
	}
	return ""
}

// Run синхронизирует цены сразу и затем с заданным интервалом до отмены контекста.
// Ошибки отдельных проходов логируются и не останавливают цикл.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("price sync failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
