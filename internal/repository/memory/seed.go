package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// DemoGifts перечисляет подарки, для которых создаются стартовые рынки.
var DemoGifts = []string{
	"Plush Pepe",
	"Durov's Cap",
	"Heart Locket",
}

// SeedDemo наполняет хранилище двумя пользователями и рынками с недельной экспирацией для локального запуска.
func SeedDemo(ctx context.Context, s *Store) error {
	for _, tg := range []string{"dev-1", "dev-2"} {
		if _, err := s.AddUser(ctx, tg); err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
	}

	for i, name := range DemoGifts {
		price := decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(i)).Mul(decimal.RequireFromString("0.5")))
		_, err := s.AddMarket(ctx, model.Market{
			GiftID:     int64(i + 1),
			GiftName:   name,
			ExpiryID:   1,
			ExpiryDays: 7,
			IsActive:   true,
			PriceTON:   &price,
		})
		if err != nil {
			return fmt.Errorf("seed market: %w", err)
		}
	}
	return nil
}
