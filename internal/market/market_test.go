package market

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/repository/memory"
)

func newSeeded(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	store := memory.New()
	require.NoError(t, memory.SeedDemo(context.Background(), store))
	return NewService(store, zap.NewNop()), store
}

func TestList(t *testing.T) {
	svc, _ := newSeeded(t)

	markets, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, len(memory.DemoGifts))
	assert.Equal(t, "Plush Pepe", markets[0].GiftName)
	assert.True(t, markets[0].IsActive)
}

func TestSetActive(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	m, err := svc.SetActive(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, m.IsActive)

	_, err = svc.SetActive(ctx, 404, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetGiftActive(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, memory.SeedDemo(ctx, store))
	core, logs := observer.New(zap.InfoLevel)
	svc := NewService(store, zap.New(core))

	g, err := svc.SetGiftActive(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "Plush Pepe", g.Name)
	assert.False(t, g.IsActive)

	m, err := store.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.True(t, m.IsActive)
	assert.False(t, m.Tradable())

	entries := logs.FilterField(zap.String("event", "admin_gift_toggled")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Plush Pepe", entries[0].ContextMap()["gift_name"])

	_, err = svc.SetGiftActive(ctx, 404, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetExpiryActive(t *testing.T) {
	svc, store := newSeeded(t)
	ctx := context.Background()

	e, err := svc.SetExpiryActive(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 7, e.Days)
	assert.False(t, e.IsActive)

	markets, err := store.GetMarkets(ctx)
	require.NoError(t, err)
	for _, m := range markets {
		assert.False(t, m.Tradable(), "market %d", m.ID)
	}

	e, err = svc.SetExpiryActive(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, e.IsActive)

	_, err = svc.SetExpiryActive(ctx, 404, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBulkUpdatePrices(t *testing.T) {
	svc, store := newSeeded(t)
	ctx := context.Background()

	res, err := svc.BulkUpdatePrices(ctx, []PriceUpdate{
		{GiftName: "Plush Pepe", PriceTON: decimal.RequireFromString("12.5")},
		{GiftName: "Unknown Gift", PriceTON: decimal.NewFromInt(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedMarkets)
	assert.Equal(t, []string{"Unknown Gift"}, res.UnknownGifts)

	m, err := store.GetMarket(ctx, 1)
	require.NoError(t, err)
	price, ok := m.Price(model.CurrencyTON)
	require.True(t, ok)
	assert.Equal(t, "12.5", price.String())
}

func TestBulkUpdatePrices_RejectsWholeBatch(t *testing.T) {
	svc, store := newSeeded(t)
	ctx := context.Background()

	_, err := svc.BulkUpdatePrices(ctx, []PriceUpdate{
		{GiftName: "Plush Pepe", PriceTON: decimal.NewFromInt(50)},
		{GiftName: "Durov's Cap", PriceTON: decimal.Zero},
	})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	m, err := store.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", m.PriceTON.String())

	_, err = svc.BulkUpdatePrices(ctx, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
