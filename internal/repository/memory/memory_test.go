package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/giftfutures/internal/model"
)

func TestWithTransaction_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.GetBalanceForUpdate(ctx, 1, model.CurrencyTON)
		require.NoError(t, err)
		b.Available = decimal.NewFromInt(10)
		require.NoError(t, s.SaveBalance(ctx, b))
		require.NoError(t, s.AppendLedgerEntry(ctx, &model.LedgerEntry{UserID: 1, Currency: model.CurrencyTON, Delta: b.Available}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	balances, err := s.GetBalancesByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, balances)

	entries, err := s.GetLedgerEntriesByUser(ctx, 1, model.CurrencyTON)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Panics(t, func() {
		_ = s.WithTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, s.InsertWithdrawal(ctx, &model.Withdrawal{UserID: 1}))
			panic("crash")
		})
	})

	ws, err := s.GetWithdrawalsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, ws)

	// мьютекс должен быть освобождён
	_, err = s.AddUser(ctx, "after-panic")
	require.NoError(t, err)
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := s.AddUser(ctx, "nested")
			return err
		})
	})
	require.NoError(t, err)

	ok, err := s.UserExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetBalanceForUpdate_RequiresTransaction(t *testing.T) {
	_, err := New().GetBalanceForUpdate(context.Background(), 1, model.CurrencyTON)
	assert.Error(t, err)
}

func TestInsertDeposit_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertDeposit(ctx, &model.Deposit{TxHash: "tx-1", Amount: decimal.NewFromInt(1)}))
	err := s.InsertDeposit(ctx, &model.Deposit{TxHash: "tx-1", Amount: decimal.NewFromInt(2)})
	assert.ErrorIs(t, err, model.ErrDuplicate)

	d, err := s.GetDepositByTxHash(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(1)))
}

func TestUpdateMarketPrices(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, SeedDemo(ctx, s))

	n, err := s.UpdateMarketPrices(ctx, "Plush Pepe", decimal.RequireFromString("3.25"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := s.GetMarket(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, m.PriceTON)
	assert.Equal(t, "3.25", m.PriceTON.String())

	n, err = s.UpdateMarketPrices(ctx, "Unknown Gift", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGiftAndExpiryFlagsShapeMarkets(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, SeedDemo(ctx, s))

	m, err := s.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.True(t, m.Tradable())
	assert.Equal(t, "Plush Pepe", m.GiftName)
	assert.Equal(t, 7, m.ExpiryDays)

	g, err := s.SetGiftActive(ctx, m.GiftID, false)
	require.NoError(t, err)
	assert.False(t, g.IsActive)

	m, err = s.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.True(t, m.IsActive)
	assert.False(t, m.GiftActive)
	assert.False(t, m.Tradable())

	// Экспирация общая для всех рынков стенда.
	_, err = s.SetExpiryActive(ctx, m.ExpiryID, false)
	require.NoError(t, err)
	markets, err := s.GetMarkets(ctx)
	require.NoError(t, err)
	for _, m := range markets {
		assert.False(t, m.ExpiryActive, "market %d", m.ID)
	}

	_, err = s.SetGiftActive(ctx, 999, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.SetExpiryActive(ctx, 999, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAddMarket_ReusesGiftByName(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.AddMarket(ctx, model.Market{GiftName: "Plush Pepe", ExpiryDays: 7, IsActive: true})
	require.NoError(t, err)
	second, err := s.AddMarket(ctx, model.Market{GiftName: "Plush Pepe", ExpiryDays: 30, IsActive: true})
	require.NoError(t, err)

	a, err := s.GetMarket(ctx, first)
	require.NoError(t, err)
	b, err := s.GetMarket(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, a.GiftID, b.GiftID)
	assert.NotEqual(t, a.ExpiryID, b.ExpiryID)
	assert.Equal(t, 30, b.ExpiryDays)
}

func TestSetUserWallet(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.AddUser(ctx, "tg-1")
	require.NoError(t, err)

	addr := "EQabc"
	u, err := s.SetUserWallet(ctx, id, &addr)
	require.NoError(t, err)
	require.NotNil(t, u.ConnectedTONAddress)

	addr = "mutated"
	u, err = s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "EQabc", *u.ConnectedTONAddress)

	u, err = s.SetUserWallet(ctx, id, nil)
	require.NoError(t, err)
	assert.Nil(t, u.ConnectedTONAddress)

	_, err = s.SetUserWallet(ctx, 999, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.GetUser(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
