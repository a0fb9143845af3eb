package futures

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/accounting"
	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/repository/memory"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type fixture struct {
	svc     *Service
	ledger  *accounting.Service
	store   *memory.Store
	market  int64
	emitter int64
	buyer   int64
}

func newFixture(t *testing.T, price string, funds string) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	ledger := accounting.NewService(store, zap.NewNop())

	emitter, err := store.AddUser(ctx, "emitter")
	require.NoError(t, err)
	buyer, err := store.AddUser(ctx, "buyer")
	require.NoError(t, err)

	for _, id := range []int64{emitter, buyer} {
		_, err = ledger.Credit(ctx, id, model.CurrencyTON, d(funds), model.ReasonDeposit, model.Ref{})
		require.NoError(t, err)
	}

	market, err := store.AddMarket(ctx, model.Market{GiftID: 1, GiftName: "Plush Pepe", ExpiryID: 1, ExpiryDays: 7, IsActive: true, PriceTON: dp(price)})
	require.NoError(t, err)

	return &fixture{
		svc:     NewService(store, ledger, model.CurrencyTON, zap.NewNop()),
		ledger:  ledger,
		store:   store,
		market:  market,
		emitter: emitter,
		buyer:   buyer,
	}
}

func (f *fixture) available(t *testing.T, userID int64) string {
	t.Helper()
	balances, err := f.ledger.GetBalances(context.Background(), userID)
	require.NoError(t, err)
	return balances[0].Available.String()
}

func (f *fixture) assertLedgerConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []int64{f.emitter, f.buyer} {
		entries, err := f.store.GetLedgerEntriesByUser(ctx, id, model.CurrencyTON)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, e := range entries {
			sum = sum.Add(e.Delta)
		}
		balances, err := f.ledger.GetBalances(ctx, id)
		require.NoError(t, err)
		assert.True(t, sum.Equal(balances[0].Total()), "user %d: ledger %s != balance %s", id, sum, balances[0].Total())
	}
}

func TestMarginRoundTrip(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("2"))
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusOpen, c.Status)
	assert.True(t, c.MarginEmitter.Equal(d("2")))
	assert.Equal(t, "8", f.available(t, f.emitter))

	c, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTaken, c.Status)
	require.NotNil(t, c.BuyerID)
	assert.Equal(t, f.buyer, *c.BuyerID)
	assert.Equal(t, "8", f.available(t, f.buyer))

	c, err = f.svc.Settle(ctx, c.ID, dp("1.0"))
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusClosed, c.Status)
	require.NotNil(t, c.ClosePrice)
	require.NotNil(t, c.ClosedAt)
	assert.Equal(t, "10", f.available(t, f.emitter))
	assert.Equal(t, "10", f.available(t, f.buyer))

	f.assertLedgerConsistent(t)
}

func TestDirectionalSettlement(t *testing.T) {
	tests := []struct {
		name        string
		side        model.Side
		closePrice  string
		wantEmitter string
		wantBuyer   string
	}{
		{name: "price up pays emitter", side: model.SideLong, closePrice: "1.2", wantEmitter: "102", wantBuyer: "100"},
		{name: "price down pays buyer", side: model.SideLong, closePrice: "0.8", wantEmitter: "100", wantBuyer: "102"},
		{name: "side does not matter", side: model.SideShort, closePrice: "1.2", wantEmitter: "102", wantBuyer: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "1.0", "100")
			ctx := context.Background()

			c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, tt.side, d("10"))
			require.NoError(t, err)
			_, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
			require.NoError(t, err)
			assert.Equal(t, "90", f.available(t, f.emitter))
			assert.Equal(t, "90", f.available(t, f.buyer))

			_, err = f.svc.Settle(ctx, c.ID, dp(tt.closePrice))
			require.NoError(t, err)

			assert.True(t, d(tt.wantEmitter).Equal(d(f.available(t, f.emitter))), "emitter: %s", f.available(t, f.emitter))
			assert.True(t, d(tt.wantBuyer).Equal(d(f.available(t, f.buyer))), "buyer: %s", f.available(t, f.buyer))
			f.assertLedgerConsistent(t)
		})
	}
}

func TestSettle_UsesMarketPriceWhenNotGiven(t *testing.T) {
	f := newFixture(t, "1.0", "100")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("10"))
	require.NoError(t, err)
	_, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
	require.NoError(t, err)

	_, err = f.store.UpdateMarketPrices(ctx, "Plush Pepe", d("0.5"))
	require.NoError(t, err)

	c, err = f.svc.Settle(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.True(t, c.ClosePrice.Equal(d("0.5")))
	assert.True(t, c.EntryPrice.Equal(d("1.0")))
	assert.True(t, d("105").Equal(d(f.available(t, f.buyer))))
	assert.True(t, d("100").Equal(d(f.available(t, f.emitter))))
}

func TestSettle_OpenContractReturnsEmitterMargin(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideShort, d("4"))
	require.NoError(t, err)

	c, err = f.svc.Settle(ctx, c.ID, dp("0.5"))
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusClosed, c.Status)
	assert.Equal(t, "10", f.available(t, f.emitter))
	assert.Equal(t, "10", f.available(t, f.buyer))

	_, err = f.svc.Settle(ctx, c.ID, dp("0.5"))
	assert.ErrorIs(t, err, model.ErrNotFound)

	f.assertLedgerConsistent(t)
}

func TestSettle_OpenContractAboveEntryPaysEmitterPnL(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("4"))
	require.NoError(t, err)
	assert.Equal(t, "6", f.available(t, f.emitter))

	c, err = f.svc.Settle(ctx, c.ID, dp("1.5"))
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusClosed, c.Status)
	assert.Nil(t, c.BuyerID)

	// Маржа 4 плюс PnL 4 * (1.5 - 1.0) = 2.
	assert.Equal(t, "12", f.available(t, f.emitter))
	assert.Equal(t, "10", f.available(t, f.buyer))

	f.assertLedgerConsistent(t)
}

func TestCreateOffer_Errors(t *testing.T) {
	f := newFixture(t, "1.0", "5")
	ctx := context.Background()

	inactive, err := f.store.AddMarket(ctx, model.Market{GiftName: "Durov's Cap", PriceTON: dp("1")})
	require.NoError(t, err)
	priceless, err := f.store.AddMarket(ctx, model.Market{GiftName: "Heart Locket", IsActive: true})
	require.NoError(t, err)

	tests := []struct {
		name    string
		market  int64
		side    model.Side
		qty     string
		wantErr error
	}{
		{name: "zero qty", market: f.market, side: model.SideLong, qty: "0", wantErr: ErrInvalidQuantity},
		{name: "negative qty", market: f.market, side: model.SideLong, qty: "-1", wantErr: ErrInvalidQuantity},
		{name: "bad side", market: f.market, side: "up", qty: "1", wantErr: model.ErrInvalidInput},
		{name: "inactive market", market: inactive, side: model.SideLong, qty: "1", wantErr: model.ErrMarketUnavailable},
		{name: "priceless market", market: priceless, side: model.SideLong, qty: "1", wantErr: model.ErrMarketUnavailable},
		{name: "missing market", market: 999, side: model.SideLong, qty: "1", wantErr: model.ErrMarketUnavailable},
		{name: "not enough margin", market: f.market, side: model.SideLong, qty: "6", wantErr: model.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOffer(ctx, f.emitter, tt.market, tt.side, d(tt.qty))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, "5", f.available(t, f.emitter))
	open, err := f.svc.ListOpenOffers(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCreateOffer_DisabledGiftOrExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("gift", func(t *testing.T) {
		f := newFixture(t, "1.0", "10")
		_, err := f.store.SetGiftActive(ctx, 1, false)
		require.NoError(t, err)

		_, err = f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("1"))
		assert.ErrorIs(t, err, model.ErrMarketUnavailable)
		assert.Equal(t, "10", f.available(t, f.emitter))
	})

	t.Run("expiry", func(t *testing.T) {
		f := newFixture(t, "1.0", "10")
		_, err := f.store.SetExpiryActive(ctx, 1, false)
		require.NoError(t, err)

		_, err = f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("1"))
		assert.ErrorIs(t, err, model.ErrMarketUnavailable)
	})

	t.Run("existing contract still settles", func(t *testing.T) {
		f := newFixture(t, "1.0", "10")
		c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("2"))
		require.NoError(t, err)

		_, err = f.store.SetGiftActive(ctx, 1, false)
		require.NoError(t, err)

		c, err = f.svc.Settle(ctx, c.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ContractStatusClosed, c.Status)
		assert.Equal(t, "10", f.available(t, f.emitter))
	})
}

func TestTakeOffer_Errors(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("3"))
	require.NoError(t, err)

	_, err = f.svc.TakeOffer(ctx, f.emitter, c.ID)
	assert.ErrorIs(t, err, model.ErrSelfTrade)

	_, err = f.svc.TakeOffer(ctx, f.buyer, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)

	poor, err := f.store.AddUser(ctx, "poor")
	require.NoError(t, err)
	_, err = f.svc.TakeOffer(ctx, poor, c.ID)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	got, err := f.svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusOpen, got.Status)
	assert.Nil(t, got.BuyerID)

	_, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
	require.NoError(t, err)

	_, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTakeOffer_EntryPriceIsFrozen(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("2"))
	require.NoError(t, err)

	_, err = f.store.UpdateMarketPrices(ctx, "Plush Pepe", d("3"))
	require.NoError(t, err)

	c, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
	require.NoError(t, err)
	assert.True(t, c.MarginBuyer.Equal(d("2")))
	assert.Equal(t, "8", f.available(t, f.buyer))
}

func TestTakeOffer_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	second, err := f.store.AddUser(ctx, "buyer-2")
	require.NoError(t, err)
	_, err = f.ledger.Credit(ctx, second, model.CurrencyTON, d("10"), model.ReasonDeposit, model.Ref{})
	require.NoError(t, err)

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("5"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, buyer := range []int64{f.buyer, second} {
		wg.Add(1)
		go func(i int, buyer int64) {
			defer wg.Done()
			_, errs[i] = f.svc.TakeOffer(ctx, buyer, c.ID)
		}(i, buyer)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, model.ErrNotFound):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	total := d(f.available(t, f.buyer)).Add(d(f.available(t, second)))
	assert.True(t, total.Equal(d("15")), "only one buyer margin must be debited, got %s", total)
}

func TestLiquidate(t *testing.T) {
	f := newFixture(t, "1.0", "100")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("10"))
	require.NoError(t, err)
	_, err = f.svc.TakeOffer(ctx, f.buyer, c.ID)
	require.NoError(t, err)

	_, err = f.svc.Liquidate(ctx, c.ID, d("0.9"), "  ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	c, err = f.svc.Liquidate(ctx, c.ID, d("0.9"), "margin call")
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusLiquidated, c.Status)
	require.NotNil(t, c.LiquidationReason)
	assert.Equal(t, "margin call", *c.LiquidationReason)
	assert.True(t, d("101").Equal(d(f.available(t, f.buyer))))
	assert.True(t, d("100").Equal(d(f.available(t, f.emitter))))

	_, err = f.svc.Settle(ctx, c.ID, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)

	f.assertLedgerConsistent(t)
}

func TestSettle_InvalidClosePrice(t *testing.T) {
	f := newFixture(t, "1.0", "10")
	ctx := context.Background()

	c, err := f.svc.CreateOffer(ctx, f.emitter, f.market, model.SideLong, d("1"))
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, c.ID, dp("-1"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	got, err := f.svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusOpen, got.Status)
}

func TestComputeSettlement(t *testing.T) {
	buyer := int64(2)
	c := model.FuturesContract{
		EmitterID:     1,
		BuyerID:       &buyer,
		Qty:           d("10"),
		EntryPrice:    d("1.0"),
		MarginEmitter: d("10"),
		MarginBuyer:   d("10"),
	}

	st := ComputeSettlement(c, d("1.2"))
	assert.True(t, st.PnL.Equal(d("2")))
	assert.True(t, st.Move.Equal(d("0.2")))
	assert.True(t, st.EmitterPayout.Equal(d("12")))
	assert.True(t, st.BuyerPayout.Equal(d("10")))

	st = ComputeSettlement(c, d("1.0"))
	assert.True(t, st.PnL.IsZero())
	assert.True(t, st.EmitterPayout.Equal(d("10")))
	assert.True(t, st.BuyerPayout.Equal(d("10")))

	c.EntryPrice = decimal.Zero
	st = ComputeSettlement(c, d("1"))
	assert.True(t, st.Move.IsZero())

	c.BuyerID = nil
	c.MarginBuyer = decimal.Zero
	c.EntryPrice = d("1")
	st = ComputeSettlement(c, d("0.5"))
	assert.True(t, st.BuyerPayout.IsZero())
	assert.True(t, st.EmitterPayout.Equal(d("10")))
}
