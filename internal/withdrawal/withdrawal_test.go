package withdrawal

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/accounting"
	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/repository/memory"
)

const testAddress = "EQDtFpEwcFAEcRe5mLVh2N6C0x-_hJEM7W61_JLnSF74p4q2"

func setup(t *testing.T, funds string) (*Service, *accounting.Service, *memory.Store, int64) {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	userID, err := store.AddUser(ctx, "tg-1")
	require.NoError(t, err)

	ledger := accounting.NewService(store, zap.NewNop())
	if funds != "" {
		_, err = ledger.Credit(ctx, userID, model.CurrencyTON, decimal.RequireFromString(funds), model.ReasonDeposit, model.Ref{})
		require.NoError(t, err)
	}

	return NewService(store, ledger, zap.NewNop()), ledger, store, userID
}

func TestRequestWithdrawal(t *testing.T) {
	svc, ledger, store, userID := setup(t, "50")
	ctx := context.Background()

	w, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(20), "", " "+testAddress+" ")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, w.Status)
	assert.Equal(t, model.CurrencyTON, w.Currency)
	assert.Equal(t, testAddress, w.DestinationAddress)
	assert.Nil(t, w.TxHash)

	balances, err := ledger.GetBalances(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "30", balances[0].Available.String())

	entries, err := store.GetLedgerEntriesByUser(ctx, userID, model.CurrencyTON)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, model.ReasonWithdraw, last.Reason)
	assert.Equal(t, model.RefTypeWithdrawal, last.RefType)
	require.NotNil(t, last.RefID)
	assert.Equal(t, w.ID, *last.RefID)
	assert.Equal(t, "-20", last.Delta.String())
}

func TestRequestWithdrawal_InsufficientFundsTouchesNothing(t *testing.T) {
	svc, ledger, store, userID := setup(t, "50")
	ctx := context.Background()

	_, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(100), "TON", testAddress)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	balances, err := ledger.GetBalances(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "50", balances[0].Available.String())

	entries, err := store.GetLedgerEntriesByUser(ctx, userID, model.CurrencyTON)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	list, err := svc.ListWithdrawals(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRequestWithdrawal_InvalidInput(t *testing.T) {
	svc, _, _, userID := setup(t, "50")
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   decimal.Decimal
		currency string
		address  string
		wantErr  error
	}{
		{name: "bad address", amount: decimal.NewFromInt(1), address: "0xdeadbeef", wantErr: ErrInvalidAddress},
		{name: "empty address", amount: decimal.NewFromInt(1), address: "", wantErr: ErrInvalidAddress},
		{name: "zero amount", amount: decimal.Zero, address: testAddress, wantErr: ErrInvalidAmount},
		{name: "negative amount", amount: decimal.NewFromInt(-1), address: testAddress, wantErr: ErrInvalidAmount},
		{name: "unsupported currency", amount: decimal.NewFromInt(1), currency: "BTC", address: testAddress, wantErr: model.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestWithdrawal(ctx, userID, tt.amount, tt.currency, tt.address)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, model.KindInvalidInput, model.KindOf(err))
		})
	}
}

func TestListWithdrawals_NewestFirst(t *testing.T) {
	svc, _, _, userID := setup(t, "10")
	ctx := context.Background()

	first, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(1), "TON", testAddress)
	require.NoError(t, err)
	second, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(2), "TON", testAddress)
	require.NoError(t, err)

	list, err := svc.ListWithdrawals(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "EQDtFpEw…74p4q2", MaskAddress(testAddress))
	assert.Equal(t, "EQshort", MaskAddress("EQshort"))
	assert.Equal(t, "0123456789abcdef", MaskAddress("0123456789abcdef"))
}
