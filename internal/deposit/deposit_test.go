package deposit

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

func setup(t *testing.T) (*Service, *accounting.Service, *memory.Store) {
	t.Helper()

	store := memory.New()
	ledger := accounting.NewService(store, zap.NewNop())
	return NewService(store, ledger, "EQproject-wallet", zap.NewNop()), ledger, store
}

func addUsers(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.AddUser(context.Background(), "tg-"+UserComment(int64(i)))
		require.NoError(t, err)
	}
}

func tonAvailable(t *testing.T, ledger *accounting.Service, userID int64) string {
	t.Helper()
	balances, err := ledger.GetBalances(context.Background(), userID)
	require.NoError(t, err)
	return balances[0].Available.String()
}

func TestAttributeDeposit_Idempotent(t *testing.T) {
	svc, ledger, store := setup(t)
	addUsers(t, store, 7)
	ctx := context.Background()

	n := Notification{TxHash: "tx-1", Amount: decimal.RequireFromString("10.5"), Comment: "u7", Currency: "TON"}

	first, err := svc.AttributeDeposit(ctx, n)
	require.NoError(t, err)
	assert.True(t, first.Credited)
	require.NotNil(t, first.UserID)
	assert.Equal(t, int64(7), *first.UserID)
	assert.Equal(t, "10.5", tonAvailable(t, ledger, 7))

	res, err := svc.AttributeDeposit(ctx, n)
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, ReasonDuplicateTxHash, res.Reason)
	assert.Equal(t, "10.5", tonAvailable(t, ledger, 7))

	entries, err := store.GetLedgerEntriesByUser(ctx, 7, model.CurrencyTON)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ReasonDeposit, entries[0].Reason)
	require.NotNil(t, entries[0].RefID)
	assert.Equal(t, first.DepositID, *entries[0].RefID)
}

func TestAttributeDeposit_ConcurrentDuplicates(t *testing.T) {
	svc, ledger, store := setup(t)
	addUsers(t, store, 1)
	ctx := context.Background()

	n := Notification{TxHash: "tx-race", Amount: decimal.NewFromInt(3), Comment: "u1"}

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.AttributeDeposit(ctx, n)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, r := range results {
		if r != nil && r.Credited {
			credited++
		}
	}
	assert.Equal(t, 1, credited)
	assert.Equal(t, "3", tonAvailable(t, ledger, 1))
}

func TestAttributeDeposit_Unattributed(t *testing.T) {
	svc, _, store := setup(t)
	addUsers(t, store, 1)
	ctx := context.Background()

	tests := []struct {
		name    string
		txHash  string
		comment string
	}{
		{name: "empty comment", txHash: "tx-a", comment: ""},
		{name: "garbage comment", txHash: "tx-b", comment: "hello"},
		{name: "signed id", txHash: "tx-c", comment: "u+1"},
		{name: "unknown user", txHash: "tx-d", comment: "u42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.AttributeDeposit(ctx, Notification{TxHash: tt.txHash, Amount: decimal.NewFromInt(1), Comment: tt.comment})
			require.NoError(t, err)
			assert.False(t, res.Credited)
			assert.Nil(t, res.UserID)
			assert.Equal(t, ReasonUserNotFound, res.Reason)

			d, err := store.GetDepositByTxHash(ctx, tt.txHash)
			require.NoError(t, err)
			assert.Equal(t, model.DepositStatusRejected, d.Status)
			assert.Nil(t, d.UserID)
		})
	}

	entries, err := store.GetLedgerEntriesByUser(ctx, 1, model.CurrencyTON)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttributeDeposit_InvalidInput(t *testing.T) {
	svc, _, store := setup(t)
	addUsers(t, store, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		n    Notification
	}{
		{name: "missing hash", n: Notification{TxHash: "  ", Amount: decimal.NewFromInt(1), Comment: "u1"}},
		{name: "zero amount", n: Notification{TxHash: "tx-1", Amount: decimal.Zero, Comment: "u1"}},
		{name: "negative amount", n: Notification{TxHash: "tx-2", Amount: decimal.NewFromInt(-5), Comment: "u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AttributeDeposit(ctx, tt.n)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDeposit))
			assert.Equal(t, model.KindInvalidInput, model.KindOf(err))
		})
	}

	_, err := store.GetDepositByTxHash(ctx, "tx-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAttributeDeposit_CurrencyNormalization(t *testing.T) {
	svc, ledger, store := setup(t)
	addUsers(t, store, 1)
	ctx := context.Background()

	res, err := svc.AttributeDeposit(ctx, Notification{TxHash: "tx-usdt", Amount: decimal.NewFromInt(2), Comment: "u1", Currency: " usdt "})
	require.NoError(t, err)
	assert.Equal(t, model.CurrencyUSDT, res.Currency)

	res, err = svc.AttributeDeposit(ctx, Notification{TxHash: "tx-doge", Amount: decimal.NewFromInt(4), Comment: "u1", Currency: "DOGE"})
	require.NoError(t, err)
	assert.Equal(t, model.CurrencyTON, res.Currency)

	balances, err := ledger.GetBalances(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "4", balances[0].Available.String())
	assert.Equal(t, "2", balances[1].Available.String())
}

func TestParseUserComment(t *testing.T) {
	tests := []struct {
		comment string
		want    int64
		ok      bool
	}{
		{comment: "u42", want: 42, ok: true},
		{comment: "  u7 ", want: 7, ok: true},
		{comment: "u", ok: false},
		{comment: "U42", ok: false},
		{comment: "u0", ok: false},
		{comment: "u-1", ok: false},
		{comment: "u4x2", ok: false},
		{comment: "u99999999999999999999", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			got, ok := ParseUserComment(tt.comment)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstruction(t *testing.T) {
	svc, _, _ := setup(t)

	in := svc.Instruction(15)
	assert.Equal(t, "EQproject-wallet", in.Address)
	assert.Equal(t, "u15", in.Comment)
}
