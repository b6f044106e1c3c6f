package escrow

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	v, err := ParseQuantity("6.111", 18)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("6111000000000000000", 10)
	assert.Equal(t, want, v)

	v, err = ParseQuantity("21", 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2100), v)

	_, err = ParseQuantity("0.001", 2)
	assert.Error(t, err)
	_, err = ParseQuantity("abc", 18)
	assert.Error(t, err)
}

func TestFormatQuantity(t *testing.T) {
	v, _ := new(big.Int).SetString("20370000000000000000", 10)
	assert.Equal(t, "20.37", FormatQuantity(v, 18))
	assert.Equal(t, "0", FormatQuantity(new(big.Int), 18))
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Deposit(token, account1, big.NewInt(10))

	assert.ErrorIs(t, l.Pull(ctx, token, account1, big.NewInt(11), "r1"), ErrInsufficientFunds)
	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(4), "r2"))
	assert.Equal(t, big.NewInt(6), l.Balance(token, account1))
	assert.Equal(t, big.NewInt(4), l.Balance(token, EscrowAccount))

	assert.ErrorIs(t, l.Push(ctx, token, account2, big.NewInt(5), "r3"), ErrInsufficientFunds)
	require.NoError(t, l.Push(ctx, token, account2, big.NewInt(3), "r4"))
	assert.Equal(t, big.NewInt(3), l.Balance(token, account2))

	err := l.PushBatch(ctx, token, []Transfer{
		{Account: account1, Amount: big.NewInt(1), Ref: "b1"},
		{Account: account2, Amount: big.NewInt(1), Ref: "b2"},
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, big.NewInt(1), l.Balance(token, EscrowAccount))

	assert.Equal(t, []string{"r2", "r4"}, l.Journal())
	// ativos diferentes não se misturam
	assert.Equal(t, 0, l.Balance("other", account1).Sign())
}

func TestMemoryLedgerRefsAreIdempotent(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Deposit(token, account1, big.NewInt(10))

	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(4), "stake:1"))
	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(4), "stake:1"))
	assert.Equal(t, big.NewInt(6), l.Balance(token, account1))

	require.NoError(t, l.PushBatch(ctx, token, []Transfer{{Account: account2, Amount: big.NewInt(4), Ref: "payout:1"}}))
	require.NoError(t, l.PushBatch(ctx, token, []Transfer{{Account: account2, Amount: big.NewInt(4), Ref: "payout:1"}}))
	assert.Equal(t, big.NewInt(4), l.Balance(token, account2))
	assert.Equal(t, 0, l.Balance(token, EscrowAccount).Sign())
}

func TestMemoryLedgerRejectsSameAccount(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Deposit(token, account1, big.NewInt(10))
	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(10), "stake:1"))

	assert.ErrorIs(t, l.Pull(ctx, token, EscrowAccount, big.NewInt(5), "stake:2"), ErrSameAccount)
	assert.ErrorIs(t, l.Push(ctx, token, EscrowAccount, big.NewInt(5), "payout:1"), ErrSameAccount)
	assert.ErrorIs(t, l.PushBatch(ctx, token, []Transfer{{Account: EscrowAccount, Amount: big.NewInt(5), Ref: "payout:2"}}), ErrSameAccount)
	assert.Equal(t, big.NewInt(10), l.Balance(token, EscrowAccount))
}

func TestMemoryLedgerRevert(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Deposit(token, account1, big.NewInt(10))

	// aplicada: volta para a origem uma única vez
	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(7), "stake:1"))
	require.NoError(t, l.Revert(ctx, token, "stake:1"))
	require.NoError(t, l.Revert(ctx, token, "stake:1"))
	assert.Equal(t, big.NewInt(10), l.Balance(token, account1))
	assert.Equal(t, 0, l.Balance(token, EscrowAccount).Sign())

	// não aplicada: fica anulada
	require.NoError(t, l.Revert(ctx, token, "stake:2"))
	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(7), "stake:2"))
	assert.Equal(t, big.NewInt(10), l.Balance(token, account1))

	require.NoError(t, l.Pull(ctx, token, account1, big.NewInt(1), "stake:3"))
	assert.ErrorIs(t, l.Revert(ctx, "other", "stake:3"), ErrNotReversible)

	assert.Equal(t, []string{"stake:1", "reversal:stake:1", "stake:3"}, l.Journal())
}
