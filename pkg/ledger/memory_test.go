package ledger_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/ledger"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestMemory_MintBurn(t *testing.T) {
	ctx := t.Context()
	m := ledger.NewMemory()
	alice := account.Derive("alice")

	require.NoError(t, m.Mint(ctx, alice, u(1000)))

	b, err := m.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), b.Uint64())

	supply, err := m.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), supply.Uint64())

	require.NoError(t, m.Burn(ctx, alice, u(400)))

	b, err = m.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), b.Uint64())

	supply, err = m.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), supply.Uint64())
}

func TestMemory_BurnInsufficient(t *testing.T) {
	ctx := t.Context()
	m := ledger.NewMemory()
	alice := account.Derive("alice")

	require.NoError(t, m.Mint(ctx, alice, u(10)))
	err := m.Burn(ctx, alice, u(11))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// Failed burn left the balance untouched.
	b, err := m.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.Uint64())
}

func TestMemory_Transfer(t *testing.T) {
	ctx := t.Context()
	m := ledger.NewMemory()
	alice, bob := account.Derive("alice"), account.Derive("bob")

	require.NoError(t, m.Mint(ctx, alice, u(100)))
	require.NoError(t, m.Transfer(ctx, alice, bob, u(30)))

	got, err := m.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), got.Uint64())

	err = m.Transfer(ctx, alice, bob, u(71))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestMemory_TransferFrom(t *testing.T) {
	ctx := t.Context()
	m := ledger.NewMemory()
	alice, bob, spender := account.Derive("alice"), account.Derive("bob"), account.Derive("spender")

	require.NoError(t, m.Mint(ctx, alice, u(100)))

	// No approval yet.
	err := m.TransferFrom(ctx, spender, alice, bob, u(10))
	assert.ErrorIs(t, err, ledger.ErrInsufficientAllowance)

	require.NoError(t, m.Approve(ctx, alice, spender, u(50)))
	require.NoError(t, m.TransferFrom(ctx, spender, alice, bob, u(30)))

	remaining, err := m.Allowance(ctx, alice, spender)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), remaining.Uint64())

	// Allowance exceeded even though balance would cover it.
	err = m.TransferFrom(ctx, spender, alice, bob, u(21))
	assert.ErrorIs(t, err, ledger.ErrInsufficientAllowance)

	// Balance exceeded even though allowance would cover it.
	require.NoError(t, m.Approve(ctx, alice, spender, u(1000)))
	err = m.TransferFrom(ctx, spender, alice, bob, u(71))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}
